package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maxbolgarin/critique/internal/fetcher"
	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/critique/internal/store"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/servex/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ReviewService is the slice of the review service the API needs.
type ReviewService interface {
	Review(ctx context.Context, source model.ChangeSource, cfg model.ReviewConfig) (*model.ReviewResult, error)
	Get(ctx context.Context, reviewID string) (*model.ReviewResult, error)
	History(ctx context.Context, filter store.Filter) ([]*model.ReviewResult, error)
	Status(ctx context.Context, reviewID string) (model.ReviewStatus, error)
}

// Pinger is the store health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the review pipeline over HTTP.
type Server struct {
	service ReviewService
	pinger  Pinger
	config  Config
	log     logze.Logger
	server  *servex.Server
}

func New(cfg Config, service ReviewService, pinger Pinger) (*Server, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, erro.Wrap(err, "validate config")
	}

	log := logze.With("module", "server")

	srv, err := servex.NewServer(
		servex.WithReadTimeout(cfg.Timeout),
		servex.WithIdleTimeout(cfg.Timeout*2),
		servex.WithLogger(log),
		servex.WithDefaultMetrics(),
		servex.WithRPM(cfg.RatePerMinute),
		servex.WithCertificate(cfg.Certificate),
	)
	if err != nil {
		return nil, erro.Wrap(err, "failed to create server")
	}

	s := &Server{
		service: service,
		pinger:  pinger,
		config:  cfg,
		log:     log,
		server:  srv,
	}

	srv.HandleFunc("/api/reviews", s.handleCreateReview)
	srv.HandleFunc("/api/reviews/", s.handleReviewSubpath)
	srv.HandleFunc("/health", s.handleHealth)

	return s, nil
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	if s.config.EnableHTTPS {
		return s.server.StartHTTPS(s.config.Address)
	}
	return s.server.StartHTTP(s.config.Address)
}

// Stop stops the API server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// reviewRequest is the POST /api/reviews body. Exactly one of pr_url,
// repository+pr_number or diff_content must be present.
type reviewRequest struct {
	PRURL       string              `json:"pr_url,omitempty"`
	Repository  string              `json:"repository,omitempty"`
	PRNumber    int                 `json:"pr_number,omitempty"`
	AccessToken string              `json:"access_token,omitempty"`
	DiffContent string              `json:"diff_content,omitempty"`
	Config      *model.ReviewConfig `json:"config,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodPost {
		ctx.Response(http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	body, err := ctx.Read()
	if err != nil {
		ctx.BadRequest(err, "failed to read request body")
		return
	}

	var req reviewRequest
	if err := json.Unmarshal(body, &req); err != nil {
		ctx.BadRequest(err, "invalid JSON body")
		return
	}

	source := model.ChangeSource{
		PRURL:       req.PRURL,
		Repository:  req.Repository,
		PRNumber:    req.PRNumber,
		AccessToken: req.AccessToken,
		DiffContent: req.DiffContent,
	}
	var cfg model.ReviewConfig
	if req.Config != nil {
		cfg = *req.Config
	}

	result, err := s.service.Review(r.Context(), source, cfg)
	if err != nil {
		s.respondReviewError(ctx, err)
		return
	}

	ctx.Response(http.StatusOK, result)
}

func (s *Server) handleReviewSubpath(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	if r.Method != http.MethodGet {
		ctx.Response(http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reviews/"), "/")
	if rest == "history" {
		s.handleHistory(ctx, r)
		return
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		s.handleGetReview(ctx, r, parts[0])
	case len(parts) == 2 && parts[1] == "status":
		s.handleGetStatus(ctx, r, parts[0])
	default:
		ctx.Response(http.StatusNotFound, errorResponse{Error: "unknown path"})
	}
}

func (s *Server) handleGetReview(ctx *servex.Context, r *http.Request, reviewID string) {
	result, err := s.service.Get(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.Response(http.StatusNotFound, errorResponse{Error: "review not found"})
			return
		}
		ctx.InternalServerError(err, "failed to load review")
		return
	}
	ctx.Response(http.StatusOK, result)
}

func (s *Server) handleGetStatus(ctx *servex.Context, r *http.Request, reviewID string) {
	status, err := s.service.Status(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ctx.Response(http.StatusNotFound, errorResponse{Error: "review not found"})
			return
		}
		ctx.InternalServerError(err, "failed to load review status")
		return
	}
	ctx.Response(http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleHistory(ctx *servex.Context, r *http.Request) {
	filter, err := parseHistoryFilter(r)
	if err != nil {
		ctx.BadRequest(err, "invalid history query")
		return
	}

	results, err := s.service.History(r.Context(), filter)
	if err != nil {
		ctx.InternalServerError(err, "failed to query review history")
		return
	}
	if results == nil {
		results = []*model.ReviewResult{}
	}
	ctx.Response(http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := servex.NewContext(w, r)

	database := "ok"
	status := "ok"
	if err := s.pinger.Ping(r.Context()); err != nil {
		s.log.Warn("database health check failed", "error", err.Error())
		database = "unavailable"
		status = "degraded"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	ctx.Response(code, map[string]string{"status": status, "database": database})
}

// respondReviewError maps pipeline failures onto the API status codes:
// validation 400, upstream auth 401, remote not-found 404, upstream
// rate limit 429, everything else 500.
func (s *Server) respondReviewError(ctx *servex.Context, err error) {
	if model.IsValidationError(err) {
		ctx.BadRequest(err, "invalid review request")
		return
	}

	var ferr *fetcher.Error
	if errors.As(err, &ferr) {
		switch ferr.Kind {
		case fetcher.KindURLFormat:
			ctx.BadRequest(err, "invalid pull request URL")
		case fetcher.KindNotFound:
			ctx.Response(http.StatusNotFound, errorResponse{Error: ferr.Message})
		case fetcher.KindAuth:
			ctx.Unauthorized(err, "provider authentication failed")
		case fetcher.KindRateLimited:
			ctx.Response(http.StatusTooManyRequests, errorResponse{Error: ferr.Message})
		default:
			ctx.InternalServerError(err, "failed to fetch changes")
		}
		return
	}

	ctx.InternalServerError(err, "review failed")
}

func parseHistoryFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	filter := store.Filter{
		Repository: q.Get("repository"),
		Limit:      50,
	}

	var err error
	if raw := q.Get("pr_number"); raw != "" {
		if filter.PRNumber, err = strconv.Atoi(raw); err != nil {
			return filter, erro.New("invalid pr_number: %s", raw)
		}
	}
	if raw := q.Get("start_date"); raw != "" {
		if filter.Start, err = parseDate(raw); err != nil {
			return filter, err
		}
	}
	if raw := q.Get("end_date"); raw != "" {
		if filter.End, err = parseDate(raw); err != nil {
			return filter, err
		}
	}
	if raw := q.Get("severity"); raw != "" {
		sev := model.Severity(raw)
		if !sev.IsValid() {
			return filter, erro.New("invalid severity: %s", raw)
		}
		filter.MinSeverity = sev
	}
	if raw := q.Get("category"); raw != "" {
		cat := model.Category(raw)
		if !cat.IsValid() {
			return filter, erro.New("invalid category: %s", raw)
		}
		filter.Category = cat
	}
	if raw := q.Get("limit"); raw != "" {
		if filter.Limit, err = strconv.Atoi(raw); err != nil || filter.Limit <= 0 {
			return filter, erro.New("invalid limit: %s", raw)
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if filter.Offset, err = strconv.Atoi(raw); err != nil || filter.Offset < 0 {
			return filter, erro.New("invalid offset: %s", raw)
		}
	}

	return filter, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, erro.New("invalid date: %s", raw)
}
