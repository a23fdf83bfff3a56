package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maxbolgarin/abstract"
	"github.com/maxbolgarin/critique/internal/diff"
	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/critique/internal/report"
	"github.com/maxbolgarin/critique/internal/store"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

const (
	defaultMaxFiles      = 50
	defaultMaxLines      = 10000
	defaultReviewTimeout = 600 * time.Second

	// maxFailedStatuses bounds how many failed runs stay queryable.
	maxFailedStatuses = 1024
)

// Config represents review service configuration.
type Config struct {
	MaxFiles      int           `yaml:"max_files" env:"REVIEW_MAX_FILES"`
	MaxLines      int           `yaml:"max_lines" env:"REVIEW_MAX_LINES"`
	ReviewTimeout time.Duration `yaml:"review_timeout" env:"REVIEW_TIMEOUT"`
}

func (c *Config) PrepareAndValidate() error {
	c.MaxFiles = lang.Check(c.MaxFiles, defaultMaxFiles)
	c.MaxLines = lang.Check(c.MaxLines, defaultMaxLines)
	c.ReviewTimeout = lang.Check(c.ReviewTimeout, defaultReviewTimeout)
	return nil
}

// ChangeFetcher resolves remote sources into metadata plus raw diff.
type ChangeFetcher interface {
	Fetch(ctx context.Context, source model.ChangeSource) (*model.ChangeMetadata, string, error)
}

// Orchestrator fans analyzers out over a parsed diff.
type Orchestrator interface {
	Run(ctx context.Context, parsed *model.ParsedDiff, cfg model.ReviewConfig, meta *model.ChangeMetadata) ([]model.Finding, []model.AnalyzerFailure)
}

// Service drives the full review pipeline: fetch, parse, analyze,
// format, persist.
type Service struct {
	cfg       Config
	fetcher   ChangeFetcher
	parser    *diff.Parser
	orch      Orchestrator
	formatter *report.Formatter
	store     store.Store
	inflight  *abstract.SafeMap[string, model.ReviewStatus]
	log       logze.Logger

	failedMu sync.Mutex
	failed   []string
}

func New(cfg Config, fetcher ChangeFetcher, orch Orchestrator, reviewStore store.Store) (*Service, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, err
	}
	return &Service{
		cfg:       cfg,
		fetcher:   fetcher,
		parser:    diff.NewParser(),
		orch:      orch,
		formatter: report.NewFormatter(),
		store:     reviewStore,
		inflight:  abstract.NewSafeMap[string, model.ReviewStatus](),
		log:       logze.With("component", "review_service"),
	}, nil
}

// Review runs the pipeline end to end and returns the persisted
// result. A store failure fails the review; a cancelled run is never
// persisted.
func (s *Service) Review(ctx context.Context, source model.ChangeSource, cfg model.ReviewConfig) (*model.ReviewResult, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReviewTimeout)
	defer cancel()

	reviewID := uuid.NewString()
	s.inflight.Set(reviewID, model.StatusInProgress)

	log := s.log.WithFields("review_id", reviewID)
	start := time.Now()

	meta, diffText, err := s.resolveSource(ctx, source)
	if err != nil {
		s.markFailed(reviewID)
		return nil, err
	}

	parsed, err := s.parser.Parse(diffText)
	if err != nil {
		s.markFailed(reviewID)
		if errm.Is(err, diff.ErrUnrecognizable) {
			return nil, model.NewValidationError("diff content is not a recognizable unified diff")
		}
		return nil, errm.Wrap(err, "failed to parse diff")
	}

	if err := s.checkLimits(parsed); err != nil {
		s.markFailed(reviewID)
		return nil, err
	}

	var findings []model.Finding
	var failures []model.AnalyzerFailure
	if parsed.FilesAnalyzed() > 0 {
		findings, failures = s.orch.Run(ctx, parsed, cfg, meta)
	} else {
		log.Info("nothing to analyze, completing with empty review")
	}

	formatted := s.formatter.Generate(findings, failures, parsed, cfg)

	result := &model.ReviewResult{
		ReviewID:  reviewID,
		Metadata:  meta,
		CommitSHA: commitSHA(meta),
		Config:    cfg,
		Findings:  filterByThreshold(findings, cfg.SeverityThreshold),
		Summary:   formatted.Summary,
		Failures:  failures,
		Markdown:  formatted.Markdown,
		CreatedAt: time.Now().UTC(),
	}

	// A cancelled review must not land in the store.
	if err := ctx.Err(); err != nil {
		s.markFailed(reviewID)
		return nil, errm.Wrap(err, "review cancelled")
	}
	if err := s.store.Save(ctx, result); err != nil {
		s.markFailed(reviewID)
		return nil, errm.Wrap(err, "failed to persist review")
	}
	// Persisted runs answer status from the store.
	s.inflight.Delete(reviewID)

	log.Info("review completed",
		"findings", result.Summary.TotalFindings,
		"failures", len(failures),
		"elapsed", time.Since(start).String())

	return result, nil
}

// Get returns a persisted review by ID.
func (s *Service) Get(ctx context.Context, reviewID string) (*model.ReviewResult, error) {
	return s.store.Get(ctx, reviewID)
}

// History lists persisted reviews, newest first.
func (s *Service) History(ctx context.Context, filter store.Filter) ([]*model.ReviewResult, error) {
	return s.store.Query(ctx, filter)
}

// ByPR lists every review of one pull request, newest first.
func (s *Service) ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error) {
	return s.store.ByPR(ctx, repository, prNumber)
}

// Status reports the state of a review: in-flight runs first, then
// the store.
func (s *Service) Status(ctx context.Context, reviewID string) (model.ReviewStatus, error) {
	if status, ok := s.inflight.Lookup(reviewID); ok {
		return status, nil
	}
	if _, err := s.store.Get(ctx, reviewID); err != nil {
		return "", err
	}
	return model.StatusCompleted, nil
}

// markFailed records a terminal failure for Status queries. Failed
// runs are never persisted, so the map is the only place they exist;
// the oldest entries are evicted once the bound is hit.
func (s *Service) markFailed(reviewID string) {
	s.inflight.Set(reviewID, model.StatusFailed)

	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.failed = append(s.failed, reviewID)
	for len(s.failed) > maxFailedStatuses {
		s.inflight.Delete(s.failed[0])
		s.failed = s.failed[1:]
	}
}

func (s *Service) resolveSource(ctx context.Context, source model.ChangeSource) (*model.ChangeMetadata, string, error) {
	if !source.IsRemote() {
		return manualMetadata(source), source.DiffContent, nil
	}
	meta, diffText, err := s.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, "", err
	}
	return meta, diffText, nil
}

func (s *Service) checkLimits(parsed *model.ParsedDiff) error {
	if len(parsed.Files) > s.cfg.MaxFiles {
		return model.NewValidationError("too many files in diff: limit is " + strconv.Itoa(s.cfg.MaxFiles))
	}
	if parsed.LinesChanged() > s.cfg.MaxLines {
		return model.NewValidationError("too many changed lines in diff: limit is " + strconv.Itoa(s.cfg.MaxLines))
	}
	return nil
}

func filterByThreshold(findings []model.Finding, threshold model.Severity) []model.Finding {
	kept := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.Rank() >= threshold.Rank() {
			kept = append(kept, f)
		}
	}
	return kept
}

// manualMetadata keeps caller-supplied labels on raw-diff reviews so
// per-PR and repository history queries can find them.
func manualMetadata(source model.ChangeSource) *model.ChangeMetadata {
	if source.Repository == "" && source.PRNumber <= 0 {
		return nil
	}
	return &model.ChangeMetadata{
		Repository: source.Repository,
		PRNumber:   source.PRNumber,
	}
}

func commitSHA(meta *model.ChangeMetadata) string {
	if meta == nil {
		return ""
	}
	return meta.CommitSHA
}
