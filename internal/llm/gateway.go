package llm

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/maxbolgarin/cliex"
	"github.com/maxbolgarin/critique/internal/llm/gemini"
	"github.com/maxbolgarin/critique/internal/llm/openai"
	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
)

// RedactionMarker replaces credential material anywhere it could leak
// into an error message or a log field.
const RedactionMarker = "[REDACTED]"

// agentModels binds an agent ID to the model it should run on.
// The security agent gets a stronger model; everyone else shares the
// default. An explicit Config.Model overrides the whole table.
var agentModels = map[BackendType]map[string]string{
	Gemini: {
		"security": "gemini-2.5-pro",
		"default":  "gemini-2.5-flash",
	},
	OpenAI: {
		"security": "gpt-4o",
		"default":  "gpt-4o-mini",
	},
}

// Gateway is the single entry point for LLM calls. It owns model
// selection, retries with backoff and credential redaction; analyzers
// never see the raw backend.
type Gateway struct {
	cfg     Config
	api     model.ModelAPI
	logger  logze.Logger
	secrets []string
	calls   atomic.Int64
}

func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}

	cli, err := cliex.NewWithConfig(cliex.Config{
		BaseURL:        cfg.BaseURL,
		UserAgent:      cfg.UserAgent,
		ProxyAddress:   cfg.ProxyURL,
		RequestTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, errm.Wrap(err, "failed to create HTTP client")
	}

	modelCfg := model.ModelConfig{
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		URL:      cfg.BaseURL,
		ProxyURL: cfg.ProxyURL,
		IsTest:   cfg.IsTest,
	}

	g := &Gateway{
		cfg:     cfg,
		logger:  logze.With("component", "llm_gateway"),
		secrets: []string{cfg.APIKey},
	}

	switch cfg.Type {
	case Gemini:
		g.api, err = gemini.New(ctx, modelCfg)
	case OpenAI:
		g.api, err = openai.New(ctx, cli, modelCfg)
	default:
		return nil, errm.Errorf("unsupported llm backend type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errm.Wrap(g.redactErr(err), "failed to create backend")
	}

	return g, nil
}

// NewWithAPI builds a gateway on top of a ready backend. Used by tests
// and by callers that manage backend construction themselves.
func NewWithAPI(cfg Config, api model.ModelAPI) (*Gateway, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, errm.Wrap(err, "validate config")
	}
	return &Gateway{
		cfg:     cfg,
		api:     api,
		logger:  logze.With("component", "llm_gateway"),
		secrets: []string{cfg.APIKey},
	}, nil
}

// Invoke sends one prompt pair to the model bound to agentID and
// returns the raw text reply. Transport and rate-limit failures are
// retried with exponential backoff; auth and deterministic client
// errors are not. Every returned error is an *Error with a redacted
// message.
func (g *Gateway) Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string) (string, error) {
	req := model.ModelRequest{
		SystemPrompt: systemPrompt,
		Prompt:       userPrompt,
		Model:        g.modelFor(agentID),
		MaxTokens:    g.cfg.MaxTokens,
		Temperature:  g.cfg.Temperature,
		ResponseType: "application/json",
	}

	var lastErr *Error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", &Error{Kind: KindTimeout, Message: "context done before retry: " + g.redact(ctx.Err().Error())}
			case <-time.After(g.backoff(attempt)):
			}
		}

		resp, err := g.api.CallModel(ctx, req)
		if err == nil {
			if resp.Content == "" {
				return "", &Error{Kind: KindParse, Message: "empty response from model"}
			}
			return resp.Content, nil
		}

		kind := classify(err)
		lastErr = &Error{Kind: kind, Message: g.redact(err.Error())}
		if !retryable(kind) {
			return "", lastErr
		}
		g.logger.Warn("model call failed, retrying",
			"agent", agentID, "model", req.Model,
			"attempt", attempt+1, "kind", string(kind),
			"error", lastErr.Message)
	}

	return "", lastErr
}

func (g *Gateway) modelFor(agentID string) string {
	if g.cfg.Model != "" {
		return g.cfg.Model
	}
	table := agentModels[g.cfg.Type]
	return lang.Check(table[agentID], table["default"])
}

// backoff is delay*2^(attempt-1) plus a small deterministic jitter
// derived from the call counter, capped at maxRetryJitter.
func (g *Gateway) backoff(attempt int) time.Duration {
	delay := g.cfg.RetryDelay << (attempt - 1)
	jitter := time.Duration(g.calls.Add(1)*37%int64(maxRetryJitter/time.Millisecond)) * time.Millisecond
	return delay + jitter
}

func (g *Gateway) redact(msg string) string {
	for _, secret := range g.secrets {
		if secret == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, secret, RedactionMarker)
	}
	return msg
}

func (g *Gateway) redactErr(err error) error {
	if err == nil {
		return nil
	}
	return errm.New(g.redact(err.Error()))
}
