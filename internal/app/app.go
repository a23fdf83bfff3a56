package app

import (
	"context"

	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/critique/internal/analyzer"
	"github.com/maxbolgarin/critique/internal/config"
	"github.com/maxbolgarin/critique/internal/fetcher"
	"github.com/maxbolgarin/critique/internal/llm"
	"github.com/maxbolgarin/critique/internal/orchestrator"
	"github.com/maxbolgarin/critique/internal/server"
	"github.com/maxbolgarin/critique/internal/service"
	"github.com/maxbolgarin/critique/internal/store"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/logze/v2"
)

// Critique wires the review pipeline together: LLM gateway,
// analyzers, orchestrator, fetcher, store, service and API server.
type Critique struct {
	gateway *llm.Gateway
	orch    *orchestrator.Orchestrator
	store   store.Store
	service *service.Service
	server  *server.Server

	cfg config.Config
	log logze.Logger
}

func New(ctx contem.Context, cfg config.Config) (*Critique, error) {
	app := &Critique{
		cfg: cfg,
		log: logze.With("component", "app"),
	}

	if err := app.init(ctx, cfg); err != nil {
		return nil, errm.Wrap(err, "failed to initialize service")
	}

	return app, nil
}

// Start starts the API server. Blocks until the listener fails.
func (a *Critique) Start(ctx context.Context) error {
	if err := a.server.Start(ctx); err != nil {
		return errm.Wrap(err, "failed to start API server")
	}
	return nil
}

// Service exposes the review service for non-HTTP callers.
func (a *Critique) Service() *service.Service {
	return a.service
}

func (a *Critique) init(ctx contem.Context, cfg config.Config) (err error) {
	a.gateway, err = llm.New(ctx, cfg.LLM)
	if err != nil {
		return errm.Wrap(err, "failed to create LLM gateway")
	}

	changeFetcher, err := fetcher.New(cfg.Fetcher)
	if err != nil {
		return errm.Wrap(err, "failed to create change fetcher")
	}

	a.orch, err = orchestrator.New(cfg.Orchestrator, analyzer.BuildAll(a.gateway))
	if err != nil {
		return errm.Wrap(err, "failed to create orchestrator")
	}
	ctx.Add(func(context.Context) error {
		a.orch.Stop()
		return nil
	})

	a.store, err = store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return errm.Wrap(err, "failed to open review store")
	}
	ctx.Add(func(context.Context) error {
		return a.store.Close()
	})

	a.service, err = service.New(cfg.Review, changeFetcher, a.orch, a.store)
	if err != nil {
		return errm.Wrap(err, "failed to create review service")
	}

	a.server, err = server.New(cfg.Server, a.service, a.store)
	if err != nil {
		return errm.Wrap(err, "failed to create API server")
	}
	ctx.Add(a.server.Stop)

	return nil
}
