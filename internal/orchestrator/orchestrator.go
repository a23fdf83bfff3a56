package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
	"github.com/maxbolgarin/lang"
	"github.com/maxbolgarin/logze/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	defaultAnalyzerTimeout = 300 * time.Second
	defaultPoolSize        = 4
)

// Config represents orchestrator configuration.
type Config struct {
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout" env:"ORCHESTRATOR_ANALYZER_TIMEOUT"`
	PoolSize        int           `yaml:"pool_size" env:"ORCHESTRATOR_POOL_SIZE"`
}

func (c *Config) PrepareAndValidate() error {
	c.AnalyzerTimeout = lang.Check(c.AnalyzerTimeout, defaultAnalyzerTimeout)
	c.PoolSize = lang.Check(c.PoolSize, defaultPoolSize)
	return nil
}

// Orchestrator fans analyzers out over one ReviewContext and collects
// findings with failure isolation: one analyzer going down never drops
// the findings of the others.
type Orchestrator struct {
	cfg       Config
	analyzers []model.Analyzer
	pool      *ants.Pool
	log       logze.Logger
}

func New(cfg Config, analyzers []model.Analyzer) (*Orchestrator, error) {
	if err := cfg.PrepareAndValidate(); err != nil {
		return nil, err
	}
	if len(analyzers) == 0 {
		return nil, errm.New("at least one analyzer is required")
	}

	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, errm.Wrap(err, "failed to create worker pool")
	}

	return &Orchestrator{
		cfg:       cfg,
		analyzers: analyzers,
		pool:      pool,
		log:       logze.With("component", "orchestrator"),
	}, nil
}

// Stop releases the worker pool.
func (o *Orchestrator) Stop() {
	o.pool.Release()
}

type analyzerOutcome struct {
	category model.Category
	findings []model.Finding
	failure  *model.AnalyzerFailure
}

// Run executes every enabled analyzer concurrently over the same
// parsed diff and awaits them all. Analyzers are never cancelled
// because a sibling failed. The returned findings are deterministic:
// sorted by file, line, severity descending, agent source.
func (o *Orchestrator) Run(ctx context.Context, parsed *model.ParsedDiff, cfg model.ReviewConfig, meta *model.ChangeMetadata) ([]model.Finding, []model.AnalyzerFailure) {
	reviewCtx := &model.ReviewContext{
		Files:    parsed.Files,
		Config:   cfg,
		Metadata: meta,
	}

	active := make([]model.Analyzer, 0, len(o.analyzers))
	for _, a := range o.analyzers {
		if cfg.IsEnabled(a.Category()) {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}

	outcomes := make([]analyzerOutcome, len(active))
	var wg sync.WaitGroup

	for i, a := range active {
		wg.Add(1)
		i, a := i, a
		err := o.pool.Submit(func() {
			defer wg.Done()
			outcomes[i] = o.runOne(ctx, a, reviewCtx)
		})
		if err != nil {
			// Pool rejection is a failure of this analyzer only.
			outcomes[i] = analyzerOutcome{
				category: a.Category(),
				failure: &model.AnalyzerFailure{
					Category: a.Category(),
					Kind:     model.FailureError,
					Message:  "failed to schedule analyzer: " + err.Error(),
				},
			}
			wg.Done()
		}
	}
	wg.Wait()

	var findings []model.Finding
	var failures []model.AnalyzerFailure
	for _, out := range outcomes {
		if out.failure != nil {
			failures = append(failures, *out.failure)
			continue
		}
		findings = append(findings, out.findings...)
	}

	findings = dropOutOfRange(findings, parsed, o.log)
	sortFindings(findings)
	return findings, failures
}

// runOne executes a single analyzer under its own deadline with a
// panic guard.
func (o *Orchestrator) runOne(ctx context.Context, a model.Analyzer, reviewCtx *model.ReviewContext) (out analyzerOutcome) {
	category := a.Category()
	out.category = category

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("analyzer panicked", "category", string(category), "panic", fmt.Sprint(r))
			out.findings = nil
			out.failure = &model.AnalyzerFailure{
				Category: category,
				Kind:     model.FailureCrash,
				Message:  fmt.Sprintf("analyzer panicked: %v", r),
			}
		}
	}()

	analyzerCtx, cancel := context.WithTimeout(ctx, o.cfg.AnalyzerTimeout)
	defer cancel()

	start := time.Now()
	findings, err := a.Analyze(analyzerCtx, reviewCtx)
	if err != nil {
		kind := model.FailureError
		if errors.Is(err, context.DeadlineExceeded) || analyzerCtx.Err() != nil {
			kind = model.FailureTimeout
		}
		o.log.Warn("analyzer failed", "category", string(category),
			"kind", string(kind), "elapsed", time.Since(start).String(), "error", err.Error())
		out.failure = &model.AnalyzerFailure{
			Category: category,
			Kind:     kind,
			Message:  err.Error(),
		}
		return out
	}

	o.log.Info("analyzer finished", "category", string(category),
		"findings", len(findings), "elapsed", time.Since(start).String())
	out.findings = findings
	return out
}

// dropOutOfRange removes findings pointing at lines the diff never
// touched. Models hallucinate line numbers; those findings are noise.
func dropOutOfRange(findings []model.Finding, parsed *model.ParsedDiff, log logze.Logger) []model.Finding {
	kept := findings[:0]
	for _, f := range findings {
		file := parsed.File(f.FilePath)
		if file == nil || !file.HasLine(f.LineNumber) {
			log.Debug("dropping finding outside the diff",
				"file", f.FilePath, "line", f.LineNumber, "agent", f.AgentSource)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func sortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Severity != b.Severity {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.AgentSource < b.AgentSource
	})
}
