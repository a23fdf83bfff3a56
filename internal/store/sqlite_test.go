package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testResult(id string, meta *model.ChangeMetadata, createdAt time.Time, findings ...model.Finding) *model.ReviewResult {
	cfg := model.ReviewConfig{}
	if err := cfg.PrepareAndValidate(); err != nil {
		panic(err)
	}
	result := &model.ReviewResult{
		ReviewID: id,
		Metadata: meta,
		Config:   cfg,
		Findings: findings,
		Summary: model.ReviewSummary{
			TotalFindings: len(findings),
			FilesAnalyzed: 1,
			LinesChanged:  3,
			BySeverity:    map[model.Severity]int{},
			ByCategory:    map[model.Category]int{},
		},
		Markdown:  "# Code Review Results",
		CreatedAt: createdAt,
	}
	if meta != nil {
		result.CommitSHA = meta.CommitSHA
	}
	for _, f := range findings {
		result.Summary.BySeverity[f.Severity]++
		result.Summary.ByCategory[f.Category]++
	}
	return result
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta := &model.ChangeMetadata{
		Repository: "acme/api",
		PRNumber:   42,
		Title:      "Add rate limiting",
		Author:     "dev",
		CommitSHA:  "abc123",
		BaseBranch: "main",
		HeadBranch: "feature/rl",
	}
	findings := []model.Finding{
		{FilePath: "main.go", LineNumber: 10, Severity: model.SeverityHigh, Category: model.CategoryLogic,
			Description: "off by one", Suggestion: "use <=", AgentSource: "logic_analyzer"},
		{FilePath: "main.go", LineNumber: 20, Severity: model.SeverityLow, Category: model.CategoryReadability,
			Description: "unclear name", AgentSource: "readability_analyzer"},
	}
	in := testResult("rev-1", meta, time.Now().UTC().Truncate(time.Second), findings...)
	in.Failures = []model.AnalyzerFailure{
		{Category: model.CategorySecurity, Kind: model.FailureTimeout, Message: "timed out"},
	}

	require.NoError(t, s.Save(ctx, in))

	out, err := s.Get(ctx, "rev-1")
	require.NoError(t, err)

	assert.Equal(t, in.ReviewID, out.ReviewID)
	assert.Equal(t, in.CommitSHA, out.CommitSHA)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.Equal(t, in.Config, out.Config)
	assert.Equal(t, in.Findings, out.Findings)
	assert.Equal(t, in.Summary, out.Summary)
	assert.Equal(t, in.Failures, out.Failures)
	assert.Equal(t, in.Markdown, out.Markdown)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveManualReviewWithoutMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testResult("rev-manual", nil, time.Now().UTC())))

	out, err := s.Get(ctx, "rev-manual")
	require.NoError(t, err)
	assert.Nil(t, out.Metadata)
	assert.Empty(t, out.Failures)
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	metaA := &model.ChangeMetadata{Repository: "acme/api", PRNumber: 1}
	metaB := &model.ChangeMetadata{Repository: "acme/web", PRNumber: 2}

	require.NoError(t, s.Save(ctx, testResult("r1", metaA, base,
		model.Finding{FilePath: "a.go", LineNumber: 1, Severity: model.SeverityCritical, Category: model.CategorySecurity, Description: "x"})))
	require.NoError(t, s.Save(ctx, testResult("r2", metaA, base.Add(time.Hour),
		model.Finding{FilePath: "a.go", LineNumber: 2, Severity: model.SeverityLow, Category: model.CategoryReadability, Description: "y"})))
	require.NoError(t, s.Save(ctx, testResult("r3", metaB, base.Add(2*time.Hour))))

	t.Run("by repository", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{Repository: "acme/api"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		// Newest first.
		assert.Equal(t, "r2", got[0].ReviewID)
		assert.Equal(t, "r1", got[1].ReviewID)
	})

	t.Run("by pr number", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{Repository: "acme/web", PRNumber: 2})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r3", got[0].ReviewID)
	})

	t.Run("by min severity", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{MinSeverity: model.SeverityHigh})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r1", got[0].ReviewID)
	})

	t.Run("by category", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{Category: model.CategoryReadability})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r2", got[0].ReviewID)
	})

	t.Run("by date range", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute)})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r2", got[0].ReviewID)
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := s.Query(ctx, Filter{Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r3", got[0].ReviewID)

		got, err = s.Query(ctx, Filter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "r2", got[0].ReviewID)
	})
}

func TestByPR(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meta := &model.ChangeMetadata{Repository: "acme/api", PRNumber: 7}

	require.NoError(t, s.Save(ctx, testResult("first", meta, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))))
	require.NoError(t, s.Save(ctx, testResult("second", meta, time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC))))

	got, err := s.ByPR(ctx, "acme/api", 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].ReviewID)

	got, err = s.ByPR(ctx, "acme/api", 99)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveDuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	result := testResult("dup", nil, time.Now().UTC())
	require.NoError(t, s.Save(ctx, result))
	assert.Error(t, s.Save(ctx, result))
}
