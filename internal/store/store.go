package store

import (
	"context"
	"time"

	"github.com/maxbolgarin/critique/internal/model"
	"github.com/maxbolgarin/errm"
)

// ErrNotFound is returned when a review ID is unknown.
var ErrNotFound = errm.New("review not found")

// Filter narrows a history query. Zero values mean "no constraint".
type Filter struct {
	Repository  string
	PRNumber    int
	Start       time.Time
	End         time.Time
	MinSeverity model.Severity
	Category    model.Category
	Limit       int
	Offset      int
}

// Store persists review results. Saving is atomic per result: either
// the review lands with all its findings or not at all.
type Store interface {
	Save(ctx context.Context, result *model.ReviewResult) error
	Get(ctx context.Context, reviewID string) (*model.ReviewResult, error)
	Query(ctx context.Context, filter Filter) ([]*model.ReviewResult, error)
	ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error)
	Ping(ctx context.Context) error
	Close() error
}
