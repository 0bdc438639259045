package storage

import (
	"context"

	"github.com/slok/runnables/internal/model"
)

// RunRepository is the interface for the run history persistence.
type RunRepository interface {
	CreateRun(ctx context.Context, r model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts ListRunsOpts) ([]model.Run, error)
	UpdateRun(ctx context.Context, r model.Run) error
	DeleteRun(ctx context.Context, id string) error
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --filename mocks.go --name RunRepository --structname MockRunRepository

// ListRunsOpts are the filters used when listing runs. Runs are returned newest first.
type ListRunsOpts struct {
	// RunnableName returns only the runs of this runnable if set.
	RunnableName string
	// Status returns only the runs with this status if set.
	Status model.RunStatus
	// Limit is the max number of runs returned, 0 means no limit.
	Limit int
}

// Match returns true if the run passes the filters.
func (o ListRunsOpts) Match(r model.Run) bool {
	if o.RunnableName != "" && r.RunnableName != o.RunnableName {
		return false
	}
	if o.Status != "" && r.Status != o.Status {
		return false
	}
	return true
}
