package inventory

import (
	"context"

	"github.com/slok/runnables/internal/model"
)

// Repository is the read only source of runnable definitions.
type Repository interface {
	// ListRunnables returns all the runnables in definition order.
	ListRunnables(ctx context.Context) ([]model.Runnable, error)
	// GetRunnable returns a runnable by name.
	GetRunnable(ctx context.Context, name string) (*model.Runnable, error)
}
