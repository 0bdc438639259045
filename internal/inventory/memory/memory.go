package memory

import (
	"context"
	"fmt"

	"github.com/slok/runnables/internal/model"
)

// Repository is an in-memory inventory.Repository.
type Repository struct {
	runnables []model.Runnable
}

// NewRepository creates a new memory inventory with the runnables validated.
func NewRepository(runnables []model.Runnable) (*Repository, error) {
	seen := map[string]bool{}
	for _, r := range runnables {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("invalid runnable: %w", err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("runnable %q: %w", r.Name, model.ErrAlreadyExists)
		}
		seen[r.Name] = true
	}

	return &Repository{runnables: runnables}, nil
}

// ListRunnables returns all runnables.
func (r *Repository) ListRunnables(ctx context.Context) ([]model.Runnable, error) {
	out := make([]model.Runnable, len(r.runnables))
	copy(out, r.runnables)
	return out, nil
}

// GetRunnable returns a runnable by name.
func (r *Repository) GetRunnable(ctx context.Context, name string) (*model.Runnable, error) {
	for _, rn := range r.runnables {
		if rn.Name == name {
			rnCopy := rn
			return &rnCopy, nil
		}
	}

	return nil, fmt.Errorf("runnable %s: %w", name, model.ErrNotFound)
}
