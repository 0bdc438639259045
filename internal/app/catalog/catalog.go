package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/slok/runnables/internal/inventory"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
)

// ScheduleChecker knows if a runnable is underway.
type ScheduleChecker interface {
	WasScheduled(runnableName string) bool
}

// ServiceConfig is the configuration for the catalog service.
type ServiceConfig struct {
	Inventory inventory.Repository
	// Scheduled is optional, without it all runnables are available.
	Scheduled ScheduleChecker
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Inventory == nil {
		return fmt.Errorf("inventory is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Catalog"})
	return nil
}

// Service lists the runnables that can be spawned.
type Service struct {
	inventory inventory.Repository
	scheduled ScheduleChecker
	logger    log.Logger
}

// NewService creates a new catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		inventory: cfg.Inventory,
		scheduled: cfg.Scheduled,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the list request parameters.
type Request struct {
	// Query only returns the runnables whose display name or name contains it, case insensitive.
	Query string
	// HideScheduled hides the runnables that are underway.
	HideScheduled bool
}

// Entry is a runnable of the catalog.
type Entry struct {
	Runnable model.Runnable
	// Scheduled is true if the runnable is underway.
	Scheduled bool
}

// List lists the runnables in definition order.
func (s *Service) List(ctx context.Context, req Request) ([]Entry, error) {
	runnables, err := s.inventory.ListRunnables(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list runnables: %w", err)
	}

	query := strings.ToLower(strings.TrimSpace(req.Query))
	entries := make([]Entry, 0, len(runnables))
	for _, r := range runnables {
		if query != "" && !matches(r, query) {
			continue
		}

		scheduled := s.scheduled != nil && s.scheduled.WasScheduled(r.Name)
		if scheduled && req.HideScheduled {
			continue
		}

		entries = append(entries, Entry{Runnable: r, Scheduled: scheduled})
	}

	s.logger.Debugf("found %d runnables", len(entries))
	return entries, nil
}

func matches(r model.Runnable, query string) bool {
	return strings.Contains(strings.ToLower(r.DisplayName()), query) ||
		strings.Contains(strings.ToLower(r.Name), query)
}
