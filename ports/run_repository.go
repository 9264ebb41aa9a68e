package ports

import (
	"context"

	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/models"
)

// RunRepository persists completed simulation runs
type RunRepository interface {
	// SaveRun stores a run; the ID must already be set
	SaveRun(ctx context.Context, r *models.SimulationRun) error

	// GetRun retrieves a run by ID, returning core.ErrRunNotFound when absent
	GetRun(ctx context.Context, id core.RunID) (*models.SimulationRun, error)

	// ListRuns returns the most recent runs first, optionally filtered by kind.
	// An empty kind lists every run.
	ListRuns(ctx context.Context, kind run.Kind, limit int) ([]*models.SimulationRun, error)
}
