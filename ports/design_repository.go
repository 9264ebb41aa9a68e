package ports

import (
	"context"

	"trialsim/domain/core"
	"trialsim/domain/trial"
)

// DesignRepository persists trial design schemas
type DesignRepository interface {
	SaveDesign(ctx context.Context, d *trial.Design) error
	GetDesign(ctx context.Context, id core.DesignID) (*trial.Design, error)
	ListDesigns(ctx context.Context, limit int) ([]*trial.Design, error)
}
