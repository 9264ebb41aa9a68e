package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"trialsim/domain/core"
	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
	"trialsim/ports"
)

// DesignService validates, stores and exports trial design schemas.
type DesignService struct {
	repo   ports.DesignRepository
	logger *internal.Logger
	now    func() time.Time
}

// NewDesignService creates a design service
func NewDesignService(repo ports.DesignRepository) *DesignService {
	return &DesignService{
		repo:   repo,
		logger: internal.NewComponentLogger("DesignService"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create validates d, attaches the adaptive features when it is adaptive,
// assigns an ID and stores it.
func (s *DesignService) Create(ctx context.Context, d trial.Design) (*trial.Design, error) {
	if err := d.Validate(); err != nil {
		return nil, &apperrors.AppError{Code: apperrors.CodeInvalidInput, Message: "design rejected", Cause: err}
	}
	if d.Adaptive || d.Design == trial.DesignAdaptive || d.Randomization == trial.RandomizationResponseAdaptive {
		d.Adaptive = true
		d.AdaptiveFeatures = append([]string(nil), trial.DefaultAdaptiveFeatures...)
	} else {
		d.AdaptiveFeatures = []string{}
	}
	d.ID = core.NewDesignID()
	d.CreatedAt = s.now()

	if err := s.repo.SaveDesign(ctx, &d); err != nil {
		return nil, apperrors.Wrap(err, "save trial design")
	}
	s.logger.Info("stored design %s (%q, %d arms, N=%d)", d.ID, d.Name, d.NumberOfArms, d.TargetSampleSize)
	return &d, nil
}

// Get loads a design, mapping a missing ID onto NOT_FOUND.
func (s *DesignService) Get(ctx context.Context, id core.DesignID) (*trial.Design, error) {
	d, err := s.repo.GetDesign(ctx, id)
	if errors.Is(err, core.ErrDesignNotFound) {
		return nil, apperrors.NotFound("trial design " + id.String())
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "load trial design")
	}
	return d, nil
}

// List returns the newest designs first.
func (s *DesignService) List(ctx context.Context, limit int) ([]*trial.Design, error) {
	designs, err := s.repo.ListDesigns(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "list trial designs")
	}
	return designs, nil
}

// Export renders the design as the indented JSON schema document.
func (s *DesignService) Export(d *trial.Design) ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(err, "export trial design")
	}
	return out, nil
}
