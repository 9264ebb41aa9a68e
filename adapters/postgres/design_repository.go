package postgres

import (
	"context"
	"database/sql"
	"errors"

	"trialsim/domain/core"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
	"trialsim/models"
	"trialsim/ports"

	"github.com/jmoiron/sqlx"
)

// DesignRepositoryImpl implements DesignRepository for PostgreSQL
type DesignRepositoryImpl struct {
	db *sqlx.DB
}

// NewDesignRepository creates a new PostgreSQL design repository
func NewDesignRepository(db *sqlx.DB) ports.DesignRepository {
	return &DesignRepositoryImpl{db: db}
}

// SaveDesign upserts a design by ID
func (r *DesignRepositoryImpl) SaveDesign(ctx context.Context, d *trial.Design) error {
	rec, err := models.NewTrialDesignRecord(d)
	if err != nil {
		return apperrors.Wrap(err, "encode trial design")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO trial_designs (id, name, document, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, document = EXCLUDED.document
	`, rec.ID, rec.Name, rec.Document, rec.CreatedAt)
	if err != nil {
		return apperrors.DatabaseError("save trial design", err)
	}
	return nil
}

// GetDesign retrieves a design by ID
func (r *DesignRepositoryImpl) GetDesign(ctx context.Context, id core.DesignID) (*trial.Design, error) {
	var rec models.TrialDesignRecord
	err := r.db.GetContext(ctx, &rec, `
		SELECT id, name, document, created_at
		FROM trial_designs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrDesignNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("get trial design", err)
	}
	return rec.Design()
}

// ListDesigns returns the newest designs first
func (r *DesignRepositoryImpl) ListDesigns(ctx context.Context, limit int) ([]*trial.Design, error) {
	query := `SELECT id, name, document, created_at FROM trial_designs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var recs []models.TrialDesignRecord
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, apperrors.DatabaseError("list trial designs", err)
	}
	designs := make([]*trial.Design, 0, len(recs))
	for i := range recs {
		d, err := recs[i].Design()
		if err != nil {
			return nil, err
		}
		designs = append(designs, d)
	}
	return designs, nil
}
