package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"trialsim/domain/core"
	"trialsim/domain/run"
	apperrors "trialsim/internal/errors"
	"trialsim/models"
	"trialsim/ports"

	"github.com/jmoiron/sqlx"
)

const runColumns = `id, kind, seed, fingerprint, code_version, params, result, report, duration_ms, created_at`

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// SaveRun stores a run. Params and Result are written through JSONBMap's Valuer.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, sr *models.SimulationRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO simulation_runs (`+runColumns+`)
		VALUES (:id, :kind, :seed, :fingerprint, :code_version, :params, :result, :report, :duration_ms, :created_at)
	`, sr)
	if err != nil {
		return apperrors.DatabaseError("save simulation run", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*models.SimulationRun, error) {
	var sr models.SimulationRun
	err := r.db.GetContext(ctx, &sr, `
		SELECT `+runColumns+`
		FROM simulation_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("get simulation run", err)
	}
	return &sr, nil
}

// ListRuns returns the newest runs first, optionally filtered by kind
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, kind run.Kind, limit int) ([]*models.SimulationRun, error) {
	query := `SELECT ` + runColumns + ` FROM simulation_runs`
	var args []interface{}
	if kind != "" {
		query += ` WHERE kind = $1`
		args = append(args, kind)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	var runs []*models.SimulationRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, apperrors.DatabaseError("list simulation runs", err)
	}
	return runs, nil
}
