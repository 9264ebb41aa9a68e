package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/domain/core"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

func sampleDesign() *trial.Design {
	return &trial.Design{
		ID:               core.DesignID("0190f5c4-0000-7000-8000-0000000000d1"),
		Name:             "REMAP-lite",
		Phase:            trial.PhaseIII,
		Design:           trial.DesignParallel,
		Blinding:         trial.BlindingDoubleBlind,
		Randomization:    trial.RandomizationBlock,
		NumberOfArms:     2,
		TargetSampleSize: 400,
		Endpoints: []trial.Endpoint{
			{Name: "28-day mortality", Type: trial.EndpointPrimary, MeasurementType: trial.MeasurementBinary},
		},
		AdaptiveFeatures: []string{},
		CreatedAt:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestDesignRepository_SaveDesign(t *testing.T) {
	db, mock := setupMockDB(t)
	d := sampleDesign()

	mock.ExpectExec("INSERT INTO trial_designs (.+) ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(string(d.ID), d.Name, sqlmock.AnyArg(), d.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDesignRepository(db).SaveDesign(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDesignRepository_SaveDesign_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectExec("INSERT INTO trial_designs").WillReturnError(assert.AnError)

	err := NewDesignRepository(db).SaveDesign(context.Background(), sampleDesign())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetCode(err))
}

func TestDesignRepository_GetDesign(t *testing.T) {
	d := sampleDesign()
	doc, err := json.Marshal(d)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("SELECT id, name, document, created_at FROM trial_designs WHERE id = \\$1").
			WithArgs(string(d.ID)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "document", "created_at"}).
				AddRow(string(d.ID), d.Name, doc, d.CreatedAt))

		got, err := NewDesignRepository(db).GetDesign(context.Background(), d.ID)
		require.NoError(t, err)
		assert.Equal(t, d, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery("FROM trial_designs").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "document", "created_at"}))

		_, err := NewDesignRepository(db).GetDesign(context.Background(), d.ID)
		assert.ErrorIs(t, err, core.ErrDesignNotFound)
	})
}

func TestDesignRepository_ListDesigns(t *testing.T) {
	d := sampleDesign()
	doc, err := json.Marshal(d)
	require.NoError(t, err)

	db, mock := setupMockDB(t)
	mock.ExpectQuery("FROM trial_designs ORDER BY created_at DESC LIMIT \\$1").
		WithArgs(int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "document", "created_at"}).
			AddRow(string(d.ID), d.Name, doc, d.CreatedAt))

	designs, err := NewDesignRepository(db).ListDesigns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, designs, 1)
	assert.Equal(t, "REMAP-lite", designs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
