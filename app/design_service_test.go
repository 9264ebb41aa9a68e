package app

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/domain/core"
	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
	"trialsim/internal/testkit"
)

func validDesign() trial.Design {
	return trial.Design{
		Name:             "RESPOND-2",
		Phase:            trial.PhaseII,
		Design:           trial.DesignParallel,
		Blinding:         trial.BlindingDoubleBlind,
		Randomization:    trial.RandomizationSimple,
		NumberOfArms:     2,
		TargetSampleSize: 200,
		Endpoints: []trial.Endpoint{
			{Name: "Objective response", Type: trial.EndpointPrimary, MeasurementType: trial.MeasurementBinary},
		},
	}
}

func TestDesignService_CreateAndGet(t *testing.T) {
	svc := NewDesignService(testkit.NewTestKit().DesignRepository())
	ctx := context.Background()

	created, err := svc.Create(ctx, validDesign())
	require.NoError(t, err)
	assert.False(t, created.ID.String() == "")
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.Adaptive)
	assert.Empty(t, created.AdaptiveFeatures)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, got.Name)
	assert.Equal(t, 100, got.PerArm())

	list, err := svc.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDesignService_AdaptiveFeatures(t *testing.T) {
	svc := NewDesignService(testkit.NewTestKit().DesignRepository())

	byDesign := validDesign()
	byDesign.Design = trial.DesignAdaptive
	byRandomization := validDesign()
	byRandomization.Randomization = trial.RandomizationResponseAdaptive
	byFlag := validDesign()
	byFlag.Adaptive = true

	for _, d := range []trial.Design{byDesign, byRandomization, byFlag} {
		created, err := svc.Create(context.Background(), d)
		require.NoError(t, err)
		assert.True(t, created.Adaptive)
		assert.Equal(t, trial.DefaultAdaptiveFeatures, created.AdaptiveFeatures)
	}
}

func TestDesignService_RejectsInvalid(t *testing.T) {
	svc := NewDesignService(testkit.NewTestKit().DesignRepository())

	d := validDesign()
	d.NumberOfArms = 1
	_, err := svc.Create(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrInvalidDesign)
	assert.Contains(t, err.Error(), "number_of_arms")

	d = validDesign()
	d.Endpoints[0].Type = trial.EndpointSecondary
	_, err = svc.Create(context.Background(), d)
	assert.Contains(t, err.Error(), "primary endpoint")
}

func TestDesignService_GetMissing(t *testing.T) {
	svc := NewDesignService(testkit.NewTestKit().DesignRepository())
	_, err := svc.Get(context.Background(), core.NewDesignID())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.GetCode(err))
}

func TestDesignService_Export(t *testing.T) {
	svc := NewDesignService(testkit.NewTestKit().DesignRepository())
	created, err := svc.Create(context.Background(), validDesign())
	require.NoError(t, err)

	doc, err := svc.Export(created)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(doc, &fields))
	assert.Equal(t, "RESPOND-2", fields["trial_name"])
	assert.Equal(t, "Phase II", fields["phase"])
	assert.Equal(t, float64(200), fields["target_sample_size"])
	assert.Equal(t, []interface{}{}, fields["adaptive_features"])
	assert.Contains(t, string(doc), "\n  \"")
}
