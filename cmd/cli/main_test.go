package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialsim/app"
	apperrors "trialsim/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestBetaCommand(t *testing.T) {
	out, err := execute(t, "beta", "20", "80")
	require.NoError(t, err)
	assert.Contains(t, out, "Beta(20, 80)")
	assert.Contains(t, out, "mean      0.2000")
	assert.Contains(t, out, "(exact)")

	_, err = execute(t, "beta", "0", "1")
	assert.True(t, apperrors.IsInvalidParameter(err))

	_, err = execute(t, "beta", "x", "1")
	assert.Error(t, err)
}

func TestCompareCommand_JSONIsReproducible(t *testing.T) {
	run := func() map[string]float64 {
		out, err := execute(t, "compare", "20", "80", "35", "65", "--samples", "4000", "--json")
		require.NoError(t, err)
		var got map[string]float64
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		return got
	}
	a, b := run(), run()
	assert.Equal(t, a["probability_treatment_better"], b["probability_treatment_better"])
	assert.Greater(t, a["probability_treatment_better"], 0.9)
}

func TestAllocateCommand_ZeroTuning(t *testing.T) {
	out, err := execute(t, "allocate", "2", "50", "50", "2", "--tuning", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "= 0.5000")
}

func TestBoundsCommand(t *testing.T) {
	out, err := execute(t, "bounds", "--family", "pocock", "--analyses", "3", "--json")
	require.NoError(t, err)

	var rows []app.BoundRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.InDelta(t, 2.394, r.EfficacyBound, 1e-3)
	}

	path := filepath.Join(t.TempDir(), "bounds.xlsx")
	out, err = execute(t, "bounds", "--analyses", "4", "--xlsx", path)
	require.NoError(t, err)
	assert.Contains(t, out, "alpha spent")
	assert.FileExists(t, path)

	_, err = execute(t, "bounds", "--family", "haybittle-peto")
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func TestPowerCommand(t *testing.T) {
	out, err := execute(t, "power", "2.5", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Conditional power = 100.00%")

	out, err = execute(t, "power", "1", "0.5", "--effect", "3", "--json")
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Greater(t, got["conditional_power"].(float64), 0.9)

	out, err = execute(t, "power", "0.5", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Conditional power = 0.00%")
	out, err = execute(t, "power", "0.5", "1", "--critical", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "Conditional power = 100.00%")
}

func TestSimulationCommands_RateDefaultsMatchServices(t *testing.T) {
	root := newRootCmd()
	want := map[string][2]float64{
		"bayesian": {app.DefaultControlRate, app.DefaultTreatmentRate},
		"adaptive": {app.DefaultControlRate, app.DefaultTreatmentRate},
		"interim":  {app.DefaultInterimControlRate, app.DefaultInterimTreatmentRate},
	}
	for name, rates := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, strconv.FormatFloat(rates[0], 'g', -1, 64), cmd.Flags().Lookup("control-rate").DefValue, name)
		assert.Equal(t, strconv.FormatFloat(rates[1], 'g', -1, 64), cmd.Flags().Lookup("treatment-rate").DefValue, name)
	}
}

func TestBayesianCommand_FromCounts(t *testing.T) {
	out, err := execute(t, "bayesian",
		"--control-n", "50", "--control-responses", "12",
		"--treatment-n", "50", "--treatment-responses", "21",
		"--samples", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, "# Bayesian comparison")
	assert.Contains(t, out, "P(treatment better)")

	_, err = execute(t, "bayesian", "--control-n", "10", "--control-responses", "11", "--treatment-n", "10")
	assert.Error(t, err)
}

func TestBayesianCommand_FromDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "participants.csv")
	rows := []string{"arm,response", "control,1", "control,0", "control,0", "treatment,1", "treatment,1", "treatment,0"}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))

	out, err := execute(t, "bayesian", "--data", path, "--samples", "1000", "--json")
	require.NoError(t, err)

	var got app.BayesianResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Control.Observed.Successes)
	assert.Equal(t, 3, got.Control.Observed.N())
	assert.Equal(t, 2, got.Treatment.Observed.Successes)
	assert.Equal(t, 3, got.Treatment.Observed.N())
}

func TestAdaptiveCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trajectory.xlsx")
	out, err := execute(t, "adaptive", "--n", "40", "--samples", "200", "--record-every", "10", "--xlsx", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# Response-adaptive randomization")
	assert.FileExists(t, path)

	out, err = execute(t, "adaptive", "--n", "30", "--samples", "200", "--replicates", "5", "--json")
	require.NoError(t, err)
	var rep app.ReplicateResult
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 5, rep.Replicates)
	assert.Empty(t, rep.Runs)

	_, err = execute(t, "adaptive", "--n", "30", "--replicates", "1")
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func TestInterimCommand(t *testing.T) {
	out, err := execute(t, "interim", "--n", "300", "--analyses", "3", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "# Interim monitoring")
	assert.Contains(t, out, "seed 7")
	assert.Contains(t, out, "**Recommendation:**")

	_, err = execute(t, "interim", "--boundary", "wald")
	assert.True(t, apperrors.IsInvalidParameter(err))
}

func TestRunsCommand_InMemoryStoreStartsEmpty(t *testing.T) {
	out, err := execute(t, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs stored.")

	_, err = execute(t, "runs", "not-a-uuid")
	assert.Error(t, err)
}

func TestGenerateThenAnalyze(t *testing.T) {
	for _, ext := range []string{".xlsx", ".csv"} {
		path := filepath.Join(t.TempDir(), "participants"+ext)
		out, err := execute(t, "generate", "--out", path, "--control-n", "40", "--treatment-n", "30", "--seed", "3")
		require.NoError(t, err)
		assert.Contains(t, out, "wrote 70 participants")

		out, err = execute(t, "bayesian", "--data", path, "--samples", "1000", "--json")
		require.NoError(t, err)
		var got app.BayesianResult
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, 40, got.Control.Observed.N(), ext)
		assert.Equal(t, 30, got.Treatment.Observed.N(), ext)
	}

	_, err := execute(t, "generate", "--out", filepath.Join(t.TempDir(), "participants.json"))
	assert.Error(t, err)
}
