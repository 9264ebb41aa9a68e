package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/run"
	"trialsim/internal"
	"trialsim/internal/config"
	apperrors "trialsim/internal/errors"
	"trialsim/internal/metrics"
	"trialsim/models"
	"trialsim/ports"
)

// Defaults fill request fields the caller leaves unset.
type Defaults struct {
	Samples       int     `json:"samples"`
	Workers       int     `json:"workers"`
	Seed          int64   `json:"seed"`
	CredibleLevel float64 `json:"credible_level"`
	Alpha         float64 `json:"alpha"`
}

// DefaultsFromConfig copies the simulation section of cfg.
func DefaultsFromConfig(cfg *config.Config) Defaults {
	return Defaults{
		Samples:       cfg.Simulation.MonteCarloSamples,
		Workers:       cfg.Simulation.Workers,
		Seed:          cfg.Simulation.DefaultSeed,
		CredibleLevel: cfg.Simulation.CredibleLevel,
		Alpha:         cfg.Simulation.Alpha,
	}
}

func (d Defaults) withFallbacks() Defaults {
	if d.Samples <= 0 {
		d.Samples = engine.DefaultSamples
	}
	if d.Workers <= 0 {
		d.Workers = 4
	}
	if d.CredibleLevel <= 0 || d.CredibleLevel >= 1 {
		d.CredibleLevel = 0.95
	}
	if d.Alpha <= 0 || d.Alpha >= 1 {
		d.Alpha = 0.05
	}
	return d
}

// Deps are the collaborators shared by the simulation services. Runs and
// Metrics are optional; without Runs nothing is persisted.
type Deps struct {
	RNG      ports.RNGPort
	Runs     ports.RunRepository
	Metrics  *metrics.Metrics
	Defaults Defaults
}

// recorder wraps one service run: it fixes the manifest, hands out seeded
// streams and persists the outcome.
type recorder struct {
	deps     Deps
	logger   *internal.Logger
	manifest *run.Manifest
	params   interface{}
	started  time.Time
}

func (d Deps) begin(kind run.Kind, seed int64, params interface{}, logger *internal.Logger) (*recorder, error) {
	if d.RNG == nil {
		return nil, apperrors.New(apperrors.CodeInternalError, "no RNG port configured")
	}
	m, err := run.NewManifest(kind, seed, params)
	if err != nil {
		return nil, apperrors.Wrap(err, "create run manifest")
	}
	logger.Debug("run %s started (seed=%d fingerprint=%.12s)", m.RunID, seed, m.Fingerprint)
	return &recorder{deps: d, logger: logger, manifest: m, params: params, started: time.Now()}, nil
}

// stream derives a generator from the run fingerprint rather than the run ID,
// so repeating a run with the same seed and parameters repeats every draw.
func (r *recorder) stream(ctx context.Context, stage, key string) (*rand.Rand, error) {
	src, err := r.deps.RNG.Stream(ctx, r.manifest.Fingerprint.String(), stage, key, r.manifest.Seed)
	if err != nil {
		return nil, apperrors.Wrapf(err, "open %s stream", stage)
	}
	return src, nil
}

// fail records a failed run in metrics and passes err through.
func (r *recorder) fail(err error) error {
	r.deps.Metrics.ObserveRun(string(r.manifest.Kind), time.Since(r.started), err)
	if apperrors.IsInvalidParameter(err) {
		r.deps.Metrics.InvalidParameter(string(r.manifest.Kind))
	}
	r.logger.Warn("run %s failed: %v", r.manifest.RunID, err)
	return err
}

// finish persists the run and returns the stored record, or nil without a store.
func (r *recorder) finish(ctx context.Context, result interface{}, report string) (*models.SimulationRun, error) {
	elapsed := time.Since(r.started)
	r.deps.Metrics.ObserveRun(string(r.manifest.Kind), elapsed, nil)
	r.logger.Info("run %s finished in %s", r.manifest.RunID, elapsed.Round(time.Millisecond))

	if r.deps.Runs == nil {
		return nil, nil
	}
	sr, err := models.NewSimulationRun(r.manifest, r.params, result, report, elapsed)
	if err != nil {
		return nil, apperrors.Wrap(err, "encode simulation run")
	}
	if err := r.deps.Runs.SaveRun(ctx, sr); err != nil {
		return nil, apperrors.Wrap(err, fmt.Sprintf("persist %s run", r.manifest.Kind))
	}
	return sr, nil
}

func resolveSeed(seed *int64, fallback int64) int64 {
	if seed != nil {
		return *seed
	}
	return fallback
}
