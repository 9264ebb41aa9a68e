package app

import (
	"context"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
)

// BayesianService turns observed (or synthetic) two-arm binary data into
// Beta posteriors and compares them.
type BayesianService struct {
	deps   Deps
	logger *internal.Logger
}

// NewBayesianService creates a Bayesian updating service
func NewBayesianService(deps Deps) *BayesianService {
	deps.Defaults = deps.Defaults.withFallbacks()
	return &BayesianService{deps: deps, logger: internal.NewComponentLogger("BayesianService")}
}

// BayesianRequest describes observed data for both arms.
type BayesianRequest struct {
	Prior              trial.PriorName `json:"prior"`
	ControlN           int             `json:"control_n"`
	ControlResponses   int             `json:"control_responses"`
	TreatmentN         int             `json:"treatment_n"`
	TreatmentResponses int             `json:"treatment_responses"`
	CredibleLevel      float64         `json:"credible_level,omitempty"`
	Samples            int             `json:"samples,omitempty"`
	DensitySteps       int             `json:"density_steps,omitempty"`
	Seed               *int64          `json:"seed,omitempty"`
}

// BayesianSimulationRequest draws synthetic responses at the given true rates
// and analyses them like observed data. Unset rates default to 0.4 and 0.6.
type BayesianSimulationRequest struct {
	Prior         trial.PriorName `json:"prior"`
	ControlN      int             `json:"control_n"`
	TreatmentN    int             `json:"treatment_n"`
	ControlRate   *float64        `json:"control_rate,omitempty"`
	TreatmentRate *float64        `json:"treatment_rate,omitempty"`
	CredibleLevel float64         `json:"credible_level,omitempty"`
	Samples       int             `json:"samples,omitempty"`
	DensitySteps  int             `json:"density_steps,omitempty"`
	Seed          *int64          `json:"seed,omitempty"`
}

// True response rates assumed by simulated comparisons and adaptive trials
// when a request leaves them unset.
const (
	DefaultControlRate   = 0.4
	DefaultTreatmentRate = 0.6
)

// ArmPosterior summarises one arm.
type ArmPosterior struct {
	Observed      trial.BinaryOutcomes `json:"observed"`
	Posterior     trial.BetaParams     `json:"posterior"`
	Mean          float64              `json:"mean"`
	Variance      float64              `json:"variance"`
	Interval      trial.Interval       `json:"interval"`
	ExactInterval trial.Interval       `json:"exact_interval"`
}

// BayesianResult is the comparison of the two posteriors.
type BayesianResult struct {
	RunID                      core.RunID           `json:"run_id"`
	Seed                       int64                `json:"seed"`
	Prior                      trial.Prior          `json:"prior"`
	CredibleLevel              float64              `json:"credible_level"`
	Control                    ArmPosterior         `json:"control"`
	Treatment                  ArmPosterior         `json:"treatment"`
	ProbabilityTreatmentBetter float64              `json:"probability_treatment_better"`
	MonteCarloStdError         float64              `json:"monte_carlo_std_error"`
	Samples                    int                  `json:"samples"`
	AbsoluteDifference         float64              `json:"absolute_difference"`
	Density                    []trial.DensityPoint `json:"density,omitempty"`
}

// Analyze computes posteriors for observed data.
func (s *BayesianService) Analyze(ctx context.Context, req BayesianRequest) (*BayesianResult, error) {
	prior, err := lookupPrior(req.Prior)
	if err != nil {
		return nil, err
	}
	control, err := observed("control", req.ControlN, req.ControlResponses)
	if err != nil {
		return nil, err
	}
	treatment, err := observed("treatment", req.TreatmentN, req.TreatmentResponses)
	if err != nil {
		return nil, err
	}
	level, samples, err := s.resolveSettings(req.CredibleLevel, req.Samples, req.DensitySteps)
	if err != nil {
		return nil, err
	}
	req.CredibleLevel, req.Samples = level, samples

	rec, err := s.deps.begin(run.KindBayesian, resolveSeed(req.Seed, s.deps.Defaults.Seed), req, s.logger)
	if err != nil {
		return nil, err
	}
	result, err := s.analyze(ctx, rec, prior, control, treatment, level, samples, req.DensitySteps)
	if err != nil {
		return nil, rec.fail(err)
	}
	if _, err := rec.finish(ctx, result, RenderBayesianMarkdown(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// Simulate draws synthetic responses and analyses them.
func (s *BayesianService) Simulate(ctx context.Context, req BayesianSimulationRequest) (*BayesianResult, error) {
	prior, err := lookupPrior(req.Prior)
	if err != nil {
		return nil, err
	}
	if req.ControlN < 0 || req.TreatmentN < 0 || req.ControlN > engine.MaxOutcomes || req.TreatmentN > engine.MaxOutcomes {
		return nil, apperrors.InvalidParameter("arm sizes must lie in [0, %d], got %d and %d", engine.MaxOutcomes, req.ControlN, req.TreatmentN)
	}
	if req.ControlRate == nil {
		rate := DefaultControlRate
		req.ControlRate = &rate
	}
	if req.TreatmentRate == nil {
		rate := DefaultTreatmentRate
		req.TreatmentRate = &rate
	}
	level, samples, err := s.resolveSettings(req.CredibleLevel, req.Samples, req.DensitySteps)
	if err != nil {
		return nil, err
	}
	req.CredibleLevel, req.Samples = level, samples

	rec, err := s.deps.begin(run.KindBayesian, resolveSeed(req.Seed, s.deps.Defaults.Seed), req, s.logger)
	if err != nil {
		return nil, err
	}

	src, err := rec.stream(ctx, "outcomes", "")
	if err != nil {
		return nil, rec.fail(err)
	}
	control, err := engine.GenerateBinaryOutcomes(src, req.ControlN, *req.ControlRate)
	if err != nil {
		return nil, rec.fail(apperrors.Wrap(err, "control arm"))
	}
	treatment, err := engine.GenerateBinaryOutcomes(src, req.TreatmentN, *req.TreatmentRate)
	if err != nil {
		return nil, rec.fail(apperrors.Wrap(err, "treatment arm"))
	}

	result, err := s.analyze(ctx, rec, prior, control, treatment, level, samples, req.DensitySteps)
	if err != nil {
		return nil, rec.fail(err)
	}
	if _, err := rec.finish(ctx, result, RenderBayesianMarkdown(result)); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BayesianService) analyze(ctx context.Context, rec *recorder, prior trial.Prior, control, treatment trial.BinaryOutcomes, level float64, samples, steps int) (*BayesianResult, error) {
	controlArm, err := summarizeArm(prior.Params, control, level)
	if err != nil {
		return nil, apperrors.Wrap(err, "control posterior")
	}
	treatmentArm, err := summarizeArm(prior.Params, treatment, level)
	if err != nil {
		return nil, apperrors.Wrap(err, "treatment posterior")
	}

	src, err := rec.stream(ctx, "posterior", "")
	if err != nil {
		return nil, err
	}
	p, err := engine.ProbabilityTreatmentBetterParallel(ctx, src.Int63(), controlArm.Posterior, treatmentArm.Posterior, samples, s.deps.Defaults.Workers)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.AddDraws(samples)

	density, err := engine.DensityCurve(controlArm.Posterior, treatmentArm.Posterior, steps)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("P(treatment better)=%.4f over %d draws", p, samples)
	return &BayesianResult{
		RunID:                      rec.manifest.RunID,
		Seed:                       rec.manifest.Seed,
		Prior:                      prior,
		CredibleLevel:              level,
		Control:                    *controlArm,
		Treatment:                  *treatmentArm,
		ProbabilityTreatmentBetter: p,
		MonteCarloStdError:         engine.MonteCarloStdError(p, samples),
		Samples:                    samples,
		AbsoluteDifference:         treatmentArm.Mean - controlArm.Mean,
		Density:                    density,
	}, nil
}

// resolveSettings fills in the credible level and sample count and rejects
// sizes the engine would refuse after the run was recorded.
func (s *BayesianService) resolveSettings(level float64, samples, densitySteps int) (float64, int, error) {
	if level == 0 {
		level = s.deps.Defaults.CredibleLevel
	}
	if !(level > 0 && level < 1) {
		return 0, 0, apperrors.InvalidParameter("credible level must lie in (0, 1), got %v", level)
	}
	if samples == 0 {
		samples = s.deps.Defaults.Samples
	}
	if samples < 1 || samples > engine.MaxSamples {
		return 0, 0, apperrors.InvalidParameter("monte carlo sample count must lie in [1, %d], got %d", engine.MaxSamples, samples)
	}
	if densitySteps > engine.MaxDensitySteps {
		return 0, 0, apperrors.InvalidParameter("density steps must not exceed %d, got %d", engine.MaxDensitySteps, densitySteps)
	}
	return level, samples, nil
}

func summarizeArm(prior trial.BetaParams, o trial.BinaryOutcomes, level float64) (*ArmPosterior, error) {
	post := prior.Update(o)
	mean, err := engine.Mean(post.Alpha, post.Beta)
	if err != nil {
		return nil, err
	}
	variance, err := engine.Variance(post.Alpha, post.Beta)
	if err != nil {
		return nil, err
	}
	approx, err := engine.CredibleInterval(post.Alpha, post.Beta, level)
	if err != nil {
		return nil, err
	}
	exact, err := engine.ExactCredibleInterval(post.Alpha, post.Beta, level)
	if err != nil {
		return nil, err
	}
	return &ArmPosterior{
		Observed:      o,
		Posterior:     post,
		Mean:          mean,
		Variance:      variance,
		Interval:      approx,
		ExactInterval: exact,
	}, nil
}

func lookupPrior(name trial.PriorName) (trial.Prior, error) {
	prior, ok := trial.LookupPrior(name)
	if !ok {
		return trial.Prior{}, apperrors.InvalidParameter("unknown prior %q", name)
	}
	return prior, nil
}

func observed(arm string, n, responses int) (trial.BinaryOutcomes, error) {
	if n < 0 {
		return trial.BinaryOutcomes{}, apperrors.InvalidParameter("%s sample size must be non-negative, got %d", arm, n)
	}
	if responses < 0 || responses > n {
		return trial.BinaryOutcomes{}, apperrors.InvalidParameter("%s responses must lie in [0, %d], got %d", arm, n, responses)
	}
	return trial.BinaryOutcomes{Successes: responses, Failures: n - responses}, nil
}
