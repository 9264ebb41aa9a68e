package app

import (
	"context"
	"fmt"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
)

// True response rates assumed by interim monitoring when a request leaves
// them unset.
const (
	DefaultInterimControlRate   = 0.3
	DefaultInterimTreatmentRate = 0.45
)

const (
	defaultTargetN          = 400
	defaultAnalyses         = 3
	futilityBound           = 0.0
	considerFutilityBelowCP = 0.2
	maxAnalyses             = 20
	maxTargetN              = 1000000
)

// InterimService simulates a group-sequential trial with equally spaced
// looks and produces the monitoring record of each look.
type InterimService struct {
	deps   Deps
	logger *internal.Logger
}

// NewInterimService creates an interim monitoring service
func NewInterimService(deps Deps) *InterimService {
	deps.Defaults = deps.Defaults.withFallbacks()
	return &InterimService{deps: deps, logger: internal.NewComponentLogger("InterimService")}
}

// InterimRequest configures the monitored trial. Unset fields take the
// dashboard defaults: 400 participants, 3 looks, rates 0.3 and 0.45,
// O'Brien-Fleming bounds and a current-trend drift.
type InterimRequest struct {
	TargetN        int                  `json:"target_n,omitempty"`
	Analyses       int                  `json:"analyses,omitempty"`
	ControlRate    *float64             `json:"control_rate,omitempty"`
	TreatmentRate  *float64             `json:"treatment_rate,omitempty"`
	Boundary       trial.BoundaryFamily `json:"boundary,omitempty"`
	Alpha          float64              `json:"alpha,omitempty"`
	Drift          *trial.Drift         `json:"drift,omitempty"`
	StopAtBoundary bool                 `json:"stop_at_boundary,omitempty"`
	Seed           *int64               `json:"seed,omitempty"`
}

// InterimParams is a fully resolved InterimRequest.
type InterimParams struct {
	TargetN        int                  `json:"target_n"`
	Analyses       int                  `json:"analyses"`
	ControlRate    float64              `json:"control_rate"`
	TreatmentRate  float64              `json:"treatment_rate"`
	Boundary       trial.BoundaryFamily `json:"boundary"`
	Alpha          float64              `json:"alpha"`
	Drift          trial.Drift          `json:"drift"`
	StopAtBoundary bool                 `json:"stop_at_boundary"`
}

// InterimResult holds every look that was performed.
type InterimResult struct {
	RunID          core.RunID              `json:"run_id"`
	Seed           int64                   `json:"seed"`
	Params         InterimParams           `json:"params"`
	CriticalValue  float64                 `json:"critical_value"`
	Looks          []trial.InterimAnalysis `json:"looks"`
	Recommendation trial.Recommendation    `json:"recommendation"`
	StoppedEarly   bool                    `json:"stopped_early"`
	StoppedAt      int                     `json:"stopped_at,omitempty"`
}

func (s *InterimService) resolve(req InterimRequest) (InterimParams, error) {
	p := InterimParams{
		TargetN:        req.TargetN,
		Analyses:       req.Analyses,
		ControlRate:    DefaultInterimControlRate,
		TreatmentRate:  DefaultInterimTreatmentRate,
		Boundary:       req.Boundary,
		Alpha:          req.Alpha,
		Drift:          trial.CurrentTrend(),
		StopAtBoundary: req.StopAtBoundary,
	}
	if p.TargetN == 0 {
		p.TargetN = defaultTargetN
	}
	if p.Analyses == 0 {
		p.Analyses = defaultAnalyses
	}
	if req.ControlRate != nil {
		p.ControlRate = *req.ControlRate
	}
	if req.TreatmentRate != nil {
		p.TreatmentRate = *req.TreatmentRate
	}
	if p.Boundary == "" {
		p.Boundary = trial.BoundaryOBrienFleming
	}
	if p.Alpha == 0 {
		p.Alpha = s.deps.Defaults.Alpha
	}
	if req.Drift != nil {
		p.Drift = *req.Drift
	}

	switch {
	case p.Analyses < 1 || p.Analyses > maxAnalyses:
		return p, apperrors.InvalidParameter("number of analyses must lie in [1, %d], got %d", maxAnalyses, p.Analyses)
	case p.TargetN > maxTargetN:
		return p, apperrors.InvalidParameter("target sample size must not exceed %d, got %d", maxTargetN, p.TargetN)
	case p.TargetN < 2*p.Analyses:
		return p, apperrors.InvalidParameter("target sample size %d leaves an empty arm at the first of %d looks", p.TargetN, p.Analyses)
	case !(p.ControlRate >= 0 && p.ControlRate <= 1):
		return p, apperrors.InvalidParameter("control rate must lie in [0, 1], got %v", p.ControlRate)
	case !(p.TreatmentRate >= 0 && p.TreatmentRate <= 1):
		return p, apperrors.InvalidParameter("treatment rate must lie in [0, 1], got %v", p.TreatmentRate)
	case !p.Boundary.Valid():
		return p, apperrors.InvalidParameter("unknown boundary family %q", p.Boundary)
	case !(p.Alpha > 0 && p.Alpha < 1):
		return p, apperrors.InvalidParameter("alpha must lie in (0, 1), got %v", p.Alpha)
	}
	return p, nil
}

// Run simulates the trial. Participants accrue cumulatively: look k analyses
// everyone enrolled up to floor(targetN*k/K), split evenly between arms.
func (s *InterimService) Run(ctx context.Context, req InterimRequest) (*InterimResult, error) {
	params, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	crit, err := engine.InverseNormalCDF(1 - params.Alpha/2)
	if err != nil {
		return nil, err
	}

	rec, err := s.deps.begin(run.KindInterim, resolveSeed(req.Seed, s.deps.Defaults.Seed), params, s.logger)
	if err != nil {
		return nil, err
	}
	src, err := rec.stream(ctx, "outcomes", "")
	if err != nil {
		return nil, rec.fail(err)
	}

	result := &InterimResult{
		RunID:         rec.manifest.RunID,
		Seed:          rec.manifest.Seed,
		Params:        params,
		CriticalValue: crit,
	}

	var control, treatment trial.BinaryOutcomes
	perArmSoFar := 0
	for k := 1; k <= params.Analyses; k++ {
		if err := ctx.Err(); err != nil {
			return nil, rec.fail(err)
		}
		perArm := (params.TargetN * k / params.Analyses) / 2
		added := perArm - perArmSoFar
		perArmSoFar = perArm

		c, err := engine.GenerateBinaryOutcomes(src, added, params.ControlRate)
		if err != nil {
			return nil, rec.fail(err)
		}
		t, err := engine.GenerateBinaryOutcomes(src, added, params.TreatmentRate)
		if err != nil {
			return nil, rec.fail(err)
		}
		control = addOutcomes(control, c)
		treatment = addOutcomes(treatment, t)

		look, err := AnalyzeLook(k, params.Analyses, control, treatment, params.Boundary, params.Alpha, params.Drift)
		if err != nil {
			return nil, rec.fail(err)
		}
		result.Looks = append(result.Looks, look)
		s.logger.Debug("look %d/%d: z=%.3f bound=%.3f cp=%.3f -> %s", k, params.Analyses, look.ZStatistic, look.EfficacyBound, look.ConditionalPower, look.Recommendation)

		if params.StopAtBoundary && look.Recommendation.Stops() && k < params.Analyses {
			result.StoppedEarly = true
			result.StoppedAt = k
			break
		}
	}
	result.Recommendation = result.Looks[len(result.Looks)-1].Recommendation

	if _, err := rec.finish(ctx, result, RenderInterimMarkdown(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// AnalyzeLook builds the monitoring record for look k of K from cumulative
// outcomes. The efficacy bound comes from the boundary family, the futility
// bound is fixed at Z = 0, conditional power uses the two-sided critical
// value Φ⁻¹(1 - alpha/2) and alpha spent follows the matching Lan-DeMets
// spending function.
func AnalyzeLook(k, analyses int, control, treatment trial.BinaryOutcomes, family trial.BoundaryFamily, alpha float64, drift trial.Drift) (trial.InterimAnalysis, error) {
	if analyses < 1 || k < 1 || k > analyses {
		return trial.InterimAnalysis{}, apperrors.InvalidParameter("look %d of %d is out of range", k, analyses)
	}
	if control.N() == 0 || treatment.N() == 0 {
		return trial.InterimAnalysis{}, apperrors.InvalidParameter("both arms need participants at look %d", k)
	}
	info := float64(k) / float64(analyses)

	crit, err := engine.InverseNormalCDF(1 - alpha/2)
	if err != nil {
		return trial.InterimAnalysis{}, apperrors.Wrap(err, "critical value")
	}
	bound, err := engine.Bound(family, info, analyses, alpha)
	if err != nil {
		return trial.InterimAnalysis{}, err
	}
	spent, err := engine.AlphaSpent(family, info, alpha)
	if err != nil {
		return trial.InterimAnalysis{}, err
	}
	z := engine.PooledZ(control, treatment)
	cp, err := engine.ConditionalPower(z, info, crit, drift)
	if err != nil {
		return trial.InterimAnalysis{}, err
	}

	look := trial.InterimAnalysis{
		Analysis:            k,
		InformationFraction: info,
		Enrolled:            control.N() + treatment.N(),
		ControlEvents:       control.Successes,
		TreatmentEvents:     treatment.Successes,
		ZStatistic:          z,
		ConditionalPower:    cp,
		AlphaSpent:          spent,
		EfficacyBound:       bound,
		FutilityBound:       futilityBound,
	}
	look.Recommendation = Recommend(look)
	return look, nil
}

// Recommend maps a look onto the committee action: efficacy when Z crosses
// the efficacy bound, futility when it falls below the futility bound,
// "consider futility" when conditional power is under 20%, else continue.
func Recommend(look trial.InterimAnalysis) trial.Recommendation {
	switch {
	case look.ZStatistic > look.EfficacyBound:
		return trial.RecommendStopEfficacy
	case look.ZStatistic < look.FutilityBound:
		return trial.RecommendStopFutility
	case look.ConditionalPower < considerFutilityBelowCP:
		return trial.RecommendConsiderFutility
	default:
		return trial.RecommendContinue
	}
}

func addOutcomes(a, b trial.BinaryOutcomes) trial.BinaryOutcomes {
	return trial.BinaryOutcomes{Successes: a.Successes + b.Successes, Failures: a.Failures + b.Failures}
}

// BoundsTable lists the efficacy bound and alpha spent at each of K equally
// spaced looks.
func BoundsTable(family trial.BoundaryFamily, analyses int, alpha float64) ([]BoundRow, error) {
	if analyses < 1 || analyses > maxAnalyses {
		return nil, apperrors.InvalidParameter("number of analyses must lie in [1, %d], got %d", maxAnalyses, analyses)
	}
	rows := make([]BoundRow, 0, analyses)
	for k := 1; k <= analyses; k++ {
		info := float64(k) / float64(analyses)
		bound, err := engine.Bound(family, info, analyses, alpha)
		if err != nil {
			return nil, err
		}
		spent, err := engine.AlphaSpent(family, info, alpha)
		if err != nil {
			return nil, err
		}
		rows = append(rows, BoundRow{Analysis: k, InformationFraction: info, EfficacyBound: bound, AlphaSpent: spent})
	}
	return rows, nil
}

// BoundRow is one line of BoundsTable.
type BoundRow struct {
	Analysis            int     `json:"analysis"`
	InformationFraction float64 `json:"information_fraction"`
	EfficacyBound       float64 `json:"efficacy_bound"`
	AlphaSpent          float64 `json:"alpha_spent"`
}

func (r BoundRow) String() string {
	return fmt.Sprintf("%d\t%.3f\t%.4f\t%.6f", r.Analysis, r.InformationFraction, r.EfficacyBound, r.AlphaSpent)
}
