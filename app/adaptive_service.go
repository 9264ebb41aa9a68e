package app

import (
	"context"
	"strconv"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"trialsim/adapters/stats/engine"
	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	"trialsim/internal"
	apperrors "trialsim/internal/errors"
)

const (
	defaultAdaptiveN   = 200
	defaultTuning      = 0.5
	defaultRecordEvery = 5
	defaultReplicates  = 100
	maxReplicates      = 10000
	maxAdaptiveN       = 100000

	// Caps on Monte Carlo draws per trial and per replicate batch.
	maxTrialDraws     = 100000000
	maxReplicateDraws = 1000000000
)

// AdaptiveService simulates Bayesian response-adaptive randomization one
// participant at a time.
type AdaptiveService struct {
	deps   Deps
	logger *internal.Logger
}

// NewAdaptiveService creates an adaptive randomization service
func NewAdaptiveService(deps Deps) *AdaptiveService {
	deps.Defaults = deps.Defaults.withFallbacks()
	return &AdaptiveService{deps: deps, logger: internal.NewComponentLogger("AdaptiveService")}
}

// AdaptiveRequest configures one simulated trial. Unset fields take the lab
// defaults: rates 0.4 and 0.6, 200 participants, tuning 0.5, a trajectory
// point every 5 participants.
type AdaptiveRequest struct {
	ControlRate   *float64 `json:"control_rate,omitempty"`
	TreatmentRate *float64 `json:"treatment_rate,omitempty"`
	TotalN        int      `json:"total_n,omitempty"`
	Tuning        *float64 `json:"tuning,omitempty"`
	RecordEvery   int      `json:"record_every,omitempty"`
	Samples       int      `json:"samples,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

// AdaptiveSummary is the end state of one simulated trial.
type AdaptiveSummary struct {
	TotalPatients       int              `json:"total_patients"`
	ControlN            int              `json:"control_n"`
	TreatmentN          int              `json:"treatment_n"`
	ControlResponses    int              `json:"control_responses"`
	TreatmentResponses  int              `json:"treatment_responses"`
	ControlRate         float64          `json:"control_rate"`
	TreatmentRate       float64          `json:"treatment_rate"`
	TreatmentShare      float64          `json:"treatment_share"`
	FinalAllocationProb float64          `json:"final_allocation_prob"`
	ControlPosterior    trial.BetaParams `json:"control_posterior"`
	TreatmentPosterior  trial.BetaParams `json:"treatment_posterior"`
}

// AdaptiveResult holds the trajectory and summary of one trial.
type AdaptiveResult struct {
	RunID      core.RunID              `json:"run_id"`
	Seed       int64                   `json:"seed"`
	Params     AdaptiveParams          `json:"params"`
	Trajectory []trial.AllocationPoint `json:"trajectory"`
	Summary    AdaptiveSummary         `json:"summary"`
}

// AdaptiveParams is a fully resolved AdaptiveRequest.
type AdaptiveParams struct {
	ControlRate   float64 `json:"control_rate"`
	TreatmentRate float64 `json:"treatment_rate"`
	TotalN        int     `json:"total_n"`
	Tuning        float64 `json:"tuning"`
	RecordEvery   int     `json:"record_every"`
	Samples       int     `json:"samples"`
}

func (s *AdaptiveService) resolve(req AdaptiveRequest) (AdaptiveParams, error) {
	p := AdaptiveParams{
		ControlRate:   DefaultControlRate,
		TreatmentRate: DefaultTreatmentRate,
		TotalN:        req.TotalN,
		Tuning:        defaultTuning,
		RecordEvery:   req.RecordEvery,
		Samples:       req.Samples,
	}
	if req.ControlRate != nil {
		p.ControlRate = *req.ControlRate
	}
	if req.TreatmentRate != nil {
		p.TreatmentRate = *req.TreatmentRate
	}
	if req.Tuning != nil {
		p.Tuning = *req.Tuning
	}
	if p.TotalN == 0 {
		p.TotalN = defaultAdaptiveN
	}
	if p.RecordEvery == 0 {
		p.RecordEvery = defaultRecordEvery
	}
	if p.Samples == 0 {
		p.Samples = s.deps.Defaults.Samples
	}

	switch {
	case !(p.ControlRate >= 0 && p.ControlRate <= 1):
		return p, apperrors.InvalidParameter("control rate must lie in [0, 1], got %v", p.ControlRate)
	case !(p.TreatmentRate >= 0 && p.TreatmentRate <= 1):
		return p, apperrors.InvalidParameter("treatment rate must lie in [0, 1], got %v", p.TreatmentRate)
	case !(p.Tuning >= 0 && p.Tuning <= 1):
		return p, apperrors.InvalidParameter("tuning must lie in [0, 1], got %v", p.Tuning)
	case p.TotalN < 1 || p.TotalN > maxAdaptiveN:
		return p, apperrors.InvalidParameter("total participants must lie in [1, %d], got %d", maxAdaptiveN, p.TotalN)
	case p.RecordEvery < 1:
		return p, apperrors.InvalidParameter("record interval must be positive, got %d", p.RecordEvery)
	case p.Samples < 1 || p.Samples > engine.MaxSamples:
		return p, apperrors.InvalidParameter("monte carlo sample count must lie in [1, %d], got %d", engine.MaxSamples, p.Samples)
	case p.draws() > maxTrialDraws:
		return p, apperrors.InvalidParameter("total participants %d times %d samples exceeds %d draws", p.TotalN, p.Samples, maxTrialDraws)
	}
	return p, nil
}

// draws is the number of posterior draws one trial makes. Tuning 0 allocates
// 1:1 without sampling.
func (p AdaptiveParams) draws() int {
	if p.Tuning == 0 {
		return 0
	}
	return p.TotalN * p.Samples
}

// Run simulates one trial.
func (s *AdaptiveService) Run(ctx context.Context, req AdaptiveRequest) (*AdaptiveResult, error) {
	params, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	rec, err := s.deps.begin(run.KindAdaptive, resolveSeed(req.Seed, s.deps.Defaults.Seed), params, s.logger)
	if err != nil {
		return nil, err
	}

	src, err := rec.stream(ctx, "allocation", "")
	if err != nil {
		return nil, rec.fail(err)
	}
	trajectory, summary, err := simulateAdaptive(ctx, src, params, true)
	if err != nil {
		return nil, rec.fail(err)
	}
	s.deps.Metrics.AddDraws(params.draws())

	result := &AdaptiveResult{
		RunID:      rec.manifest.RunID,
		Seed:       rec.manifest.Seed,
		Params:     params,
		Trajectory: trajectory,
		Summary:    summary,
	}
	if _, err := rec.finish(ctx, result, RenderAdaptiveMarkdown(result)); err != nil {
		return nil, err
	}
	return result, nil
}

// simulateAdaptive runs the participant loop. Every participant is allocated
// with probability AdaptiveAllocationProbability under the current Beta(1,1)
// based posteriors, then responds with the true rate of their arm.
func simulateAdaptive(ctx context.Context, src engine.Source, p AdaptiveParams, keepTrajectory bool) ([]trial.AllocationPoint, AdaptiveSummary, error) {
	control := trial.BetaParams{Alpha: 1, Beta: 1}
	treatment := trial.BetaParams{Alpha: 1, Beta: 1}
	var (
		controlN, treatmentN        int
		controlResponses, treatResp int
		lastProb                    float64
		trajectory                  []trial.AllocationPoint
	)

	for i := 1; i <= p.TotalN; i++ {
		if i%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, AdaptiveSummary{}, err
			}
		}
		prob, err := engine.AdaptiveAllocationProbabilityN(src, control, treatment, p.Tuning, p.Samples)
		if err != nil {
			return nil, AdaptiveSummary{}, err
		}
		lastProb = prob

		if src.Float64() < prob {
			treatmentN++
			if src.Float64() < p.TreatmentRate {
				treatResp++
				treatment.Alpha++
			} else {
				treatment.Beta++
			}
		} else {
			controlN++
			if src.Float64() < p.ControlRate {
				controlResponses++
				control.Alpha++
			} else {
				control.Beta++
			}
		}

		if keepTrajectory && (i%p.RecordEvery == 0 || i == p.TotalN) {
			trajectory = append(trajectory, trial.AllocationPoint{
				Patient:            i,
				AllocationProb:     prob,
				ControlN:           controlN,
				TreatmentN:         treatmentN,
				ControlResponses:   controlResponses,
				TreatmentResponses: treatResp,
			})
		}
	}

	summary := AdaptiveSummary{
		TotalPatients:       p.TotalN,
		ControlN:            controlN,
		TreatmentN:          treatmentN,
		ControlResponses:    controlResponses,
		TreatmentResponses:  treatResp,
		ControlRate:         trial.BinaryOutcomes{Successes: controlResponses, Failures: controlN - controlResponses}.Rate(),
		TreatmentRate:       trial.BinaryOutcomes{Successes: treatResp, Failures: treatmentN - treatResp}.Rate(),
		TreatmentShare:      float64(treatmentN) / float64(p.TotalN),
		FinalAllocationProb: lastProb,
		ControlPosterior:    control,
		TreatmentPosterior:  treatment,
	}
	return trajectory, summary, nil
}

// ReplicateRequest repeats an adaptive trial independently.
type ReplicateRequest struct {
	AdaptiveRequest
	Replicates  int `json:"replicates,omitempty"`
	Concurrency int `json:"concurrency,omitempty"`
}

// Distribution summarises one quantity across replicates.
type Distribution struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P05    float64 `json:"p05"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
}

// ReplicateResult aggregates independent replicates of one design.
type ReplicateResult struct {
	RunID              core.RunID        `json:"run_id"`
	Seed               int64             `json:"seed"`
	Params             AdaptiveParams    `json:"params"`
	Replicates         int               `json:"replicates"`
	TreatmentShare     Distribution      `json:"treatment_share"`
	FinalAllocation    Distribution      `json:"final_allocation"`
	ObservedDifference Distribution      `json:"observed_difference"`
	TotalResponses     Distribution      `json:"total_responses"`
	Runs               []AdaptiveSummary `json:"runs"`
}

// Replicate runs req.Replicates independent trials concurrently. Replicate i
// always draws from stream "replicate/i", so the aggregate depends only on
// the seed and parameters, not on scheduling.
func (s *AdaptiveService) Replicate(ctx context.Context, req ReplicateRequest) (*ReplicateResult, error) {
	params, err := s.resolve(req.AdaptiveRequest)
	if err != nil {
		return nil, err
	}
	n := req.Replicates
	if n == 0 {
		n = defaultReplicates
	}
	if n < 2 || n > maxReplicates {
		return nil, apperrors.InvalidParameter("replicates must lie in [2, %d], got %d", maxReplicates, n)
	}
	if n*params.draws() > maxReplicateDraws {
		return nil, apperrors.InvalidParameter("%d replicates of %d draws each exceeds %d draws", n, params.draws(), maxReplicateDraws)
	}
	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = s.deps.Defaults.Workers
	}

	manifestParams := struct {
		AdaptiveParams
		Replicates int `json:"replicates"`
	}{params, n}
	rec, err := s.deps.begin(run.KindAdaptiveReplicate, resolveSeed(req.Seed, s.deps.Defaults.Seed), manifestParams, s.logger)
	if err != nil {
		return nil, err
	}

	summaries := make([]AdaptiveSummary, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			src, err := rec.stream(gctx, "replicate", strconv.Itoa(i))
			if err != nil {
				return err
			}
			_, summary, err := simulateAdaptive(gctx, src, params, false)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, rec.fail(err)
	}
	s.deps.Metrics.AddDraws(n * params.draws())

	result, err := aggregateReplicates(summaries)
	if err != nil {
		return nil, rec.fail(err)
	}
	result.RunID = rec.manifest.RunID
	result.Seed = rec.manifest.Seed
	result.Params = params

	s.logger.Info("%d replicates: mean treatment share %.3f", n, result.TreatmentShare.Mean)
	if _, err := rec.finish(ctx, result, RenderReplicateMarkdown(result)); err != nil {
		return nil, err
	}
	return result, nil
}

func aggregateReplicates(runs []AdaptiveSummary) (*ReplicateResult, error) {
	share := make([]float64, len(runs))
	alloc := make([]float64, len(runs))
	diff := make([]float64, len(runs))
	responses := make([]float64, len(runs))
	for i, r := range runs {
		share[i] = r.TreatmentShare
		alloc[i] = r.FinalAllocationProb
		diff[i] = r.TreatmentRate - r.ControlRate
		responses[i] = float64(r.ControlResponses + r.TreatmentResponses)
	}

	out := &ReplicateResult{Replicates: len(runs), Runs: runs}
	var err error
	if out.TreatmentShare, err = summarize(share); err != nil {
		return nil, err
	}
	if out.FinalAllocation, err = summarize(alloc); err != nil {
		return nil, err
	}
	if out.ObservedDifference, err = summarize(diff); err != nil {
		return nil, err
	}
	if out.TotalResponses, err = summarize(responses); err != nil {
		return nil, err
	}
	return out, nil
}

func summarize(xs []float64) (Distribution, error) {
	var d Distribution
	var err error
	if d.Mean, err = stats.Mean(xs); err != nil {
		return d, apperrors.Wrap(err, "mean")
	}
	if d.StdDev, err = stats.StandardDeviationSample(xs); err != nil {
		return d, apperrors.Wrap(err, "standard deviation")
	}
	if d.P05, err = stats.PercentileNearestRank(xs, 5); err != nil {
		return d, apperrors.Wrap(err, "5th percentile")
	}
	if d.Median, err = stats.Median(xs); err != nil {
		return d, apperrors.Wrap(err, "median")
	}
	if d.P95, err = stats.PercentileNearestRank(xs, 95); err != nil {
		return d, apperrors.Wrap(err, "95th percentile")
	}
	return d, nil
}
