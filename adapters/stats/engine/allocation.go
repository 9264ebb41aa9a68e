package engine

import (
	"math"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

// AdaptiveAllocationProbability returns the probability of assigning the next
// participant to treatment under Bayesian response-adaptive randomization:
//
//	p = P(treatment better)            (Monte Carlo, DefaultSamples draws)
//	allocation = p^t / (p^t + (1-p)^t)
//
// tuning t = 0 gives fixed 1:1 allocation and returns exactly 0.5 without
// drawing from src; t = 1 follows the posterior probability directly.
func AdaptiveAllocationProbability(src Source, control, treatment trial.BetaParams, tuning float64) (float64, error) {
	return AdaptiveAllocationProbabilityN(src, control, treatment, tuning, DefaultSamples)
}

// AdaptiveAllocationProbabilityN is AdaptiveAllocationProbability with an
// explicit Monte Carlo sample count.
func AdaptiveAllocationProbabilityN(src Source, control, treatment trial.BetaParams, tuning float64, samples int) (float64, error) {
	if err := checkTuning(tuning); err != nil {
		return 0, err
	}
	if err := checkPair(control, treatment); err != nil {
		return 0, err
	}
	if tuning == 0 {
		return 0.5, nil
	}

	p, err := ProbabilityTreatmentBetterN(src, control, treatment, samples)
	if err != nil {
		return 0, err
	}
	return AllocationFromProbability(p, tuning)
}

// AllocationFromProbability applies the tempering p^t / (p^t + (1-p)^t) to a
// known P(treatment better). tuning = 0 returns 0.5 and p in {0, 1} returns p,
// so neither case evaluates 0^0 or 0/0.
//
// The result is monotone in tuning on a fixed side of p = 0.5 for interior p,
// but this is checked over a grid in tests rather than relied on.
func AllocationFromProbability(p, tuning float64) (float64, error) {
	if err := checkTuning(tuning); err != nil {
		return 0, err
	}
	if !(p >= 0 && p <= 1) {
		return 0, apperrors.InvalidParameter("probability must lie in [0, 1], got %v", p)
	}
	if tuning == 0 {
		return 0.5, nil
	}
	if p == 0 || p == 1 {
		return p, nil
	}

	num := math.Pow(p, tuning)
	return num / (num + math.Pow(1-p, tuning)), nil
}

func checkTuning(tuning float64) error {
	if !(tuning >= 0 && tuning <= 1) {
		return apperrors.InvalidParameter("tuning must lie in [0, 1], got %v", tuning)
	}
	return nil
}
