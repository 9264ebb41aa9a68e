package engine

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

// ProbabilityTreatmentBetter estimates P(p_treatment > p_control) with
// DefaultSamples paired posterior draws.
func ProbabilityTreatmentBetter(src Source, control, treatment trial.BetaParams) (float64, error) {
	return ProbabilityTreatmentBetterN(src, control, treatment, DefaultSamples)
}

// ProbabilityTreatmentBetterN draws `samples` independent pairs, one from each
// posterior, and returns the fraction in which the treatment draw is larger.
//
// The estimator is unbiased with standard error sqrt(p(1-p)/samples), so
// results vary between unseeded calls; see MonteCarloStdError.
func ProbabilityTreatmentBetterN(src Source, control, treatment trial.BetaParams, samples int) (float64, error) {
	if err := checkPair(control, treatment); err != nil {
		return 0, err
	}
	if err := checkSamples(samples); err != nil {
		return 0, err
	}
	return float64(countTreatmentWins(src, control, treatment, samples)) / float64(samples), nil
}

func countTreatmentWins(src Source, control, treatment trial.BetaParams, samples int) int {
	wins := 0
	for i := 0; i < samples; i++ {
		pc := sampleBeta(src, control.Alpha, control.Beta)
		pt := sampleBeta(src, treatment.Alpha, treatment.Beta)
		if pt > pc {
			wins++
		}
	}
	return wins
}

// ProbabilityTreatmentBetterParallel splits the draws across `workers`
// goroutines, each with its own generator seeded from seed+worker. The
// result depends only on (seed, samples, workers), not on scheduling.
// ctx cancellation is checked between worker chunks.
func ProbabilityTreatmentBetterParallel(ctx context.Context, seed int64, control, treatment trial.BetaParams, samples, workers int) (float64, error) {
	if err := checkPair(control, treatment); err != nil {
		return 0, err
	}
	if err := checkSamples(samples); err != nil {
		return 0, err
	}
	if workers < 1 {
		workers = 1
	}
	if workers > samples {
		workers = samples
	}

	const chunk = 1000
	wins := make([]int, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		share := samples / workers
		if w < samples%workers {
			share++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(w)))
			for done := 0; done < share; done += chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				n := chunk
				if share-done < n {
					n = share - done
				}
				wins[w] += countTreatmentWins(rng, control, treatment, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, n := range wins {
		total += n
	}
	return float64(total) / float64(samples), nil
}

// MonteCarloStdError is the binomial standard error of a Monte Carlo
// proportion p estimated from n draws. n <= 0 reports 0.5, the bound for a
// single draw.
func MonteCarloStdError(p float64, n int) float64 {
	if n <= 0 {
		return 0.5
	}
	return math.Sqrt(p * (1 - p) / float64(n))
}

func checkPair(control, treatment trial.BetaParams) error {
	if err := checkShape(control.Alpha, control.Beta); err != nil {
		return apperrors.Wrap(err, "control posterior")
	}
	if err := checkShape(treatment.Alpha, treatment.Beta); err != nil {
		return apperrors.Wrap(err, "treatment posterior")
	}
	return nil
}
