package engine

import (
	"math"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

// MaxOutcomes bounds the number of trials GenerateBinaryOutcomes runs in one call.
const MaxOutcomes = 10000000

// GenerateBinaryOutcomes runs n independent Bernoulli(rate) trials drawn from
// src. Successes + Failures == n always; rate 0 yields no successes and rate
// 1 yields n.
func GenerateBinaryOutcomes(src Source, n int, rate float64) (trial.BinaryOutcomes, error) {
	if n < 0 || n > MaxOutcomes {
		return trial.BinaryOutcomes{}, apperrors.InvalidParameter("number of trials must lie in [0, %d], got %d", MaxOutcomes, n)
	}
	if !(rate >= 0 && rate <= 1) {
		return trial.BinaryOutcomes{}, apperrors.InvalidParameter("true rate must lie in [0, 1], got %v", rate)
	}

	successes := 0
	for i := 0; i < n; i++ {
		if src.Float64() < rate {
			successes++
		}
	}
	return trial.BinaryOutcomes{Successes: successes, Failures: n - successes}, nil
}

// PooledZ is the two-proportion Z statistic (treatment minus control) with a
// pooled variance estimate. It returns 0 when the pooled standard error is
// zero, e.g. every participant responded or none did.
func PooledZ(control, treatment trial.BinaryOutcomes) float64 {
	nc, nt := control.N(), treatment.N()
	if nc == 0 || nt == 0 {
		return 0
	}

	pooled := float64(control.Successes+treatment.Successes) / float64(nc+nt)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(nc) + 1/float64(nt)))
	if se == 0 {
		return 0
	}
	return (treatment.Rate() - control.Rate()) / se
}
