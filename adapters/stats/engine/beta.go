package engine

import (
	"math"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

// Mean returns alpha / (alpha + beta). When alpha + beta overflows the ratio
// is taken as 1 / (1 + beta/alpha) instead.
func Mean(alpha, beta float64) (float64, error) {
	if err := checkShape(alpha, beta); err != nil {
		return 0, err
	}
	return mean(alpha, beta), nil
}

func mean(alpha, beta float64) float64 {
	if sum := alpha + beta; !math.IsInf(sum, 0) {
		return alpha / sum
	}
	return 1 / (1 + beta/alpha)
}

// Variance returns alpha*beta / ((alpha+beta)^2 (alpha+beta+1)), evaluated
// as m(1-m) / (alpha+beta+1) with m the mean so that no intermediate
// product overflows for finite shapes.
func Variance(alpha, beta float64) (float64, error) {
	if err := checkShape(alpha, beta); err != nil {
		return 0, err
	}
	m := mean(alpha, beta)
	return m * (1 - m) / (alpha + beta + 1), nil
}

// CredibleInterval returns an approximate central credible interval holding
// `level` of the Beta(alpha, beta) mass.
//
// The bounds are mean ± z·sd with z from InverseNormalCDF, clamped to [0, 1].
// This is a normal approximation, not an exact Beta quantile. It is adequate
// once both alpha and beta are roughly 10 or more; for small or very unequal
// shapes the Beta is skewed and the interval is visibly off (often clipped at
// 0 or 1). ExactCredibleInterval gives the exact interval for comparison.
func CredibleInterval(alpha, beta, level float64) (trial.Interval, error) {
	if err := checkShape(alpha, beta); err != nil {
		return trial.Interval{}, err
	}
	if err := checkOpenUnit("credible level", level); err != nil {
		return trial.Interval{}, err
	}

	tail := (1 - level) / 2
	lower, err := approxBetaQuantile(tail, alpha, beta)
	if err != nil {
		return trial.Interval{}, err
	}
	upper, err := approxBetaQuantile(1-tail, alpha, beta)
	if err != nil {
		return trial.Interval{}, err
	}
	return trial.Interval{Lower: lower, Upper: upper}, nil
}

func approxBetaQuantile(p, alpha, beta float64) (float64, error) {
	m := mean(alpha, beta)
	variance, _ := Variance(alpha, beta)
	z, err := InverseNormalCDF(p)
	if err != nil {
		return 0, err
	}
	return clamp01(m + z*math.Sqrt(variance)), nil
}

// ExactCredibleInterval returns the equal-tailed interval from exact Beta
// quantiles.
func ExactCredibleInterval(alpha, beta, level float64) (trial.Interval, error) {
	if err := checkShape(alpha, beta); err != nil {
		return trial.Interval{}, err
	}
	if err := checkOpenUnit("credible level", level); err != nil {
		return trial.Interval{}, err
	}
	dist := trial.BetaParams{Alpha: alpha, Beta: beta}.Dist()
	tail := (1 - level) / 2
	ci := trial.Interval{
		Lower: dist.Quantile(tail),
		Upper: dist.Quantile(1 - tail),
	}
	if !finiteUnit(ci.Lower) || !finiteUnit(ci.Upper) || ci.Lower > ci.Upper {
		return trial.Interval{}, apperrors.InvalidParameter("exact quantiles of Beta(%v, %v) are not representable", alpha, beta)
	}
	return ci, nil
}

func finiteUnit(x float64) bool {
	return x >= 0 && x <= 1
}

// BetaPDF returns the Beta(alpha, beta) density at x, and 0 outside (0, 1).
func BetaPDF(x, alpha, beta float64) (float64, error) {
	if err := checkShape(alpha, beta); err != nil {
		return 0, err
	}
	if x <= 0 || x >= 1 {
		return 0, nil
	}
	d := trial.BetaParams{Alpha: alpha, Beta: beta}.Dist().Prob(x)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, apperrors.InvalidParameter("Beta(%v, %v) density at %v is not representable", alpha, beta, x)
	}
	return d, nil
}

// MaxDensitySteps bounds the resolution of DensityCurve.
const MaxDensitySteps = 10000

// DensityCurve samples both posterior densities on steps+1 evenly spaced
// points of [0, 1]. steps < 1 selects 100.
func DensityCurve(control, treatment trial.BetaParams, steps int) ([]trial.DensityPoint, error) {
	if err := checkShape(control.Alpha, control.Beta); err != nil {
		return nil, err
	}
	if err := checkShape(treatment.Alpha, treatment.Beta); err != nil {
		return nil, err
	}
	if steps < 1 {
		steps = 100
	}
	if steps > MaxDensitySteps {
		return nil, apperrors.InvalidParameter("density steps must be at most %d, got %d", MaxDensitySteps, steps)
	}

	points := make([]trial.DensityPoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		x := float64(i) / float64(steps)
		c, err := BetaPDF(x, control.Alpha, control.Beta)
		if err != nil {
			return nil, err
		}
		t, err := BetaPDF(x, treatment.Alpha, treatment.Beta)
		if err != nil {
			return nil, err
		}
		points = append(points, trial.DensityPoint{X: x, Control: c, Treatment: t})
	}
	return points, nil
}
