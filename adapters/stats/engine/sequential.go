package engine

import (
	"math"

	"trialsim/domain/trial"
	apperrors "trialsim/internal/errors"
)

// ConditionalPower returns the probability that the final Z statistic exceeds
// criticalValue given the interim statistic currentZ at informationFraction.
//
//	remaining = 1 - informationFraction
//	mean      = currentZ + drift*sqrt(remaining/informationFraction)
//	sd        = sqrt(remaining)
//	CP        = 1 - Φ((criticalValue - mean)/sd)
//
// Under DriftCurrentTrend (and DriftAlternative, which has no separate
// hypothesis to draw on) the drift is currentZ itself: the observed Z serves
// as both the current value and its own future drift. This is the literal
// behaviour of the monitoring dashboard, not the textbook formula that scales
// a design effect by information. DriftFixed uses drift.Effect.
//
// informationFraction must lie in (0, 1]. At exactly 1 no data remain and the
// result is 1 when currentZ > criticalValue and 0 otherwise.
func ConditionalPower(currentZ, informationFraction, criticalValue float64, drift trial.Drift) (float64, error) {
	if !(informationFraction > 0 && informationFraction <= 1) {
		return 0, apperrors.InvalidParameter("information fraction must lie in (0, 1], got %v", informationFraction)
	}
	if math.IsNaN(currentZ) || math.IsInf(currentZ, 0) {
		return 0, apperrors.InvalidParameter("current Z must be finite, got %v", currentZ)
	}
	if math.IsNaN(criticalValue) || math.IsInf(criticalValue, 0) {
		return 0, apperrors.InvalidParameter("critical value must be finite, got %v", criticalValue)
	}

	var driftValue float64
	switch drift.Mode {
	case trial.DriftCurrentTrend, trial.DriftAlternative, "":
		driftValue = currentZ
	case trial.DriftFixed:
		if math.IsNaN(drift.Effect) || math.IsInf(drift.Effect, 0) {
			return 0, apperrors.InvalidParameter("assumed effect must be finite, got %v", drift.Effect)
		}
		driftValue = drift.Effect
	default:
		return 0, apperrors.InvalidParameter("unknown drift mode %q", drift.Mode)
	}

	remaining := 1 - informationFraction
	if remaining == 0 {
		if currentZ > criticalValue {
			return 1, nil
		}
		return 0, nil
	}

	conditionalMean := currentZ + driftValue*math.Sqrt(remaining/informationFraction)
	conditionalSD := math.Sqrt(remaining)
	return 1 - NormalCDF((criticalValue-conditionalMean)/conditionalSD), nil
}

// OBrienFlemingBound returns the approximate O'Brien–Fleming efficacy
// boundary Φ⁻¹(1 - alpha/2) / sqrt(informationFraction).
//
// This closed form is the classical approximation; exact O'Brien–Fleming
// boundaries solve a recursive integral equation so that the family-wise
// type I error is exactly alpha, which this does not guarantee. The bound
// grows without limit as informationFraction approaches 0, which is rejected.
func OBrienFlemingBound(informationFraction, alpha float64) (float64, error) {
	if !(informationFraction > 0 && informationFraction <= 1) {
		return 0, apperrors.InvalidParameter("information fraction must lie in (0, 1], got %v", informationFraction)
	}
	z, err := twoSidedCritical(alpha)
	if err != nil {
		return 0, err
	}
	return z / math.Sqrt(informationFraction), nil
}

// PocockBound returns the approximate Pocock boundary
// Φ⁻¹(1 - alpha/(2K)), constant across all K analyses.
//
// This is a Bonferroni-style approximation; exact Pocock constants come from
// numerical integration and are somewhat smaller (2.289 rather than 2.394 for
// K = 3, alpha = 0.05), so this bound is conservative.
func PocockBound(numberOfAnalyses int, alpha float64) (float64, error) {
	if numberOfAnalyses < 1 {
		return 0, apperrors.InvalidParameter("number of analyses must be at least 1, got %d", numberOfAnalyses)
	}
	if err := checkOpenUnit("alpha", alpha); err != nil {
		return 0, err
	}
	return InverseNormalCDF(1 - alpha/(2*float64(numberOfAnalyses)))
}

// Bound dispatches to the boundary family for the look at informationFraction
// in a design with numberOfAnalyses equally spaced looks.
func Bound(family trial.BoundaryFamily, informationFraction float64, numberOfAnalyses int, alpha float64) (float64, error) {
	switch family {
	case trial.BoundaryOBrienFleming:
		return OBrienFlemingBound(informationFraction, alpha)
	case trial.BoundaryPocock:
		return PocockBound(numberOfAnalyses, alpha)
	default:
		return 0, apperrors.InvalidParameter("unknown boundary family %q", family)
	}
}

// OBrienFlemingSpending is the Lan–DeMets O'Brien–Fleming-type spending
// function α(t) = 2 - 2Φ(z_{α/2}/sqrt(t)): cumulative two-sided alpha spent by
// information fraction t.
func OBrienFlemingSpending(informationFraction, alpha float64) (float64, error) {
	if !(informationFraction > 0 && informationFraction <= 1) {
		return 0, apperrors.InvalidParameter("information fraction must lie in (0, 1], got %v", informationFraction)
	}
	z, err := twoSidedCritical(alpha)
	if err != nil {
		return 0, err
	}
	return 2 - 2*NormalCDF(z/math.Sqrt(informationFraction)), nil
}

// PocockSpending is the Lan–DeMets Pocock-type spending function
// α(t) = alpha * ln(1 + (e - 1)t).
func PocockSpending(informationFraction, alpha float64) (float64, error) {
	if !(informationFraction > 0 && informationFraction <= 1) {
		return 0, apperrors.InvalidParameter("information fraction must lie in (0, 1], got %v", informationFraction)
	}
	if err := checkOpenUnit("alpha", alpha); err != nil {
		return 0, err
	}
	return alpha * math.Log(1+(math.E-1)*informationFraction), nil
}

// AlphaSpent dispatches to the spending function matching the family.
func AlphaSpent(family trial.BoundaryFamily, informationFraction, alpha float64) (float64, error) {
	switch family {
	case trial.BoundaryOBrienFleming:
		return OBrienFlemingSpending(informationFraction, alpha)
	case trial.BoundaryPocock:
		return PocockSpending(informationFraction, alpha)
	default:
		return 0, apperrors.InvalidParameter("unknown boundary family %q", family)
	}
}

func twoSidedCritical(alpha float64) (float64, error) {
	if err := checkOpenUnit("alpha", alpha); err != nil {
		return 0, err
	}
	return InverseNormalCDF(1 - alpha/2)
}
