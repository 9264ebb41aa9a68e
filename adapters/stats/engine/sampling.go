package engine

import (
	"math"

	apperrors "trialsim/internal/errors"
)

// SampleGamma draws one variate from Gamma(shape, scale).
//
// For shape >= 1 it uses the Marsaglia–Tsang squeeze/rejection method with
// d = shape - 1/3 and c = 1/sqrt(9d). For shape < 1 it draws from
// Gamma(shape+1, scale) and multiplies by U^(1/shape); the recursion is one
// level deep because shape+1 >= 1.
func SampleGamma(src Source, shape, scale float64) (float64, error) {
	if !(shape > 0) || math.IsInf(shape, 0) {
		return 0, apperrors.InvalidParameter("gamma shape must be a positive finite number, got %v", shape)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return 0, apperrors.InvalidParameter("gamma scale must be a positive finite number, got %v", scale)
	}
	return sampleGamma(src, shape, scale), nil
}

func sampleGamma(src Source, shape, scale float64) float64 {
	if shape < 1 {
		return sampleGamma(src, shape+1, scale) * math.Pow(openUniform(src), 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = standardNormal(src)
			v = 1 + c*x
			if v > 0 {
				break
			}
		}

		v = v * v * v
		u := openUniform(src)
		x2 := x * x

		if u < 1-0.0331*x2*x2 {
			return d * v * scale
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// SampleBeta draws one variate from Beta(alpha, beta) as X/(X+Y) with
// independent X ~ Gamma(alpha, 1) and Y ~ Gamma(beta, 1).
func SampleBeta(src Source, alpha, beta float64) (float64, error) {
	if err := checkShape(alpha, beta); err != nil {
		return 0, err
	}
	return sampleBeta(src, alpha, beta), nil
}

func sampleBeta(src Source, alpha, beta float64) float64 {
	x := sampleGamma(src, alpha, 1)
	y := sampleGamma(src, beta, 1)
	if x+y == 0 {
		// Both draws underflowed; only possible for tiny shapes.
		return alpha / (alpha + beta)
	}
	return x / (x + y)
}

// standardNormal draws N(0, 1) with the Box–Muller transform.
func standardNormal(src Source) float64 {
	u1 := openUniform(src)
	u2 := src.Float64()
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// openUniform draws from (0, 1), redrawing exact zeros so logs and
// reciprocal powers stay finite.
func openUniform(src Source) float64 {
	for {
		if u := src.Float64(); u > 0 {
			return u
		}
	}
}
