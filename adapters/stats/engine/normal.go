package engine

import (
	"math"
)

// Abramowitz & Stegun 26.2.17.
const (
	cdfP       = 0.2316419
	cdfB1      = 0.319381530
	cdfB2      = -0.356563782
	cdfB3      = 1.781477937
	cdfB4      = -1.821255978
	cdfB5      = 1.330274429
	invSqrt2Pi = 0.3989422804014327
)

// NormalCDF returns Φ(z) using the Abramowitz & Stegun 26.2.17 rational
// approximation of the upper Gaussian tail, mirrored by the sign of z.
// Absolute error is below 7.5e-8 for all z; this is not a library-exact erf.
// Infinite arguments return 0 or 1.
func NormalCDF(z float64) float64 {
	if math.IsNaN(z) {
		return math.NaN()
	}
	if math.IsInf(z, 1) {
		return 1
	}
	if math.IsInf(z, -1) {
		return 0
	}

	t := 1 / (1 + cdfP*math.Abs(z))
	d := invSqrt2Pi * math.Exp(-z*z/2)
	tail := d * t * (cdfB1 + t*(cdfB2+t*(cdfB3+t*(cdfB4+t*cdfB5))))

	if z > 0 {
		return 1 - tail
	}
	return tail
}

// Acklam's rational approximation of the normal quantile.
var (
	invA = [6]float64{
		-3.969683028665376e+01,
		2.209460984245205e+02,
		-2.759285104469687e+02,
		1.383577518672690e+02,
		-3.066479806614716e+01,
		2.506628277459239e+00,
	}
	invB = [5]float64{
		-5.447609879822406e+01,
		1.615858368580409e+02,
		-1.556989798598866e+02,
		6.680131188771972e+01,
		-1.328068155288572e+01,
	}
	invC = [6]float64{
		-7.784894002430293e-03,
		-3.223964580411365e-01,
		-2.400758277161838e+00,
		-2.549732539343734e+00,
		4.374664141464968e+00,
		2.938163982698783e+00,
	}
	invD = [4]float64{
		7.784695709041462e-03,
		3.224671290700398e-01,
		2.445134137142996e+00,
		3.754408661907416e+00,
	}
)

// tailBreak separates the central rational form from the tail form.
const tailBreak = 0.02425

// InverseNormalCDF returns z with Φ(z) = p, for p in (0, 1).
//
// It evaluates Acklam's tabulated rational approximation (relative error
// below 1.2e-9), working on min(p, 1-p) and restoring the sign so the result
// is exactly antisymmetric about p = 0.5. p = 0 or 1 has no finite quantile
// and is rejected with InvalidParameter; callers must stay inside the open
// interval.
func InverseNormalCDF(p float64) (float64, error) {
	if err := checkOpenUnit("probability", p); err != nil {
		return 0, err
	}

	if p < 0.5 {
		return -upperQuantile(p), nil
	}
	return upperQuantile(1 - p), nil
}

// upperQuantile returns Φ⁻¹(1-q) for q in (0, 0.5].
func upperQuantile(q float64) float64 {
	if q < tailBreak {
		r := math.Sqrt(-2 * math.Log(q))
		num := ((((invC[0]*r+invC[1])*r+invC[2])*r+invC[3])*r+invC[4])*r + invC[5]
		den := (((invD[0]*r+invD[1])*r+invD[2])*r+invD[3])*r + 1
		return -num / den
	}

	x := 0.5 - q
	r := x * x
	num := (((((invA[0]*r+invA[1])*r+invA[2])*r+invA[3])*r+invA[4])*r + invA[5]) * x
	den := ((((invB[0]*r+invB[1])*r+invB[2])*r+invB[3])*r+invB[4])*r + 1
	return num / den
}
