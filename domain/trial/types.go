package trial

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// BetaParams are the shape parameters of a Beta distribution, read as
// pseudo-counts of successes (Alpha) and failures (Beta). Both must be > 0.
type BetaParams struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// Validate checks the positivity invariant.
func (p BetaParams) Validate() error {
	if !(p.Alpha > 0) || math.IsInf(p.Alpha, 0) {
		return fmt.Errorf("alpha must be a positive finite number, got %v", p.Alpha)
	}
	if !(p.Beta > 0) || math.IsInf(p.Beta, 0) {
		return fmt.Errorf("beta must be a positive finite number, got %v", p.Beta)
	}
	return nil
}

// Update returns the conjugate posterior after observing outcomes.
func (p BetaParams) Update(o BinaryOutcomes) BetaParams {
	return BetaParams{
		Alpha: p.Alpha + float64(o.Successes),
		Beta:  p.Beta + float64(o.Failures),
	}
}

// Dist returns the exact gonum distribution for reference computations.
func (p BetaParams) Dist() *distuv.Beta {
	return &distuv.Beta{
		Alpha: p.Alpha,
		Beta:  p.Beta,
	}
}

// PriorName identifies one of the preset priors offered by the Bayesian lab.
type PriorName string

const (
	PriorUniform     PriorName = "uniform"
	PriorWeak        PriorName = "weak"
	PriorInformative PriorName = "informative"
	PriorSkeptical   PriorName = "skeptical"
)

// Prior is a named Beta prior.
type Prior struct {
	Name   PriorName  `json:"name"`
	Label  string     `json:"label"`
	Params BetaParams `json:"params"`
}

var priors = map[PriorName]Prior{
	PriorUniform:     {Name: PriorUniform, Label: "Uniform (Non-informative)", Params: BetaParams{Alpha: 1, Beta: 1}},
	PriorWeak:        {Name: PriorWeak, Label: "Weakly Informative", Params: BetaParams{Alpha: 2, Beta: 2}},
	PriorInformative: {Name: PriorInformative, Label: "Informative (50% response)", Params: BetaParams{Alpha: 10, Beta: 10}},
	PriorSkeptical:   {Name: PriorSkeptical, Label: "Skeptical (25% response)", Params: BetaParams{Alpha: 5, Beta: 15}},
}

// LookupPrior resolves a preset by name. An empty name means uniform.
func LookupPrior(name PriorName) (Prior, bool) {
	if name == "" {
		name = PriorUniform
	}
	p, ok := priors[name]
	return p, ok
}

// Priors lists the presets in a stable order.
func Priors() []Prior {
	return []Prior{priors[PriorUniform], priors[PriorWeak], priors[PriorInformative], priors[PriorSkeptical]}
}

// Interval is a closed interval [Lower, Upper] on the rate scale.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Width returns Upper - Lower.
func (i Interval) Width() float64 {
	return i.Upper - i.Lower
}

// Contains reports whether x lies inside the interval.
func (i Interval) Contains(x float64) bool {
	return x >= i.Lower && x <= i.Upper
}

// BinaryOutcomes counts the results of n Bernoulli trials.
type BinaryOutcomes struct {
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// N returns Successes + Failures.
func (o BinaryOutcomes) N() int {
	return o.Successes + o.Failures
}

// Rate returns the observed success proportion, or 0 for no trials.
func (o BinaryOutcomes) Rate() float64 {
	if o.N() == 0 {
		return 0
	}
	return float64(o.Successes) / float64(o.N())
}

// DriftMode selects how conditional power extrapolates the remaining trial.
type DriftMode string

const (
	// DriftCurrentTrend reuses the observed Z statistic as the drift.
	DriftCurrentTrend DriftMode = "current-trend"
	// DriftAlternative has no alternative hypothesis to draw on and therefore
	// behaves exactly like DriftCurrentTrend.
	DriftAlternative DriftMode = "alternative"
	// DriftFixed uses Drift.Effect directly.
	DriftFixed DriftMode = "fixed"
)

// Drift is the assumed future drift for conditional power.
type Drift struct {
	Mode   DriftMode `json:"mode"`
	Effect float64   `json:"effect,omitempty"`
}

// CurrentTrend assumes the observed trend continues.
func CurrentTrend() Drift { return Drift{Mode: DriftCurrentTrend} }

// AssumedEffect overrides the drift with a fixed value.
func AssumedEffect(effect float64) Drift { return Drift{Mode: DriftFixed, Effect: effect} }

// BoundaryFamily names a group-sequential efficacy boundary.
type BoundaryFamily string

const (
	BoundaryOBrienFleming BoundaryFamily = "obrien-fleming"
	BoundaryPocock        BoundaryFamily = "pocock"
)

// Valid reports whether f is a known family.
func (f BoundaryFamily) Valid() bool {
	return f == BoundaryOBrienFleming || f == BoundaryPocock
}

// Recommendation is the monitoring committee action suggested by an interim look.
type Recommendation string

const (
	RecommendContinue         Recommendation = "continue"
	RecommendConsiderFutility Recommendation = "consider-futility"
	RecommendStopFutility     Recommendation = "stop-futility"
	RecommendStopEfficacy     Recommendation = "stop-efficacy"
)

// Stops reports whether the recommendation ends the trial.
func (r Recommendation) Stops() bool {
	return r == RecommendStopEfficacy || r == RecommendStopFutility
}

// InterimAnalysis is one look at accumulating data. Records are independent;
// nothing here enforces ordering between them.
type InterimAnalysis struct {
	Analysis            int            `json:"analysis"`
	InformationFraction float64        `json:"information_fraction"`
	Enrolled            int            `json:"enrolled"`
	ControlEvents       int            `json:"control_events"`
	TreatmentEvents     int            `json:"treatment_events"`
	ZStatistic          float64        `json:"z_statistic"`
	ConditionalPower    float64        `json:"conditional_power"`
	AlphaSpent          float64        `json:"alpha_spent"`
	EfficacyBound       float64        `json:"efficacy_bound"`
	FutilityBound       float64        `json:"futility_bound"`
	Recommendation      Recommendation `json:"recommendation"`
}

// AllocationPoint is one sample of an adaptive randomization trajectory.
type AllocationPoint struct {
	Patient            int     `json:"patient"`
	AllocationProb     float64 `json:"allocation_prob"`
	ControlN           int     `json:"control_n"`
	TreatmentN         int     `json:"treatment_n"`
	ControlResponses   int     `json:"control_responses"`
	TreatmentResponses int     `json:"treatment_responses"`
}

// DensityPoint is one point of a posterior density curve.
type DensityPoint struct {
	X         float64 `json:"x"`
	Control   float64 `json:"control"`
	Treatment float64 `json:"treatment"`
}
