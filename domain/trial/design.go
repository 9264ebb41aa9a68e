package trial

import (
	"strings"
	"time"

	"trialsim/domain/core"
)

type Phase string

const (
	PhaseI   Phase = "Phase I"
	PhaseII  Phase = "Phase II"
	PhaseIII Phase = "Phase III"
	PhaseIV  Phase = "Phase IV"
)

type DesignType string

const (
	DesignParallel       DesignType = "Parallel"
	DesignCrossover      DesignType = "Crossover"
	DesignFactorial      DesignType = "Factorial"
	DesignAdaptive       DesignType = "Adaptive"
	DesignSequential     DesignType = "Sequential"
	DesignNonInferiority DesignType = "Non-Inferiority"
	DesignSuperiority    DesignType = "Superiority"
	DesignEquivalence    DesignType = "Equivalence"
)

type Blinding string

const (
	BlindingOpenLabel   Blinding = "Open-Label"
	BlindingSingleBlind Blinding = "Single-Blind"
	BlindingDoubleBlind Blinding = "Double-Blind"
	BlindingTripleBlind Blinding = "Triple-Blind"
)

type Randomization string

const (
	RandomizationSimple           Randomization = "Simple"
	RandomizationBlock            Randomization = "Block"
	RandomizationStratified       Randomization = "Stratified"
	RandomizationResponseAdaptive Randomization = "Response-Adaptive"
)

type EndpointType string

const (
	EndpointPrimary   EndpointType = "Primary"
	EndpointSecondary EndpointType = "Secondary"
	EndpointSafety    EndpointType = "Safety"
	EndpointComposite EndpointType = "Composite"
)

type MeasurementType string

const (
	MeasurementContinuous  MeasurementType = "Continuous"
	MeasurementBinary      MeasurementType = "Binary"
	MeasurementTimeToEvent MeasurementType = "Time-to-Event"
	MeasurementOrdinal     MeasurementType = "Ordinal"
)

// Endpoint is an outcome measured by the trial.
type Endpoint struct {
	Name            string          `json:"name"`
	Type            EndpointType    `json:"type"`
	MeasurementType MeasurementType `json:"measurement_type"`
	Unit            string          `json:"unit,omitempty"`
}

// Adaptive features attached to every adaptive design.
var DefaultAdaptiveFeatures = []string{
	"Response-adaptive randomization",
	"Interim futility analysis",
}

// Design is an exportable trial design schema.
type Design struct {
	ID               core.DesignID `json:"id"`
	Name             string        `json:"trial_name"`
	Phase            Phase         `json:"phase"`
	Design           DesignType    `json:"design"`
	Blinding         Blinding      `json:"blinding"`
	Randomization    Randomization `json:"randomization"`
	NumberOfArms     int           `json:"number_of_arms"`
	TargetSampleSize int           `json:"target_sample_size"`
	Endpoints        []Endpoint    `json:"endpoints"`
	Adaptive         bool          `json:"adaptive"`
	AdaptiveFeatures []string      `json:"adaptive_features"`
	CreatedAt        time.Time     `json:"created_at"`
}

// PerArm returns the planned enrolment per arm, rounded down.
func (d Design) PerArm() int {
	if d.NumberOfArms <= 0 {
		return 0
	}
	return d.TargetSampleSize / d.NumberOfArms
}

// Validate checks the schema before it is stored or exported.
func (d Design) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return core.NewValidationError("trial_name", "must not be empty")
	}
	if !oneOf(d.Phase, PhaseI, PhaseII, PhaseIII, PhaseIV) {
		return core.NewValidationError("phase", "unknown phase "+string(d.Phase))
	}
	if !oneOf(d.Design, DesignParallel, DesignCrossover, DesignFactorial, DesignAdaptive,
		DesignSequential, DesignNonInferiority, DesignSuperiority, DesignEquivalence) {
		return core.NewValidationError("design", "unknown design "+string(d.Design))
	}
	if !oneOf(d.Blinding, BlindingOpenLabel, BlindingSingleBlind, BlindingDoubleBlind, BlindingTripleBlind) {
		return core.NewValidationError("blinding", "unknown blinding "+string(d.Blinding))
	}
	if !oneOf(d.Randomization, RandomizationSimple, RandomizationBlock, RandomizationStratified, RandomizationResponseAdaptive) {
		return core.NewValidationError("randomization", "unknown randomization "+string(d.Randomization))
	}
	if d.NumberOfArms < 2 {
		return core.NewValidationError("number_of_arms", "at least two arms are required")
	}
	if d.TargetSampleSize < d.NumberOfArms {
		return core.NewValidationError("target_sample_size", "must allow at least one participant per arm")
	}
	primary := 0
	for _, ep := range d.Endpoints {
		if strings.TrimSpace(ep.Name) == "" {
			return core.NewValidationError("endpoints", "endpoint name must not be empty")
		}
		if !oneOf(ep.Type, EndpointPrimary, EndpointSecondary, EndpointSafety, EndpointComposite) {
			return core.NewValidationError("endpoints", "unknown endpoint type "+string(ep.Type))
		}
		if !oneOf(ep.MeasurementType, MeasurementContinuous, MeasurementBinary, MeasurementTimeToEvent, MeasurementOrdinal) {
			return core.NewValidationError("endpoints", "unknown measurement type "+string(ep.MeasurementType))
		}
		if ep.Type == EndpointPrimary {
			primary++
		}
	}
	if primary == 0 {
		return core.NewValidationError("endpoints", "a primary endpoint is required")
	}
	return nil
}

func oneOf[T comparable](v T, allowed ...T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
