package testkit

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"trialsim/domain/trial"
)

// ParticipantGeneratorConfig configures the participant data generator
type ParticipantGeneratorConfig struct {
	ControlN        int       `json:"control_n"`
	TreatmentN      int       `json:"treatment_n"`
	ControlRate     float64   `json:"control_rate"`
	TreatmentRate   float64   `json:"treatment_rate"`
	Sites           int       `json:"sites"`
	EnrollmentStart time.Time `json:"enrollment_start"`
	EnrollmentEnd   time.Time `json:"enrollment_end"`
	Seed            int64     `json:"seed"`
}

// DefaultParticipantConfig returns sensible defaults for participant generation
func DefaultParticipantConfig() ParticipantGeneratorConfig {
	return ParticipantGeneratorConfig{
		ControlN:        100,
		TreatmentN:      100,
		ControlRate:     0.3,
		TreatmentRate:   0.45,
		Sites:           4,
		EnrollmentStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EnrollmentEnd:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		Seed:            42,
	}
}

// Participant is one enrolled subject of a two-arm trial
type Participant struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	Arm        string    `json:"arm"`
	EnrolledAt time.Time `json:"enrolled_at"`
	Responded  bool      `json:"responded"`
}

// ParticipantHeaders are the column names of a participant-level file.
var ParticipantHeaders = []string{"participant_id", "site", "arm", "enrolled_at", "response"}

// Row renders p in ParticipantHeaders order.
func (p Participant) Row() []interface{} {
	response := 0
	if p.Responded {
		response = 1
	}
	return []interface{}{p.ID, p.Site, p.Arm, p.EnrolledAt.Format("2006-01-02"), response}
}

// ParticipantGenerator produces reproducible participant-level trial data
type ParticipantGenerator struct {
	config ParticipantGeneratorConfig
	rng    *rand.Rand
}

// NewParticipantGenerator creates a new participant generator
func NewParticipantGenerator(config ParticipantGeneratorConfig) *ParticipantGenerator {
	return &ParticipantGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate returns every participant ordered by enrolment date. Responses are
// Bernoulli draws at the arm's true rate.
func (g *ParticipantGenerator) Generate() ([]Participant, error) {
	c := g.config
	switch {
	case c.ControlN < 0 || c.TreatmentN < 0:
		return nil, fmt.Errorf("arm sizes must be non-negative, got %d and %d", c.ControlN, c.TreatmentN)
	case c.ControlRate < 0 || c.ControlRate > 1 || c.TreatmentRate < 0 || c.TreatmentRate > 1:
		return nil, fmt.Errorf("response rates must lie in [0, 1]")
	case !c.EnrollmentEnd.After(c.EnrollmentStart):
		return nil, fmt.Errorf("enrolment window is empty")
	}
	sites := c.Sites
	if sites < 1 {
		sites = 1
	}

	participants := make([]Participant, 0, c.ControlN+c.TreatmentN)
	add := func(arm string, n int, rate float64) {
		for i := 0; i < n; i++ {
			participants = append(participants, Participant{
				Site:       fmt.Sprintf("site_%02d", g.rng.Intn(sites)+1),
				Arm:        arm,
				EnrolledAt: g.randomTimeInRange(c.EnrollmentStart, c.EnrollmentEnd),
				Responded:  g.rng.Float64() < rate,
			})
		}
	}
	add("control", c.ControlN, c.ControlRate)
	add("treatment", c.TreatmentN, c.TreatmentRate)

	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].EnrolledAt.Before(participants[j].EnrolledAt)
	})
	for i := range participants {
		participants[i].ID = fmt.Sprintf("P%05d", i+1)
	}
	return participants, nil
}

// Count tallies responses per arm.
func Count(participants []Participant) (control, treatment trial.BinaryOutcomes) {
	for _, p := range participants {
		target := &control
		if p.Arm == "treatment" {
			target = &treatment
		}
		if p.Responded {
			target.Successes++
		} else {
			target.Failures++
		}
	}
	return control, treatment
}

func (g *ParticipantGenerator) randomTimeInRange(start, end time.Time) time.Time {
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return start
	}
	return start.AddDate(0, 0, g.rng.Intn(days+1))
}
