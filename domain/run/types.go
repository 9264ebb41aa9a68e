package run

import (
	"time"

	"trialsim/domain/core"
)

// Kind names the simulator that produced a run.
type Kind string

const (
	KindBayesian          Kind = "bayesian"
	KindAdaptive          Kind = "adaptive"
	KindAdaptiveReplicate Kind = "adaptive-replicate"
	KindInterim           Kind = "interim"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBayesian, KindAdaptive, KindAdaptiveReplicate, KindInterim:
		return true
	}
	return false
}

// Kinds lists every run kind.
func Kinds() []Kind {
	return []Kind{KindBayesian, KindAdaptive, KindAdaptiveReplicate, KindInterim}
}

// Manifest is the replay record of a run: given the same kind, seed and
// parameters the simulator reproduces the stored result exactly.
type Manifest struct {
	RunID       core.RunID `json:"run_id"`
	Kind        Kind       `json:"kind"`
	Seed        int64      `json:"seed"`
	Fingerprint core.Hash  `json:"fingerprint"`
	CodeVersion string     `json:"code_version"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CodeVersion is stamped into every manifest. Bump it when a numerical
// routine changes the draws a seed produces.
const CodeVersion = "1.0.0"

// NewManifest creates a manifest for a fresh run.
func NewManifest(kind Kind, seed int64, params interface{}) (*Manifest, error) {
	if !kind.Valid() {
		return nil, core.NewValidationError("kind", "unknown run kind "+string(kind))
	}
	fp, err := core.Fingerprint(string(kind)+"@"+CodeVersion, seed, params)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		RunID:       core.NewRunID(),
		Kind:        kind,
		Seed:        seed,
		Fingerprint: fp,
		CodeVersion: CodeVersion,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Replays reports whether other describes the same computation as m.
func (m *Manifest) Replays(other *Manifest) bool {
	return m.Fingerprint == other.Fingerprint
}
