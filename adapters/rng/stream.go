package rng

import (
	"context"
	"fmt"
	"math/rand"

	"trialsim/domain/core"
	"trialsim/ports"
)

// Adapter implements ports.RNGPort on math/rand. Every stream is derived
// from its base seed and names alone, so replaying a run with its stored
// seed reproduces every draw.
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// New returns an RNG adapter.
func New() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(deriveSeed(seed, name))), nil
}

// Stream creates a deterministic RNG stream for one stage of a run
func (a *Adapter) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(deriveSeed(baseSeed, runID, stageName, key))), nil
}

// ValidateSeed draws len(expected) values from the named stream and compares
func (a *Adapter) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	r, err := a.SeededStream(ctx, name, seed)
	if err != nil {
		return err
	}
	for i, want := range expected {
		if got := r.Float64(); got != want {
			return fmt.Errorf("%w: stream %q seed %d draw %d: got %v, want %v", core.ErrSeedMismatch, name, seed, i, got, want)
		}
	}
	return nil
}

// deriveSeed mixes the non-empty parts into base. An empty part leaves the
// seed unchanged, so SeededStream(name="") equals rand.NewSource(seed).
func deriveSeed(base int64, parts ...string) int64 {
	seed := base
	for _, p := range parts {
		if p != "" {
			seed = int64(hashString(p)) + seed
		}
	}
	return seed
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
