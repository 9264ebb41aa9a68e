package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic simulations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates a deterministic RNG stream for one stage of a run.
	// The same (runID, stage, key, baseSeed) always yields the same sequence, so a
	// stored run can be replayed from its seed.
	Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed checks that the named stream reproduces the expected leading draws
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
