package testkit

import (
	"context"
	"math/rand"
	"sort"
	"sync"

	"trialsim/adapters/rng"
	"trialsim/domain/core"
	"trialsim/domain/run"
	"trialsim/domain/trial"
	"trialsim/models"
	"trialsim/ports"
)

// TestKit bundles in-memory adapters. The binaries fall back to it when no
// DATABASE_URL is configured, and service tests use it directly.
type TestKit struct {
	runs    *InMemoryRunRepository
	designs *InMemoryDesignRepository
	rng     *rng.Adapter
}

// NewTestKit creates a new test kit with empty stores
func NewTestKit() *TestKit {
	return &TestKit{
		runs:    NewInMemoryRunRepository(),
		designs: NewInMemoryDesignRepository(),
		rng:     rng.New(),
	}
}

// RunRepository returns the shared in-memory run store
func (t *TestKit) RunRepository() ports.RunRepository { return t.runs }

// DesignRepository returns the shared in-memory design store
func (t *TestKit) DesignRepository() ports.DesignRepository { return t.designs }

// RNGAdapter returns the deterministic RNG adapter
func (t *TestKit) RNGAdapter() ports.RNGPort { return t.rng }

// Seeded returns a fresh generator for a test.
func Seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// InMemoryRunRepository implements ports.RunRepository over a map
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[core.RunID]*models.SimulationRun
}

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]*models.SimulationRun)}
}

func (r *InMemoryRunRepository) SaveRun(ctx context.Context, sr *models.SimulationRun) error {
	if sr.ID.String() == "" {
		return core.NewValidationError("id", "run ID must be set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sr
	r.runs[sr.ID] = &cp
	return nil
}

func (r *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*models.SimulationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sr, ok := r.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	cp := *sr
	return &cp, nil
}

func (r *InMemoryRunRepository) ListRuns(ctx context.Context, kind run.Kind, limit int) ([]*models.SimulationRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.SimulationRun, 0, len(r.runs))
	for _, sr := range r.runs {
		if kind != "" && sr.Kind != kind {
			continue
		}
		cp := *sr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InMemoryDesignRepository implements ports.DesignRepository over a map
type InMemoryDesignRepository struct {
	mu      sync.RWMutex
	designs map[core.DesignID]trial.Design
}

func NewInMemoryDesignRepository() *InMemoryDesignRepository {
	return &InMemoryDesignRepository{designs: make(map[core.DesignID]trial.Design)}
}

func (r *InMemoryDesignRepository) SaveDesign(ctx context.Context, d *trial.Design) error {
	if d.ID.String() == "" {
		return core.NewValidationError("id", "design ID must be set")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.designs[d.ID] = *d
	return nil
}

func (r *InMemoryDesignRepository) GetDesign(ctx context.Context, id core.DesignID) (*trial.Design, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.designs[id]
	if !ok {
		return nil, core.ErrDesignNotFound
	}
	return &d, nil
}

func (r *InMemoryDesignRepository) ListDesigns(ctx context.Context, limit int) ([]*trial.Design, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*trial.Design, 0, len(r.designs))
	for _, d := range r.designs {
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
