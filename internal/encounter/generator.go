// Package encounter implements weighted random selection over candidate
// encounter pools.
package encounter

import (
	"errors"
	"math/rand"
	"sync"
)

// Mode describes how a candidate can be encountered at a location.
type Mode string

const (
	// ModeWalk covers grass, cave and building encounters.
	ModeWalk Mode = "walk"
	// ModeSurf covers encounters while surfing.
	ModeSurf Mode = "surf"
	// ModeFish covers rod encounters.
	ModeFish Mode = "fish"
)

// ErrEmptyPool indicates a draw was requested against a pool with no
// drawable candidates. It signals a configuration or data gap, not a
// transient failure.
var ErrEmptyPool = errors.New("encounter candidate pool is empty")

// Candidate is one weighted encounter template. Candidates are read-only
// pool data scoped by (generation, location, mode); they are never mutated.
type Candidate struct {
	GenerationID string  `json:"generationId"`
	LocationID   string  `json:"locationId"`
	Mode         Mode    `json:"mode"`
	SpeciesID    int     `json:"speciesId"`
	Rate         float64 `json:"rate"`
}

// Generator selects one candidate from a pool.
type Generator interface {
	Pick(candidates []Candidate) (Candidate, error)
}

// WeightedGenerator draws candidates in proportion to their encounter rate.
//
// Rates are unnormalized weights; the draw normalizes internally. Repeated
// calls are independent draws. The generator is safe for concurrent use.
type WeightedGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeightedGenerator creates a generator seeded with the provided value.
// Tests supply fixed seeds to make distribution checks deterministic.
func NewWeightedGenerator(seed int64) *WeightedGenerator {
	return &WeightedGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Pick draws one candidate using weighted random sampling. Candidates with
// a non-positive rate are never drawn; a pool with no positive weight is
// treated as empty.
func (g *WeightedGenerator) Pick(candidates []Candidate) (Candidate, error) {
	if len(candidates) == 0 {
		return Candidate{}, ErrEmptyPool
	}

	total := 0.0
	for _, candidate := range candidates {
		if candidate.Rate > 0 {
			total += candidate.Rate
		}
	}
	if total <= 0 {
		return Candidate{}, ErrEmptyPool
	}

	g.mu.Lock()
	roll := g.rng.Float64() * total
	g.mu.Unlock()

	cumulative := 0.0
	last := Candidate{}
	found := false
	for _, candidate := range candidates {
		if candidate.Rate <= 0 {
			continue
		}
		cumulative += candidate.Rate
		last = candidate
		found = true
		if roll < cumulative {
			return candidate, nil
		}
	}

	// Floating point accumulation can leave roll marginally past the final
	// boundary; the last positive-weight candidate absorbs it.
	if found {
		return last, nil
	}
	return Candidate{}, ErrEmptyPool
}
