package logic

import (
	"math/rand"
	"sync"
)

// Rand is the randomness source used by turn selection and the reaction
// cascade. Tests inject a fixed-sequence stub for deterministic
// selection; production uses LockedRand.
type Rand interface {
	// Intn returns a non-negative pseudo-random number in [0, n)
	Intn(n int) int
	// Float64 returns a pseudo-random number in [0.0, 1.0)
	Float64() float64
	// Perm returns a pseudo-random permutation of [0, n)
	Perm(n int) []int
}

// LockedRand guards a *rand.Rand with a mutex. One turn selection runs
// on the HTTP handler goroutine while reaction draws happen on
// scheduler goroutines, so the shared source must be safe for
// concurrent use.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand creates a concurrency-safe randomness source
func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{rng: rand.New(rand.NewSource(seed))}
}

// Intn implements Rand
func (r *LockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}

// Float64 implements Rand
func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Perm implements Rand
func (r *LockedRand) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Perm(n)
}
