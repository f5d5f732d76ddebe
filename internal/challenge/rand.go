package challenge

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the randomness source used by generators
type Rand interface {
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for the shared registry
type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRand creates a goroutine-safe source. A zero seed uses the clock.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}

// between returns an int in [min, max] inclusive
func between(rng Rand, min, max int) int {
	if max <= min {
		return min
	}
	return min + rng.Intn(max-min+1)
}
