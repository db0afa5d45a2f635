package generator

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Rand is the random source every generator decision is drawn from.
// Implementations must be safe for concurrent use.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand returns a concurrency-safe PCG source. Equal seeds give equal sequences.
func NewRand(seed uint64) Rand {
	return &lockedRand{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewTimeSeededRand seeds from the wall clock.
func NewTimeSeededRand() Rand {
	return NewRand(uint64(time.Now().UnixNano()))
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.IntN(n)
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Float64()
}
