package util

import (
	"math/rand/v2"
	"sync"
)

// Rand is a goroutine safe source of deterministic pseudo random numbers.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRand() *Rand {
	// Use a fixed seed
	seed := [32]byte{
		0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef,
		0xfe, 0xdc, 0xba, 0x98, 0x76, 0x54, 0x32, 0x10,
		0x0f, 0x1e, 0x2d, 0x3c, 0x4b, 0x5a, 0x69, 0x78,
		0x87, 0x96, 0xa5, 0xb4, 0xc3, 0xd2, 0xe1, 0xf0,
	}

	return &Rand{
		r: rand.New(rand.NewChaCha8(seed)),
	}
}

// Float64 returns a number in [0.0, 1.0).
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.r.Float64()
}

// Jitter returns a duration in [d/2, 3d/2).
func (r *Rand) Jitter(d int64) int64 {
	if d <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return d/2 + r.r.Int64N(d)
}
