package template

import (
	mathrand "math/rand/v2"

	"github.com/google/uuid"
)

// cloneSalt separates a clone's seed from its parent's.
const cloneSalt = 0xbf58476d1ce4e5b9

// Seeded returns a deterministic RNG for the given seed.
func Seeded(seed int64) *mathrand.Rand {
	return seededRand(uint64(seed))
}

func seededRand(seed uint64) *mathrand.Rand {
	return mathrand.New(mathrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SetSeed makes random functions deterministic for seed.
func (c *Context) SetSeed(seed int64) {
	c.setSeed(uint64(seed))
}

func (c *Context) setSeed(seed uint64) {
	c.seed, c.seeded = seed, true
	c.Rand = seededRand(seed)
}

// IntN returns a random int in [0, n) from the context RNG, or the global
// source when the context is unseeded.
func (c *Context) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	if c != nil && c.Rand != nil {
		return c.Rand.IntN(n)
	}
	return mathrand.IntN(n)
}

// Float64 returns a random float64 in [0, 1).
func (c *Context) Float64() float64 {
	if c != nil && c.Rand != nil {
		return c.Rand.Float64()
	}
	return mathrand.Float64()
}

// Uint64 returns a random uint64.
func (c *Context) Uint64() uint64 {
	if c != nil && c.Rand != nil {
		return c.Rand.Uint64()
	}
	return mathrand.Uint64()
}

// Uint64N returns a random uint64 in [0, n). It panics if n is 0.
func (c *Context) Uint64N(n uint64) uint64 {
	if c != nil && c.Rand != nil {
		return c.Rand.Uint64N(n)
	}
	return mathrand.Uint64N(n)
}

// UUID generates a version 4 UUID. Seeded contexts produce a deterministic
// sequence; otherwise crypto/rand backs the value.
func (c *Context) UUID() string {
	if c == nil || c.Rand == nil {
		return uuid.NewString()
	}
	var b uuid.UUID
	for i := range b {
		b[i] = byte(c.Rand.IntN(256))
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return b.String()
}
