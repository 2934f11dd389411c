package rand

import (
	mrand "math/rand"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
)

// A Generator is a Mersenne twister with the helpers the sampler needs. The
// same seed always gives the same stream. A Generator is not safe for
// concurrent use.
type Generator struct {
	mt   *mt19937.MT19937
	norm *mrand.Rand // normal deviates drawn from the same stream
}

func newGenerator(mt *mt19937.MT19937) *Generator {
	return &Generator{
		mt:   mt,
		norm: mrand.New(mt),
	}
}

// NewGenerator creates a generator from the given seed
func NewGenerator(seed int64) (*Generator, error) {
	mt := mt19937.New()
	mt.Seed(seed)
	return newGenerator(mt), nil
}

// NewGeneratorSlice creates a generator seeded from a key of any non-zero
// length, as in the reference MT19937-64 implementation
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.Errorf("Seed key must not be empty")
	}
	mt := mt19937.New()
	mt.SeedFromSlice(key)
	return newGenerator(mt), nil
}

// Int63 provides the same interface as Go's math/rand
func (g *Generator) Int63() int64 {
	return g.mt.Int63()
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Intn returns a uniform int in [0, n)
func (g *Generator) Intn(n int) int {
	if n <= 0 {
		panic("invalid argument to Intn")
	}
	return int(g.Int63n(int64(n)))
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}

// NormFloat64 returns a standard normal deviate
func (g *Generator) NormFloat64() float64 {
	return g.norm.NormFloat64()
}
