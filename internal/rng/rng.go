// Package rng defines the random source shared by generation, simulation and
// evaluation so callers can inject a deterministic stream.
package rng

import (
	"io"
	"math/rand"
)

// Source is the subset of *rand.Rand the engine draws from.
type Source interface {
	Float64() float64
	NormFloat64() float64
	Intn(n int) int
}

// New returns a seeded *rand.Rand. It is not safe for concurrent use; give
// each goroutine its own source.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Derive returns a child seed for stream index i so independent streams built
// from one base seed never overlap.
func Derive(seed int64, i int) int64 {
	const golden = -7046029254386353131 // 0x9e3779b97f4a7c15
	return seed ^ (int64(i+1) * golden)
}

// Reader adapts a Source into an io.Reader yielding one byte per Intn draw.
func Reader(src Source) io.Reader {
	return sourceReader{src: src}
}

type sourceReader struct {
	src Source
}

func (r sourceReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.src.Intn(256))
	}
	return len(p), nil
}

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// Bernoulli reports true with probability p.
func Bernoulli(src Source, p float64) bool {
	if p <= 0 {
		return false
	}
	return src.Float64() < p
}
