// Package latent derives the generator's input vectors from an integer seed.
//
// The stream reproduces the legacy NumPy RandomState: an MT19937 generator
// seeded with init_genrand, 53-bit doubles built from two 32-bit draws, and
// standard normals from the polar Box-Muller method with the second deviate
// cached for the next call. The same seed therefore yields the same latent
// the model was tuned against.
package latent

import (
	"math"

	"gonum.org/v1/gonum/mathext/prng"
)

// Source is a deterministic standard-normal generator. It is not safe for
// concurrent use.
type Source struct {
	mt       *prng.MT19937
	hasGauss bool
	gauss    float64
}

func NewSource(seed uint32) *Source {
	mt := prng.NewMT19937()
	mt.Seed(uint64(seed))
	return &Source{mt: mt}
}

// Float64 returns a uniform value in [0, 1) with 53 bits of precision.
func (s *Source) Float64() float64 {
	a := s.mt.Uint32() >> 5
	b := s.mt.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) / 9007199254740992.0
}

// NormFloat64 returns a standard normal deviate.
func (s *Source) NormFloat64() float64 {
	if s.hasGauss {
		s.hasGauss = false
		return s.gauss
	}

	var x1, x2, r2 float64
	for {
		x1 = 2.0*s.Float64() - 1.0
		x2 = 2.0*s.Float64() - 1.0
		r2 = x1*x1 + x2*x2
		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}

	f := math.Sqrt(-2.0 * math.Log(r2) / r2)
	s.gauss = f * x1
	s.hasGauss = true
	return f * x2
}

// Gaussian returns a rows×cols matrix of standard normals in row-major draw order.
func Gaussian(seed uint32, rows, cols int) [][]float64 {
	src := NewSource(seed)
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		for j := range row {
			row[j] = src.NormFloat64()
		}
		out[i] = row
	}
	return out
}
