// Package features computes shape descriptors of a liquidity distribution.
// They depend only on the bins and are used for visual maps and similarity.
package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

const peakRadius = 4

// MaxTailRatio stands in for the tail density ratio of a curve with no core
// mass, keeping features finite for JSON and distance computations.
const MaxTailRatio = 1e6

// Extract computes all descriptors from bins.
func Extract(bins []float64) model.Features {
	p := mass(bins)
	n := len(p)
	if n < 3 {
		return model.Features{}
	}

	second := make([]float64, n-2)
	for i := 1; i < n-1; i++ {
		second[i-1] = p[i-1] - 2*p[i] + p[i+1]
	}
	curvature := meanAbs(second) * float64(n)

	third := make([]float64, len(second)-1)
	for i := 1; i < len(second); i++ {
		third[i-1] = second[i] - second[i-1]
	}
	gradient := meanAbs(third) * float64(n)

	entropy := 0.0
	for _, v := range p {
		if v > 0 {
			entropy -= v * math.Log(v)
		}
	}
	entropy /= math.Log(float64(n))

	asym := 0.0
	for i := 0; i < n; i++ {
		asym += math.Abs(p[i] - p[n-1-i])
	}
	symmetry := 1 - asym/2

	quarter := n / 4
	tails := floats.Sum(p[:quarter]) + floats.Sum(p[n-quarter:])
	core := floats.Sum(p[quarter : n-quarter])
	tailRatio := 0.0
	if core > 0 {
		tailRatio = math.Min(tails/core, MaxTailRatio)
	} else if tails > 0 {
		tailRatio = MaxTailRatio
	}

	peak := floats.MaxIdx(p)
	lo := max(0, peak-peakRadius)
	hi := min(n, peak+peakRadius+1)
	peakConcentration := floats.Sum(p[lo:hi])

	return model.Features{
		Curvature:          curvature,
		CurvatureGradient:  gradient,
		Entropy:            entropy,
		Symmetry:           symmetry,
		TailDensityRatio:   tailRatio,
		PeakConcentration:  peakConcentration,
		ConcentrationWidth: halfMassWidth(p, peak),
	}
}

// Distance is the Euclidean distance between feature vectors.
func Distance(a, b model.Features) float64 {
	return floats.Distance(a.Vector(), b.Vector(), 2)
}

// Nearest returns up to k candidates from pool closest to target, skipping
// the target itself.
func Nearest(target model.Candidate, pool []model.Candidate, k int) []model.Candidate {
	if k <= 0 {
		return nil
	}
	type scored struct {
		c    model.Candidate
		dist float64
	}
	items := make([]scored, 0, len(pool))
	for _, c := range pool {
		if c.ID == target.ID {
			continue
		}
		items = append(items, scored{c: c, dist: Distance(target.Features, c.Features)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].dist == items[j].dist {
			return items[i].c.ID < items[j].c.ID
		}
		return items[i].dist < items[j].dist
	})
	if len(items) > k {
		items = items[:k]
	}
	out := make([]model.Candidate, len(items))
	for i, item := range items {
		out[i] = item.c
	}
	return out
}

func mass(bins []float64) []float64 {
	p := make([]float64, len(bins))
	total := 0.0
	for i, v := range bins {
		if v > 0 {
			p[i] = v
			total += v
		}
	}
	if total <= 0 {
		return p
	}
	floats.Scale(1/total, p)
	return p
}

func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return floats.Norm(xs, 1) / float64(len(xs))
}

// halfMassWidth grows a window around peak, always towards the heavier
// neighbour, until it holds half of the mass.
func halfMassWidth(p []float64, peak int) float64 {
	lo, hi := peak, peak
	acc := p[peak]
	for acc < 0.5 && (lo > 0 || hi < len(p)-1) {
		left, right := -1.0, -1.0
		if lo > 0 {
			left = p[lo-1]
		}
		if hi < len(p)-1 {
			right = p[hi+1]
		}
		if left >= right {
			lo--
			acc += p[lo]
		} else {
			hi++
			acc += p[hi]
		}
	}
	return float64(hi-lo+1) / float64(len(p))
}
