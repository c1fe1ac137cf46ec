// Package liquidity defines the discretised liquidity density every AMM
// design is expressed in: BinCount buckets across a fixed log-price window,
// always carrying exactly TotalLiquidity.
package liquidity

import (
	"fmt"
	"math"
)

const (
	BinCount       = 64
	TotalLiquidity = 1000.0
)

// LogPriceSpan is the half-width of the log-price window; bins cover
// [-LogPriceSpan, +LogPriceSpan] around a reference price of 1.
var LogPriceSpan = math.Log(4)

// BinWidth is the log-price width of one bin.
func BinWidth() float64 {
	return 2 * LogPriceSpan / BinCount
}

// Coordinate maps bin i to its centre in normalised [-1, 1] space.
func Coordinate(i int) float64 {
	return -1 + (2*float64(i)+1)/BinCount
}

// Bounds returns the log-price edges of bin i.
func Bounds(i int) (lo, hi float64) {
	w := BinWidth()
	lo = -LogPriceSpan + float64(i)*w
	return lo, lo + w
}

// LogPrice returns the log-price at the centre of bin i.
func LogPrice(i int) float64 {
	lo, hi := Bounds(i)
	return (lo + hi) / 2
}

// BinOf returns the bin containing logPrice, clamped into range.
func BinOf(logPrice float64) int {
	idx := int(math.Floor((logPrice + LogPriceSpan) / BinWidth()))
	if idx < 0 {
		return 0
	}
	if idx >= BinCount {
		return BinCount - 1
	}
	return idx
}

// Sum adds all bins.
func Sum(bins []float64) float64 {
	total := 0.0
	for _, v := range bins {
		total += v
	}
	return total
}

// Normalize scales raw weights so they sum to TotalLiquidity. Negative and
// non-finite weights count as zero and an all-zero shape becomes uniform.
// The rounding residual is folded into the largest bin.
func Normalize(raw []float64) []float64 {
	out := make([]float64, BinCount)
	total := 0.0
	for i := 0; i < BinCount && i < len(raw); i++ {
		v := raw[i]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = v
		total += v
	}
	if total <= 0 || math.IsInf(total, 0) {
		for i := range out {
			out[i] = TotalLiquidity / BinCount
		}
		return out
	}

	scale := TotalLiquidity / total
	largest := 0
	for i := range out {
		out[i] *= scale
		if out[i] > out[largest] {
			largest = i
		}
	}
	out[largest] += TotalLiquidity - Sum(out)
	if out[largest] < 0 {
		out[largest] = 0
	}
	return out
}

// Validate checks the shape and conservation invariants.
func Validate(bins []float64) error {
	if len(bins) != BinCount {
		return fmt.Errorf("expected %d bins, got %d", BinCount, len(bins))
	}
	for i, v := range bins {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bin %d has invalid weight %v", i, v)
		}
	}
	if sum := Sum(bins); math.Abs(sum-TotalLiquidity) > 1e-6 {
		return fmt.Errorf("bins sum to %v, want %v", sum, TotalLiquidity)
	}
	return nil
}
