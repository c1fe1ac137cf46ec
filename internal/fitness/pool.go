package fitness

import (
	"math"

	"github.com/ManiFed/invariant-sub001/internal/liquidity"
)

// pool is a concentrated-liquidity pool where bin i holds liquidity bins[i]
// over its log-price range. Moving the price inside a bin costs L·|Δ√p|.
type pool struct {
	bins   []float64
	logP   float64
	sqrtLo []float64
	sqrtHi []float64
}

func newPool(bins []float64) *pool {
	p := &pool{
		bins:   bins,
		sqrtLo: make([]float64, len(bins)),
		sqrtHi: make([]float64, len(bins)),
	}
	for i := range bins {
		lo, hi := liquidity.Bounds(i)
		p.sqrtLo[i] = math.Exp(lo / 2)
		p.sqrtHi[i] = math.Exp(hi / 2)
	}
	return p
}

func (p *pool) currentBin() int {
	return liquidity.BinOf(p.logP)
}

// walk moves the pool price towards target, spending at most budget of value.
// It returns the value actually spent.
func (p *pool) walk(target, budget float64) float64 {
	target = math.Max(-liquidity.LogPriceSpan, math.Min(liquidity.LogPriceSpan, target))
	up := target > p.logP
	if target == p.logP || budget <= 0 {
		return 0
	}

	i := liquidity.BinOf(p.logP)
	if !up {
		if lo, _ := liquidity.Bounds(i); p.logP <= lo && i > 0 {
			i--
		}
	}

	cur := p.logP
	spent := 0.0
	for i >= 0 && i < len(p.bins) {
		lo, hi := liquidity.Bounds(i)
		next := lo
		if up {
			next = hi
			if target < next {
				next = target
			}
		} else if target > next {
			next = target
		}

		sCur, sNext := math.Exp(cur/2), math.Exp(next/2)
		cost := p.bins[i] * math.Abs(sNext-sCur)
		if cost > budget-spent {
			ds := (budget - spent) / p.bins[i]
			if up {
				cur = 2 * math.Log(sCur+ds)
			} else {
				cur = 2 * math.Log(sCur-ds)
			}
			spent = budget
			break
		}
		spent += cost
		cur = next
		if cur == target {
			break
		}
		if up {
			i++
		} else {
			i--
		}
	}
	p.logP = cur
	return spent
}

// holdings returns token balances (x priced in y) at the current pool price.
func (p *pool) holdings() (x, y float64) {
	s := math.Exp(p.logP / 2)
	for i, l := range p.bins {
		if l == 0 {
			continue
		}
		sa, sb := p.sqrtLo[i], p.sqrtHi[i]
		switch {
		case s <= sa:
			x += l * (1/sa - 1/sb)
		case s >= sb:
			y += l * (sb - sa)
		default:
			x += l * (1/s - 1/sb)
			y += l * (s - sa)
		}
	}
	return x, y
}

// activeLiquidity sums liquidity within band bins of the current price.
func (p *pool) activeLiquidity(band int) float64 {
	c := p.currentBin()
	total := 0.0
	for i := max(0, c-band); i <= min(len(p.bins)-1, c+band); i++ {
		total += p.bins[i]
	}
	return total
}
