// Package fitness runs candidate liquidity curves against simulated markets
// and scores them. Higher scores are better.
package fitness

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/regime"
)

// stabilityFloor keeps the dispersion ratio finite when mean scores sit near zero.
const stabilityFloor = 0.1

// ScoreWeights combine metrics into one scalar. Every weight is a magnitude;
// the sign comes from the metric's direction.
type ScoreWeights struct {
	Fees        float64 `yaml:"fees" json:"fees"`
	Slippage    float64 `yaml:"slippage" json:"slippage"`
	ArbLeakage  float64 `yaml:"arb_leakage" json:"arb_leakage"`
	Utilization float64 `yaml:"utilization" json:"utilization"`
	LPValue     float64 `yaml:"lp_value" json:"lp_value"`
	Drawdown    float64 `yaml:"drawdown" json:"drawdown"`
	Volatility  float64 `yaml:"volatility" json:"volatility"`
}

func DefaultWeights() ScoreWeights {
	return ScoreWeights{
		Fees:        50,
		Slippage:    5,
		ArbLeakage:  10,
		Utilization: 1,
		LPValue:     10,
		Drawdown:    5,
		Volatility:  1,
	}
}

func (w ScoreWeights) Combine(m model.Metrics) float64 {
	return w.Fees*m.TotalFees -
		w.Slippage*m.TotalSlippage -
		w.ArbLeakage*m.ArbLeakage +
		w.Utilization*m.LiquidityUtilization +
		w.LPValue*m.LPValueVsHodl -
		w.Drawdown*m.MaxDrawdown -
		w.Volatility*m.VolatilityOfReturns
}

type Evaluator struct {
	FeeRate          float64
	ArbThreshold     float64
	MaxSlippage      float64
	ActiveBand       int
	Weights          ScoreWeights
	StabilityPenalty float64
	// IdlePenalty is subtracted from the score of a path on which orders
	// arrived but the curve traded nothing.
	IdlePenalty float64
}

func DefaultEvaluator() Evaluator {
	return Evaluator{
		FeeRate:          0.003,
		ArbThreshold:     0.004,
		MaxSlippage:      0.5,
		ActiveBand:       2,
		Weights:          DefaultWeights(),
		StabilityPenalty: 0.25,
		IdlePenalty:      10,
	}
}

type Result struct {
	Metrics    model.Metrics
	PathScores []float64
	Stability  float64
	Score      float64
}

// Evaluate is total over well-formed bins; it never errors.
func (e Evaluator) Evaluate(bins []float64, paths []regime.Path) Result {
	if len(paths) == 0 {
		return Result{}
	}

	perPath := make([]model.Metrics, len(paths))
	scores := make([]float64, len(paths))
	for i, path := range paths {
		var idle bool
		perPath[i], idle = e.simulate(bins, path)
		scores[i] = e.Weights.Combine(perPath[i])
		if idle {
			scores[i] -= e.IdlePenalty
		}
	}

	metrics := meanMetrics(perPath)
	mean := stat.Mean(scores, nil)
	stability := Stability(scores)
	return Result{
		Metrics:    metrics,
		PathScores: scores,
		Stability:  stability,
		Score:      mean - e.StabilityPenalty*stability,
	}
}

// Stability is the dispersion of per-path scores relative to their mean;
// identical scores give 0.
func Stability(scores []float64) float64 {
	if len(scores) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(scores, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return std / (math.Abs(mean) + stabilityFloor)
}

// simulate runs one path. idle reports that orders arrived but nothing was
// ever filled.
func (e Evaluator) simulate(bins []float64, path regime.Path) (model.Metrics, bool) {
	p := newPool(bins)
	x0, y0 := p.holdings()
	v0 := x0 + y0
	if v0 <= 0 {
		v0 = 1
	}

	var (
		fees, slippage, leak, utilization float64
		peakRatio                         = 1.0
		maxDrawdown                       float64
		orders                            int
		traded                            float64
	)
	returns := make([]float64, 0, len(path.Flow))
	prevValue := v0

	for t, order := range path.Flow {
		external := path.LogPrices[t+1]

		if order != 0 {
			orders++
			size := math.Abs(order) * v0
			if p.bins[p.currentBin()] == 0 {
				slippage += size * e.MaxSlippage
			} else {
				start := p.logP
				target := liquidity.LogPriceSpan
				if order < 0 {
					target = -liquidity.LogPriceSpan
				}
				filled := p.walk(target, size)
				rate := math.Min(e.MaxSlippage, math.Abs(p.logP-start)/2)
				slippage += filled*rate + (size-filled)*e.MaxSlippage
				fees += e.FeeRate * filled
				traded += filled
			}
		}

		if gap := math.Abs(external - p.logP); gap > e.ArbThreshold {
			start := p.logP
			volume := p.walk(external, math.Inf(1))
			leak += volume * math.Abs(p.logP-start) / 2
			fees += e.FeeRate * volume
			traded += volume
		}

		utilization += p.activeLiquidity(e.ActiveBand) / liquidity.TotalLiquidity

		price := math.Exp(external)
		x, y := p.holdings()
		value := x*price + y + fees
		hodl := x0*price + y0
		ratio := 1.0
		if hodl > 0 {
			ratio = value / hodl
		}
		peakRatio = math.Max(peakRatio, ratio)
		if dd := (peakRatio - ratio) / peakRatio; dd > maxDrawdown {
			maxDrawdown = dd
		}
		if prevValue > 0 && value > 0 {
			returns = append(returns, math.Log(value/prevValue))
		}
		prevValue = value
	}

	steps := float64(len(path.Flow))
	if steps == 0 {
		return model.Metrics{}, false
	}
	finalPrice := math.Exp(path.LogPrices[len(path.LogPrices)-1])
	x, y := p.holdings()
	finalHodl := x0*finalPrice + y0
	lpVsHodl := 0.0
	if finalHodl > 0 {
		lpVsHodl = (x*finalPrice+y+fees)/finalHodl - 1
	}

	volatility := 0.0
	if len(returns) > 1 {
		volatility = stat.StdDev(returns, nil)
	}

	return model.Metrics{
		TotalFees:            fees / v0,
		TotalSlippage:        slippage / v0,
		ArbLeakage:           leak / v0,
		LiquidityUtilization: utilization / steps,
		LPValueVsHodl:        lpVsHodl,
		MaxDrawdown:          maxDrawdown,
		VolatilityOfReturns:  volatility,
	}, orders > 0 && traded == 0
}

func meanMetrics(all []model.Metrics) model.Metrics {
	column := func(pick func(model.Metrics) float64) float64 {
		xs := make([]float64, len(all))
		for i, m := range all {
			xs[i] = pick(m)
		}
		return stat.Mean(xs, nil)
	}
	return model.Metrics{
		TotalFees:            column(func(m model.Metrics) float64 { return m.TotalFees }),
		TotalSlippage:        column(func(m model.Metrics) float64 { return m.TotalSlippage }),
		ArbLeakage:           column(func(m model.Metrics) float64 { return m.ArbLeakage }),
		LiquidityUtilization: column(func(m model.Metrics) float64 { return m.LiquidityUtilization }),
		LPValueVsHodl:        column(func(m model.Metrics) float64 { return m.LPValueVsHodl }),
		MaxDrawdown:          column(func(m model.Metrics) float64 { return m.MaxDrawdown }),
		VolatilityOfReturns:  column(func(m model.Metrics) float64 { return m.VolatilityOfReturns }),
	}
}
