package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/ManiFed/invariant-sub001/internal/family"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type Regime string

const (
	RegimeLowVolatility  Regime = "low-volatility"
	RegimeHighVolatility Regime = "high-volatility"
	RegimeJumpDiffusion  Regime = "jump-diffusion"
	RegimeShift          Regime = "regime-shift"
)

var ErrUnknownRegime = errors.New("unknown regime")

// Regimes returns the fixed regime set in canonical order.
func Regimes() []Regime {
	return []Regime{RegimeLowVolatility, RegimeHighVolatility, RegimeJumpDiffusion, RegimeShift}
}

func ParseRegime(s string) (Regime, error) {
	for _, r := range Regimes() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegime, s)
}

func (r Regime) Valid() bool {
	_, err := ParseRegime(string(r))
	return err == nil
}

type Metrics struct {
	TotalFees            float64 `json:"total_fees"`
	TotalSlippage        float64 `json:"total_slippage"`
	ArbLeakage           float64 `json:"arb_leakage"`
	LiquidityUtilization float64 `json:"liquidity_utilization"`
	LPValueVsHodl        float64 `json:"lp_value_vs_hodl"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	VolatilityOfReturns  float64 `json:"volatility_of_returns"`
}

type MetricName string

const (
	MetricTotalFees            MetricName = "totalFees"
	MetricTotalSlippage        MetricName = "totalSlippage"
	MetricArbLeakage           MetricName = "arbLeakage"
	MetricLiquidityUtilization MetricName = "liquidityUtilization"
	MetricLPValueVsHodl        MetricName = "lpValueVsHodl"
	MetricMaxDrawdown          MetricName = "maxDrawdown"
	MetricVolatilityOfReturns  MetricName = "volatilityOfReturns"
)

var ErrUnknownMetric = errors.New("unknown metric")

func AllMetrics() []MetricName {
	return []MetricName{
		MetricTotalFees,
		MetricTotalSlippage,
		MetricArbLeakage,
		MetricLiquidityUtilization,
		MetricLPValueVsHodl,
		MetricMaxDrawdown,
		MetricVolatilityOfReturns,
	}
}

func ParseMetric(s string) (MetricName, error) {
	for _, m := range AllMetrics() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// Value returns the named metric. Unknown names panic.
func (m Metrics) Value(name MetricName) float64 {
	switch name {
	case MetricTotalFees:
		return m.TotalFees
	case MetricTotalSlippage:
		return m.TotalSlippage
	case MetricArbLeakage:
		return m.ArbLeakage
	case MetricLiquidityUtilization:
		return m.LiquidityUtilization
	case MetricLPValueVsHodl:
		return m.LPValueVsHodl
	case MetricMaxDrawdown:
		return m.MaxDrawdown
	case MetricVolatilityOfReturns:
		return m.VolatilityOfReturns
	default:
		panic(fmt.Sprintf("%v: %s", ErrUnknownMetric, name))
	}
}

type Features struct {
	Curvature          float64 `json:"curvature"`
	CurvatureGradient  float64 `json:"curvature_gradient"`
	Entropy            float64 `json:"entropy"`
	Symmetry           float64 `json:"symmetry"`
	TailDensityRatio   float64 `json:"tail_density_ratio"`
	PeakConcentration  float64 `json:"peak_concentration"`
	ConcentrationWidth float64 `json:"concentration_width"`
}

// Vector lists the features in declaration order.
func (f Features) Vector() []float64 {
	return []float64{
		f.Curvature,
		f.CurvatureGradient,
		f.Entropy,
		f.Symmetry,
		f.TailDensityRatio,
		f.PeakConcentration,
		f.ConcentrationWidth,
	}
}

// Candidate is one fully evaluated AMM design. Values are never mutated after
// construction; Bins must not be written through.
type Candidate struct {
	ID         string
	Bins       []float64
	Family     family.ID
	Params     family.Params
	Regime     Regime
	Generation int
	ParentID   string
	Metrics    Metrics
	Features   Features
	Stability  float64
	Score      float64
	Timestamp  time.Time
}

type Population struct {
	Regime     Regime      `json:"regime"`
	Generation int         `json:"generation"`
	Candidates []Candidate `json:"candidates"`
}

func (p Population) Clone() Population {
	out := p
	out.Candidates = append([]Candidate(nil), p.Candidates...)
	return out
}

// EngineState is the aggregate root: one population per regime plus the
// cumulative archive.
type EngineState struct {
	VersionedRecord
	Populations      map[Regime]Population `json:"populations"`
	Archive          []Candidate           `json:"archive"`
	TotalGenerations int                   `json:"total_generations"`
	FamilyWeights    map[family.ID]float64 `json:"family_weights,omitempty"`
}

func NewEngineState() EngineState {
	pops := make(map[Regime]Population, len(Regimes()))
	for _, r := range Regimes() {
		pops[r] = Population{Regime: r}
	}
	return EngineState{Populations: pops}
}
