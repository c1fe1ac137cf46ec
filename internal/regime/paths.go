package regime

import (
	"math"

	"github.com/ManiFed/invariant-sub001/internal/rng"
)

// Path is one simulated market: LogPrices has Steps+1 entries starting at 0,
// Flow has Steps signed order sizes (fraction of initial LP value).
type Path struct {
	LogPrices []float64
	Flow      []float64
	ShiftStep int
}

// Simulate draws cfg.Paths independent paths from src.
func Simulate(src rng.Source, cfg Config) []Path {
	paths := make([]Path, cfg.Paths)
	for i := range paths {
		paths[i] = simulatePath(src, cfg)
	}
	return paths
}

func simulatePath(src rng.Source, cfg Config) Path {
	dt := 1 / float64(cfg.Steps)
	sqrtDt := math.Sqrt(dt)

	shiftStep := -1
	if cfg.HasShift() {
		third := cfg.Steps / 3
		shiftStep = third
		if third > 0 {
			shiftStep += src.Intn(third)
		}
	}

	drift, vol, jumps := cfg.Drift, cfg.Volatility, cfg.JumpIntensity
	logs := make([]float64, cfg.Steps+1)
	flow := make([]float64, cfg.Steps)
	for t := 0; t < cfg.Steps; t++ {
		if t == shiftStep {
			drift = cfg.ShiftDrift
			vol = cfg.Volatility * cfg.ShiftVolMultiplier
			jumps = cfg.JumpIntensity * cfg.ShiftJumpMultiplier
		}
		step := (drift-vol*vol/2)*dt + vol*sqrtDt*src.NormFloat64()
		if rng.Bernoulli(src, jumps*dt) {
			step += cfg.JumpMean + cfg.JumpStd*src.NormFloat64()
		}
		logs[t+1] = logs[t] + step

		size := cfg.NoiseFlow * math.Abs(src.NormFloat64())
		if src.Float64() < 0.5 {
			size = -size
		}
		flow[t] = size
	}
	return Path{LogPrices: logs, Flow: flow, ShiftStep: shiftStep}
}
