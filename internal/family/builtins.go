package family

import (
	"errors"
	"fmt"
	"math"

	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

const (
	AmplifiedHybrid ID = "amplified-hybrid"
	TailShielded    ID = "tail-shielded"
	PiecewiseBands  ID = "piecewise-bands"
	Bimodal         ID = "bimodal"
	AsymmetricDecay ID = "asymmetric-decay"
)

const BandCount = 5

var (
	ampAmplification = bound{1, 100}
	ampWidth         = bound{0.05, 0.6}
	ampCenter        = bound{-0.2, 0.2}

	tailCoreWidth = bound{0.1, 0.8}
	tailWeight    = bound{0, 0.5}
	tailSharpness = bound{1, 8}

	bandLevel = bound{0.05, 1}

	biSeparation = bound{0.1, 0.8}
	biWidth      = bound{0.05, 0.4}
	biSkew       = bound{-0.5, 0.5}

	decayPeak = bound{-0.5, 0.5}
	decayRate = bound{0.5, 12}
)

func builtins() []Family {
	return []Family{
		{
			ID:          AmplifiedHybrid,
			Description: "flat base with an amplified stable core around the reference price",
			Sample: func(src rng.Source) Params {
				return AmplifiedHybridParams{
					Amplification: ampAmplification.sample(src),
					Width:         ampWidth.sample(src),
					Center:        ampCenter.sample(src),
				}
			},
			Decode: decodeInto[AmplifiedHybridParams],
		},
		{
			ID:          TailShielded,
			Description: "plateau core with a liquidity cushion in the tails",
			Sample: func(src rng.Source) Params {
				return TailShieldedParams{
					CoreWidth:  tailCoreWidth.sample(src),
					TailWeight: tailWeight.sample(src),
					Sharpness:  tailSharpness.sample(src),
				}
			},
			Decode: decodeInto[TailShieldedParams],
		},
		{
			ID:          PiecewiseBands,
			Description: "equal-width price bands with independent liquidity levels",
			Sample: func(src rng.Source) Params {
				var p PiecewiseBandsParams
				for i := range p.Levels {
					p.Levels[i] = bandLevel.sample(src)
				}
				return p
			},
			Decode: decodeInto[PiecewiseBandsParams],
		},
		{
			ID:          Bimodal,
			Description: "two liquidity peaks placed either side of the reference price",
			Sample: func(src rng.Source) Params {
				return BimodalParams{
					Separation: biSeparation.sample(src),
					Width:      biWidth.sample(src),
					Skew:       biSkew.sample(src),
				}
			},
			Decode: decodeInto[BimodalParams],
		},
		{
			ID:          AsymmetricDecay,
			Description: "single peak with independent exponential decay on each side",
			Sample: func(src rng.Source) Params {
				return AsymmetricDecayParams{
					Peak:       decayPeak.sample(src),
					LeftDecay:  decayRate.sample(src),
					RightDecay: decayRate.sample(src),
				}
			},
			Decode: decodeInto[AsymmetricDecayParams],
		},
	}
}

type AmplifiedHybridParams struct {
	Amplification float64 `json:"amplification"`
	Width         float64 `json:"width"`
	Center        float64 `json:"center"`
}

func (AmplifiedHybridParams) Family() ID { return AmplifiedHybrid }

func (p AmplifiedHybridParams) Shape() []float64 {
	return shape(func(x float64) float64 {
		z := (x - p.Center) / p.Width
		return 1 + p.Amplification*math.Exp(-z*z/2)
	})
}

func (p AmplifiedHybridParams) Mutate(src rng.Source, strength float64) Params {
	return AmplifiedHybridParams{
		Amplification: ampAmplification.perturb(src, p.Amplification, strength),
		Width:         ampWidth.perturb(src, p.Width, strength),
		Center:        ampCenter.perturb(src, p.Center, strength),
	}
}

func (p AmplifiedHybridParams) Validate() error {
	return errors.Join(
		ampAmplification.check("amplification", p.Amplification),
		ampWidth.check("width", p.Width),
		ampCenter.check("center", p.Center),
	)
}

type TailShieldedParams struct {
	CoreWidth  float64 `json:"core_width"`
	TailWeight float64 `json:"tail_weight"`
	Sharpness  float64 `json:"sharpness"`
}

func (TailShieldedParams) Family() ID { return TailShielded }

func (p TailShieldedParams) Shape() []float64 {
	return shape(func(x float64) float64 {
		ax := math.Abs(x)
		core := 1 / (1 + math.Exp(10*p.Sharpness*(ax-p.CoreWidth)))
		tail := 0.0
		if ax > 0.75 {
			tail = p.TailWeight * (ax - 0.75) / 0.25
		}
		return core + tail
	})
}

func (p TailShieldedParams) Mutate(src rng.Source, strength float64) Params {
	return TailShieldedParams{
		CoreWidth:  tailCoreWidth.perturb(src, p.CoreWidth, strength),
		TailWeight: tailWeight.perturb(src, p.TailWeight, strength),
		Sharpness:  tailSharpness.perturb(src, p.Sharpness, strength),
	}
}

func (p TailShieldedParams) Validate() error {
	return errors.Join(
		tailCoreWidth.check("core_width", p.CoreWidth),
		tailWeight.check("tail_weight", p.TailWeight),
		tailSharpness.check("sharpness", p.Sharpness),
	)
}

type PiecewiseBandsParams struct {
	Levels [BandCount]float64 `json:"levels"`
}

func (PiecewiseBandsParams) Family() ID { return PiecewiseBands }

func (p PiecewiseBandsParams) Shape() []float64 {
	return shape(func(x float64) float64 {
		band := int((x + 1) / 2 * BandCount)
		if band >= BandCount {
			band = BandCount - 1
		}
		return p.Levels[band]
	})
}

func (p PiecewiseBandsParams) Mutate(src rng.Source, strength float64) Params {
	var out PiecewiseBandsParams
	for i, v := range p.Levels {
		out.Levels[i] = bandLevel.perturb(src, v, strength)
	}
	return out
}

func (p PiecewiseBandsParams) Validate() error {
	errs := make([]error, 0, BandCount)
	for i, v := range p.Levels {
		errs = append(errs, bandLevel.check(fmt.Sprintf("levels[%d]", i), v))
	}
	return errors.Join(errs...)
}

type BimodalParams struct {
	Separation float64 `json:"separation"`
	Width      float64 `json:"width"`
	Skew       float64 `json:"skew"`
}

func (BimodalParams) Family() ID { return Bimodal }

func (p BimodalParams) Shape() []float64 {
	return shape(func(x float64) float64 {
		left := (x + p.Separation) / p.Width
		right := (x - p.Separation) / p.Width
		return (1-p.Skew)*math.Exp(-left*left/2) + (1+p.Skew)*math.Exp(-right*right/2)
	})
}

func (p BimodalParams) Mutate(src rng.Source, strength float64) Params {
	return BimodalParams{
		Separation: biSeparation.perturb(src, p.Separation, strength),
		Width:      biWidth.perturb(src, p.Width, strength),
		Skew:       biSkew.perturb(src, p.Skew, strength),
	}
}

func (p BimodalParams) Validate() error {
	return errors.Join(
		biSeparation.check("separation", p.Separation),
		biWidth.check("width", p.Width),
		biSkew.check("skew", p.Skew),
	)
}

type AsymmetricDecayParams struct {
	Peak       float64 `json:"peak"`
	LeftDecay  float64 `json:"left_decay"`
	RightDecay float64 `json:"right_decay"`
}

func (AsymmetricDecayParams) Family() ID { return AsymmetricDecay }

func (p AsymmetricDecayParams) Shape() []float64 {
	return shape(func(x float64) float64 {
		if x < p.Peak {
			return math.Exp(-p.LeftDecay * (p.Peak - x))
		}
		return math.Exp(-p.RightDecay * (x - p.Peak))
	})
}

func (p AsymmetricDecayParams) Mutate(src rng.Source, strength float64) Params {
	return AsymmetricDecayParams{
		Peak:       decayPeak.perturb(src, p.Peak, strength),
		LeftDecay:  decayRate.perturb(src, p.LeftDecay, strength),
		RightDecay: decayRate.perturb(src, p.RightDecay, strength),
	}
}

func (p AsymmetricDecayParams) Validate() error {
	return errors.Join(
		decayPeak.check("peak", p.Peak),
		decayRate.check("left_decay", p.LeftDecay),
		decayRate.check("right_decay", p.RightDecay),
	)
}

func shape(fn func(x float64) float64) []float64 {
	out := make([]float64, liquidity.BinCount)
	for i := range out {
		out[i] = fn(liquidity.Coordinate(i))
	}
	return out
}
