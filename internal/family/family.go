// Package family holds the parametric templates that turn a small parameter
// vector into a liquidity shape. Params values form a tagged union keyed by
// ID; each variant owns its shape function, mutation and validation.
package family

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/ManiFed/invariant-sub001/internal/rng"
)

type ID string

var ErrInvalidParams = errors.New("invalid family params")

// Params is one family's parameter record.
type Params interface {
	Family() ID
	// Shape returns liquidity.BinCount raw, unnormalised weights.
	Shape() []float64
	// Mutate returns a perturbed copy clipped to the family's valid ranges.
	Mutate(src rng.Source, strength float64) Params
	Validate() error
}

// Family describes a registered template.
type Family struct {
	ID          ID
	Description string
	Sample      func(src rng.Source) Params
	Decode      func(raw json.RawMessage) (Params, error)
}

type bound struct {
	lo, hi float64
}

func (b bound) sample(src rng.Source) float64 {
	return rng.Uniform(src, b.lo, b.hi)
}

func (b bound) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return b.lo
	}
	return math.Max(b.lo, math.Min(b.hi, v))
}

// perturb adds Gaussian noise scaled to the range width.
func (b bound) perturb(src rng.Source, v, strength float64) float64 {
	return b.clamp(v + src.NormFloat64()*(b.hi-b.lo)*strength)
}

func (b bound) check(name string, v float64) error {
	if math.IsNaN(v) || v < b.lo || v > b.hi {
		return fmt.Errorf("%w: %s=%v outside [%v, %v]", ErrInvalidParams, name, v, b.lo, b.hi)
	}
	return nil
}

func decodeInto[T Params](raw json.RawMessage) (Params, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
