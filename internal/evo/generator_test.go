package evo

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// zeroSource always returns the lowest value of every draw.
type zeroSource struct{}

func (zeroSource) Float64() float64     { return 0 }
func (zeroSource) NormFloat64() float64 { return 0 }
func (zeroSource) Intn(int) int         { return 0 }

func newTestGenerator(t *testing.T, src rng.Source) *Generator {
	t.Helper()
	g, err := NewGenerator(GeneratorConfig{
		Source: src,
		Clock:  func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestNewGeneratorRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  GeneratorConfig
	}{
		{name: "nil source", cfg: GeneratorConfig{}},
		{name: "bias above one", cfg: GeneratorConfig{Source: zeroSource{}, ParentFamilyBias: 1.5}},
		{name: "negative strength", cfg: GeneratorConfig{Source: zeroSource{}, MutationStrength: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGenerator(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCreateRandomCandidateIsComplete(t *testing.T) {
	g := newTestGenerator(t, rng.New(3))
	for _, r := range model.Regimes() {
		c, err := g.CreateRandomCandidate(r, 2, nil, nil)
		if err != nil {
			t.Fatalf("create %s: %v", r, err)
		}
		if c.ID == "" {
			t.Fatal("expected candidate id")
		}
		if c.Regime != r || c.Generation != 2 {
			t.Fatalf("unexpected regime/generation: %s/%d", c.Regime, c.Generation)
		}
		if len(c.Bins) != liquidity.BinCount {
			t.Fatalf("expected %d bins, got %d", liquidity.BinCount, len(c.Bins))
		}
		if err := liquidity.Validate(c.Bins); err != nil {
			t.Fatalf("bins violate liquidity invariant: %v", err)
		}
		if c.Params == nil || c.Params.Family() != c.Family {
			t.Fatalf("params do not match family %s", c.Family)
		}
		if c.ParentID != "" {
			t.Fatalf("fresh candidate should have no parent, got %q", c.ParentID)
		}
		if !c.Timestamp.Equal(fixedNow) {
			t.Fatalf("expected injected clock, got %v", c.Timestamp)
		}
	}
}

func TestCreateRandomCandidateDeterministic(t *testing.T) {
	a := newTestGenerator(t, rng.New(99))
	b := newTestGenerator(t, rng.New(99))
	for i := 0; i < 5; i++ {
		ca, err := a.CreateRandomCandidate(model.RegimeJumpDiffusion, 0, nil, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		cb, err := b.CreateRandomCandidate(model.RegimeJumpDiffusion, 0, nil, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if !reflect.DeepEqual(ca, cb) {
			t.Fatalf("same seed diverged at %d:\n%+v\n%+v", i, ca, cb)
		}
	}
}

func TestCreateRandomCandidateUnknownRegime(t *testing.T) {
	g := newTestGenerator(t, rng.New(1))
	_, err := g.CreateRandomCandidate(model.Regime("sideways"), 0, nil, nil)
	if !errors.Is(err, model.ErrUnknownRegime) {
		t.Fatalf("expected ErrUnknownRegime, got %v", err)
	}
}

func TestCreateRandomCandidatePicksTopWeightedFamily(t *testing.T) {
	g := newTestGenerator(t, zeroSource{})
	weights := map[family.ID]float64{
		family.AmplifiedHybrid: 0.1,
		family.TailShielded:    0.1,
		family.PiecewiseBands:  0.1,
		family.Bimodal:         0.6,
		family.AsymmetricDecay: 0.1,
	}
	c, err := g.CreateRandomCandidate(model.RegimeLowVolatility, 0, nil, weights)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Family != family.Bimodal {
		t.Fatalf("expected %s, got %s", family.Bimodal, c.Family)
	}
}

func TestCreateRandomCandidateMutatesParentFamily(t *testing.T) {
	g := newTestGenerator(t, zeroSource{})
	parent, err := g.CreateRandomCandidate(model.RegimeHighVolatility, 0, nil, map[family.ID]float64{family.TailShielded: 1})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	parent.ID = "parent-1"

	child, err := g.CreateRandomCandidate(model.RegimeHighVolatility, 1, &parent, nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if child.Family != family.TailShielded {
		t.Fatalf("expected parent family, got %s", child.Family)
	}
	if child.ParentID != parent.ID {
		t.Fatalf("expected parent id %q, got %q", parent.ID, child.ParentID)
	}
	if err := child.Params.Validate(); err != nil {
		t.Fatalf("mutated params out of bounds: %v", err)
	}
}

func TestPickFamilyUniformWithoutWeights(t *testing.T) {
	src := rng.New(5)
	seen := map[family.ID]int{}
	for i := 0; i < 500; i++ {
		seen[pickFamily(src, nil)]++
	}
	if len(seen) != len(family.IDs()) {
		t.Fatalf("expected every family drawn, got %v", seen)
	}
}

func TestPickFamilyIgnoresNonPositiveWeights(t *testing.T) {
	src := rng.New(5)
	weights := map[family.ID]float64{family.PiecewiseBands: 1, family.Bimodal: 0, family.AmplifiedHybrid: -2}
	for i := 0; i < 100; i++ {
		if got := pickFamily(src, weights); got != family.PiecewiseBands {
			t.Fatalf("expected only %s, got %s", family.PiecewiseBands, got)
		}
	}
}
