package family

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

func TestBuiltinsRegistered(t *testing.T) {
	want := []ID{AmplifiedHybrid, AsymmetricDecay, Bimodal, PiecewiseBands, TailShielded}
	got := IDs()
	if len(got) != len(want) {
		t.Fatalf("unexpected ids: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("id %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestSampledParamsAreValidAndShapeNormalizes(t *testing.T) {
	src := rng.New(3)
	for _, id := range IDs() {
		f := MustLookup(id)
		for i := 0; i < 50; i++ {
			p := f.Sample(src)
			if p.Family() != id {
				t.Fatalf("sample of %s reports family %s", id, p.Family())
			}
			if err := p.Validate(); err != nil {
				t.Fatalf("%s sample invalid: %v", id, err)
			}
			raw := p.Shape()
			if len(raw) != liquidity.BinCount {
				t.Fatalf("%s shape has %d bins", id, len(raw))
			}
			bins := liquidity.Normalize(raw)
			if math.Abs(liquidity.Sum(bins)-liquidity.TotalLiquidity) > 1e-9 {
				t.Fatalf("%s bins not conserved", id)
			}
		}
	}
}

func TestMutateStaysInRange(t *testing.T) {
	src := rng.New(9)
	for _, id := range IDs() {
		p := MustLookup(id).Sample(src)
		for i := 0; i < 200; i++ {
			p = p.Mutate(src, 1.5)
			if err := p.Validate(); err != nil {
				t.Fatalf("%s mutation escaped range: %v", id, err)
			}
		}
	}
}

func TestExtremeBoundsShapeNormalizes(t *testing.T) {
	params := []Params{
		AmplifiedHybridParams{Amplification: ampAmplification.hi, Width: ampWidth.lo, Center: ampCenter.hi},
		TailShieldedParams{CoreWidth: tailCoreWidth.lo, TailWeight: tailWeight.lo, Sharpness: tailSharpness.hi},
		PiecewiseBandsParams{Levels: [BandCount]float64{bandLevel.lo, bandLevel.lo, bandLevel.lo, bandLevel.lo, bandLevel.lo}},
		BimodalParams{Separation: biSeparation.hi, Width: biWidth.lo, Skew: biSkew.lo},
		AsymmetricDecayParams{Peak: decayPeak.lo, LeftDecay: decayRate.hi, RightDecay: decayRate.hi},
	}
	for _, p := range params {
		if err := liquidity.Validate(liquidity.Normalize(p.Shape())); err != nil {
			t.Fatalf("%s: %v", p.Family(), err)
		}
	}
}

func TestDecodeRoundTripAndValidation(t *testing.T) {
	in := BimodalParams{Separation: 0.3, Width: 0.1, Skew: 0.2}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Decode(Bimodal, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}

	if _, err := Decode(Bimodal, []byte(`{"separation": 5, "width": 0.1, "skew": 0}`)); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected invalid params error, got %v", err)
	}
	if _, err := Decode("no-such-family", raw); !errors.Is(err, ErrUnknownFamily) {
		t.Fatalf("expected unknown family error, got %v", err)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := MustLookup(Bimodal)
	if err := Register(f); !errors.Is(err, ErrFamilyExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	custom := Family{ID: "test-flat", Sample: f.Sample, Decode: f.Decode}
	if err := Register(custom); err != nil {
		t.Fatalf("register custom: %v", err)
	}
	t.Cleanup(func() { unregisterForTests(custom.ID) })
	if _, err := Lookup(custom.ID); err != nil {
		t.Fatalf("lookup custom: %v", err)
	}
}
