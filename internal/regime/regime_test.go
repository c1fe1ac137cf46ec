package regime

import (
	"errors"
	"math"
	"testing"

	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

func TestDefaultCatalogCoversAllRegimes(t *testing.T) {
	c := DefaultCatalog()
	for _, r := range model.Regimes() {
		cfg, err := c.Lookup(r)
		if err != nil {
			t.Fatalf("lookup %s: %v", r, err)
		}
		if cfg.ID != r {
			t.Fatalf("config id mismatch: %s vs %s", cfg.ID, r)
		}
	}
	if _, err := c.Lookup("sideways"); !errors.Is(err, model.ErrUnknownRegime) {
		t.Fatalf("expected unknown regime error, got %v", err)
	}
}

func TestNewCatalogRejectsBadConfig(t *testing.T) {
	cfgs := Defaults()
	cfgs[0].Steps = 0
	if _, err := NewCatalog(cfgs); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
	if _, err := NewCatalog(Defaults()[:3]); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected missing regime error, got %v", err)
	}
	cfgs = Defaults()
	cfgs[1].ID = "sideways"
	if _, err := NewCatalog(cfgs); !errors.Is(err, model.ErrUnknownRegime) {
		t.Fatalf("expected unknown regime error, got %v", err)
	}
}

func TestSimulateShapeAndDeterminism(t *testing.T) {
	for _, cfg := range Defaults() {
		a := Simulate(rng.New(5), cfg)
		b := Simulate(rng.New(5), cfg)
		if len(a) != cfg.Paths {
			t.Fatalf("%s: %d paths", cfg.ID, len(a))
		}
		for i := range a {
			if len(a[i].LogPrices) != cfg.Steps+1 || len(a[i].Flow) != cfg.Steps || a[i].LogPrices[0] != 0 {
				t.Fatalf("%s: malformed path", cfg.ID)
			}
			for j := range a[i].LogPrices {
				if a[i].LogPrices[j] != b[i].LogPrices[j] {
					t.Fatalf("%s: path %d diverged at %d", cfg.ID, i, j)
				}
			}
		}
	}
}

func TestZeroVolatilityPathsAreDriftOnly(t *testing.T) {
	cfg := Config{ID: model.RegimeLowVolatility, Drift: 0.2, Steps: 10, Paths: 3}
	for _, p := range Simulate(rng.New(1), cfg) {
		if math.Abs(p.LogPrices[10]-0.2) > 1e-12 {
			t.Fatalf("expected pure drift, got %v", p.LogPrices[10])
		}
		for _, f := range p.Flow {
			if f != 0 {
				t.Fatalf("expected no noise flow, got %v", f)
			}
		}
	}
}

func TestShiftRegimeSwitchesInMiddleThird(t *testing.T) {
	cfg := DefaultCatalog()[model.RegimeShift]
	for _, p := range Simulate(rng.New(11), cfg) {
		if p.ShiftStep < cfg.Steps/3 || p.ShiftStep >= 2*cfg.Steps/3 {
			t.Fatalf("shift step %d outside middle third", p.ShiftStep)
		}
	}
	low := DefaultCatalog()[model.RegimeLowVolatility]
	if p := Simulate(rng.New(11), low)[0]; p.ShiftStep != -1 {
		t.Fatalf("non-shift regime reported shift at %d", p.ShiftStep)
	}
}
