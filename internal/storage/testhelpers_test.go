package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/model"
)

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func sampleState(t *testing.T) model.EngineState {
	t.Helper()
	params := family.BimodalParams{Separation: 0.3, Width: 0.1, Skew: -0.2}
	cand := model.Candidate{
		ID:         "c1",
		Bins:       liquidity.Normalize(params.Shape()),
		Family:     family.Bimodal,
		Params:     params,
		Regime:     model.RegimeShift,
		Generation: 2,
		Metrics:    model.Metrics{TotalFees: 0.5, MaxDrawdown: 0.1},
		Score:      1.25,
		Timestamp:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	state := model.NewEngineState()
	state.Populations[model.RegimeShift] = model.Population{
		Regime:     model.RegimeShift,
		Generation: 2,
		Candidates: []model.Candidate{cand},
	}
	state.Archive = []model.Candidate{cand}
	state.TotalGenerations = 3
	state.FamilyWeights = map[family.ID]float64{family.Bimodal: 0.6}
	return state
}

func assertStateRoundTrip(t *testing.T, want, got model.EngineState) {
	t.Helper()
	if got.TotalGenerations != want.TotalGenerations {
		t.Fatalf("total generations: got %d want %d", got.TotalGenerations, want.TotalGenerations)
	}
	if len(got.Archive) != len(want.Archive) {
		t.Fatalf("archive size: got %d want %d", len(got.Archive), len(want.Archive))
	}
	for i := range want.Archive {
		w, g := want.Archive[i], got.Archive[i]
		if g.ID != w.ID || g.Family != w.Family || g.Score != w.Score || g.Params != w.Params {
			t.Fatalf("archive[%d]: got %+v want %+v", i, g, w)
		}
		if len(g.Bins) != len(w.Bins) {
			t.Fatalf("archive[%d] bins: got %d want %d", i, len(g.Bins), len(w.Bins))
		}
	}
	for _, r := range model.Regimes() {
		if got.Populations[r].Generation != want.Populations[r].Generation {
			t.Fatalf("%s generation: got %d want %d", r, got.Populations[r].Generation, want.Populations[r].Generation)
		}
		if len(got.Populations[r].Candidates) != len(want.Populations[r].Candidates) {
			t.Fatalf("%s population size changed", r)
		}
	}
	if got.FamilyWeights[family.Bimodal] != want.FamilyWeights[family.Bimodal] {
		t.Fatalf("family weights: got %v want %v", got.FamilyWeights, want.FamilyWeights)
	}
}
