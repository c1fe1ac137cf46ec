package evo

import (
	"testing"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

func rankedFixture() []model.Candidate {
	return Rank([]model.Candidate{
		{ID: "a0", Family: family.Bimodal, Score: 0.99},
		{ID: "a1", Family: family.Bimodal, Score: 0.98},
		{ID: "a2", Family: family.Bimodal, Score: 0.97},
		{ID: "b0", Family: family.TailShielded, Score: 0.60},
		{ID: "b1", Family: family.TailShielded, Score: 0.59},
		{ID: "b2", Family: family.TailShielded, Score: 0.58},
	})
}

func TestRankOrdersByScoreThenID(t *testing.T) {
	in := []model.Candidate{{ID: "b", Score: 1}, {ID: "c", Score: 2}, {ID: "a", Score: 1}}
	got := Rank(in)
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("rank[%d]=%s want %s", i, got[i].ID, id)
		}
	}
	if in[0].ID != "b" {
		t.Fatal("rank modified its input")
	}
}

func TestEliteSelectorPicksFromElites(t *testing.T) {
	ranked := rankedFixture()
	src := rng.New(1)
	for i := 0; i < 50; i++ {
		parent, err := EliteSelector{}.PickParent(src, ranked, 2)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.ID != "a0" && parent.ID != "a1" {
			t.Fatalf("non-elite parent %s", parent.ID)
		}
	}
}

func TestSelectorsRejectInvalidEliteCount(t *testing.T) {
	ranked := rankedFixture()
	selectors := []Selector{EliteSelector{}, TournamentSelector{}, FamilyTournamentSelector{}}
	for _, s := range selectors {
		if _, err := s.PickParent(rng.New(1), ranked, 0); err == nil {
			t.Fatalf("%s: expected error for zero elites", s.Name())
		}
		if _, err := s.PickParent(rng.New(1), ranked, len(ranked)+1); err == nil {
			t.Fatalf("%s: expected error for too many elites", s.Name())
		}
		if _, err := s.PickParent(nil, ranked, 1); err == nil {
			t.Fatalf("%s: expected error for nil source", s.Name())
		}
	}
}

func TestTournamentSelectorStaysInPool(t *testing.T) {
	ranked := rankedFixture()
	selector := TournamentSelector{PoolSize: 3, TournamentSize: 2}
	src := rng.New(7)
	for i := 0; i < 50; i++ {
		parent, err := selector.PickParent(src, ranked, 1)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		if parent.Family != family.Bimodal {
			t.Fatalf("parent %s outside tournament pool", parent.ID)
		}
	}
}

func TestFamilyTournamentSelectorProducesMultiFamilyParents(t *testing.T) {
	ranked := rankedFixture()
	selector := FamilyTournamentSelector{PoolSize: len(ranked), TournamentSize: 2}
	src := rng.New(42)
	seen := map[family.ID]struct{}{}
	for i := 0; i < 40; i++ {
		parent, err := selector.PickParent(src, ranked, 1)
		if err != nil {
			t.Fatalf("pick parent: %v", err)
		}
		seen[parent.Family] = struct{}{}
	}
	if len(seen) < 2 {
		t.Fatalf("expected at least 2 families in selected parents, got %d", len(seen))
	}
}

func TestSelectorByName(t *testing.T) {
	for _, name := range []string{"", "elite", "tournament", "family_tournament"} {
		if _, err := SelectorByName(name); err != nil {
			t.Fatalf("%q: %v", name, err)
		}
	}
	if _, err := SelectorByName("roulette"); err == nil {
		t.Fatal("expected unsupported selector error")
	}
}
