package evo

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/regime"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

func lowVolConfig(t *testing.T) regime.Config {
	t.Helper()
	cfg, err := regime.DefaultCatalog().Lookup(model.RegimeLowVolatility)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	return cfg
}

func TestRunGenerationSeedsEmptyPopulation(t *testing.T) {
	g := newTestGenerator(t, rng.New(11))
	cfg := lowVolConfig(t)

	res, err := g.RunGeneration(context.Background(), model.Population{Regime: cfg.ID}, cfg, LoopConfig{})
	if err != nil {
		t.Fatalf("run generation: %v", err)
	}
	if got := len(res.NewPopulation.Candidates); got != DefaultPopulationSize {
		t.Fatalf("expected %d candidates, got %d", DefaultPopulationSize, got)
	}
	if res.NewPopulation.Generation != 0 {
		t.Fatalf("seeded population should stay at generation 0, got %d", res.NewPopulation.Generation)
	}
	if len(res.NewCandidates) != len(res.NewPopulation.Candidates) {
		t.Fatalf("expected every member reported as new")
	}
	for _, c := range res.NewPopulation.Candidates {
		if c.Regime != cfg.ID || c.Generation != 0 {
			t.Fatalf("unexpected candidate regime/generation %s/%d", c.Regime, c.Generation)
		}
		if err := liquidity.Validate(c.Bins); err != nil {
			t.Fatalf("candidate %s: %v", c.ID, err)
		}
	}
	if res.Summary.Injected != DefaultPopulationSize || res.Summary.Mutated != 0 {
		t.Fatalf("unexpected summary counts %+v", res.Summary)
	}
}

func TestRunGenerationBreedsFromElites(t *testing.T) {
	g := newTestGenerator(t, rng.New(12))
	cfg := lowVolConfig(t)
	ctx := context.Background()

	seeded, err := g.RunGeneration(ctx, model.Population{}, cfg, LoopConfig{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := seeded.NewPopulation.Clone()

	res, err := g.RunGeneration(ctx, seeded.NewPopulation, cfg, LoopConfig{})
	if err != nil {
		t.Fatalf("breed: %v", err)
	}
	if !reflect.DeepEqual(before, seeded.NewPopulation) {
		t.Fatal("input population was modified")
	}
	if res.NewPopulation.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", res.NewPopulation.Generation)
	}
	if res.Summary.Mutated != 9 || res.Summary.Injected != 3 {
		t.Fatalf("expected 9 mutated and 3 injected, got %+v", res.Summary)
	}

	elites := map[string]struct{}{}
	for _, c := range Rank(before.Candidates)[:DefaultEliteCount] {
		elites[c.ID] = struct{}{}
	}
	withParent := 0
	for _, c := range res.NewPopulation.Candidates {
		if c.Generation != 1 {
			t.Fatalf("expected generation 1 candidate, got %d", c.Generation)
		}
		if c.ParentID == "" {
			continue
		}
		withParent++
		if _, ok := elites[c.ParentID]; !ok {
			t.Fatalf("parent %s is not an elite", c.ParentID)
		}
	}
	if withParent == 0 {
		t.Fatal("expected at least one child of an elite")
	}
}

func TestRunGenerationDeterministic(t *testing.T) {
	cfg := lowVolConfig(t)
	run := func() model.Population {
		g := newTestGenerator(t, rng.New(21))
		pop := model.Population{Regime: cfg.ID}
		for i := 0; i < 3; i++ {
			res, err := g.RunGeneration(context.Background(), pop, cfg, LoopConfig{PopulationSize: 6, EliteCount: 2})
			if err != nil {
				t.Fatalf("run generation: %v", err)
			}
			pop = res.NewPopulation
		}
		return pop
	}
	if a, b := run(), run(); !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different populations")
	}
}

func TestRunGenerationCancelled(t *testing.T) {
	g := newTestGenerator(t, rng.New(1))
	cfg := lowVolConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := g.RunGeneration(ctx, model.Population{}, cfg, LoopConfig{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.NewCandidates) != 0 || len(res.NewPopulation.Candidates) != 0 {
		t.Fatal("expected no partial result")
	}
}

func TestRunGenerationRejectsBadInput(t *testing.T) {
	g := newTestGenerator(t, rng.New(1))
	cfg := lowVolConfig(t)
	ctx := context.Background()

	if _, err := g.RunGeneration(ctx, model.Population{Regime: model.RegimeShift}, cfg, LoopConfig{}); err == nil {
		t.Fatal("expected regime mismatch error")
	}
	if _, err := g.RunGeneration(ctx, model.Population{}, cfg, LoopConfig{PopulationSize: 3, EliteCount: 5}); err == nil {
		t.Fatal("expected elite count error")
	}
	if _, err := g.RunGeneration(ctx, model.Population{}, cfg, LoopConfig{MutationRatio: 1.2}); err == nil {
		t.Fatal("expected mutation ratio error")
	}
	bad := cfg
	bad.Steps = 0
	if _, err := g.RunGeneration(ctx, model.Population{}, bad, LoopConfig{}); err == nil {
		t.Fatal("expected regime config error")
	}
}

func TestSummarizeGeneration(t *testing.T) {
	ranked := Rank([]model.Candidate{
		{ID: "a", Family: "x", Score: 1},
		{ID: "b", Family: "y", Score: 3},
		{ID: "c", Family: "x", Score: 2},
	})
	s := summarizeGeneration(ranked, model.RegimeShift, 4)
	if s.BestID != "b" || s.BestScore != 3 || s.MinScore != 1 || s.MeanScore != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.FamilyCount != 2 || s.FamilyCounts["x"] != 2 {
		t.Fatalf("unexpected family counts %+v", s.FamilyCounts)
	}
}
