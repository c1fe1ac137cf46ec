package evo

import (
	"context"
	"fmt"
	"math"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/regime"
)

const (
	DefaultPopulationSize = 12
	DefaultEliteCount     = 4
	DefaultMutationRatio  = 0.75
)

type LoopConfig struct {
	PopulationSize int
	EliteCount     int
	// MutationRatio is the share of each new generation bred from elites;
	// the remainder are fresh random injections.
	MutationRatio float64
	Selector      Selector
	FamilyWeights map[family.ID]float64
}

func (c LoopConfig) withDefaults() (LoopConfig, error) {
	if c.PopulationSize == 0 {
		c.PopulationSize = DefaultPopulationSize
	}
	if c.EliteCount == 0 {
		c.EliteCount = DefaultEliteCount
	}
	if c.MutationRatio == 0 {
		c.MutationRatio = DefaultMutationRatio
	}
	if c.Selector == nil {
		c.Selector = EliteSelector{}
	}
	if c.PopulationSize < 0 {
		return LoopConfig{}, fmt.Errorf("population size must be > 0, got %d", c.PopulationSize)
	}
	if c.EliteCount < 0 || c.EliteCount > c.PopulationSize {
		return LoopConfig{}, fmt.Errorf("elite count must be in [1, %d], got %d", c.PopulationSize, c.EliteCount)
	}
	if c.MutationRatio < 0 || c.MutationRatio > 1 {
		return LoopConfig{}, fmt.Errorf("mutation ratio must be in [0, 1], got %v", c.MutationRatio)
	}
	return c, nil
}

type GenerationSummary struct {
	Regime       model.Regime      `json:"regime"`
	Generation   int               `json:"generation"`
	BestScore    float64           `json:"best_score"`
	MeanScore    float64           `json:"mean_score"`
	MinScore     float64           `json:"min_score"`
	BestID       string            `json:"best_id"`
	Mutated      int               `json:"mutated"`
	Injected     int               `json:"injected"`
	FamilyCounts map[family.ID]int `json:"family_counts"`
	FamilyCount  int               `json:"family_count"`
}

type GenerationResult struct {
	NewPopulation model.Population
	NewCandidates []model.Candidate
	Summary       GenerationSummary
}

// RunGeneration advances population by one generation under cfg. An empty
// population is seeded at its current generation. The input is never
// modified and a cancelled context yields no partial result.
func (g *Generator) RunGeneration(ctx context.Context, population model.Population, cfg regime.Config, loop LoopConfig) (GenerationResult, error) {
	if err := cfg.Validate(); err != nil {
		return GenerationResult{}, err
	}
	if population.Regime != "" && population.Regime != cfg.ID {
		return GenerationResult{}, fmt.Errorf("population regime %q does not match config regime %q", population.Regime, cfg.ID)
	}
	loop, err := loop.withDefaults()
	if err != nil {
		return GenerationResult{}, err
	}

	var next []model.Candidate
	var mutated int
	nextGen := population.Generation
	if len(population.Candidates) == 0 {
		next, err = g.seed(ctx, cfg, loop, nextGen)
	} else {
		nextGen++
		next, mutated, err = g.breed(ctx, cfg, loop, population.Candidates, nextGen)
	}
	if err != nil {
		return GenerationResult{}, err
	}

	summary := summarizeGeneration(Rank(next), cfg.ID, nextGen)
	summary.Mutated = mutated
	summary.Injected = len(next) - mutated
	return GenerationResult{
		NewPopulation: model.Population{
			Regime:     cfg.ID,
			Generation: nextGen,
			Candidates: next,
		},
		NewCandidates: append([]model.Candidate(nil), next...),
		Summary:       summary,
	}, nil
}

func (g *Generator) seed(ctx context.Context, cfg regime.Config, loop LoopConfig, generation int) ([]model.Candidate, error) {
	next := make([]model.Candidate, 0, loop.PopulationSize)
	for len(next) < loop.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next = append(next, g.create(cfg, generation, nil, loop.FamilyWeights))
	}
	return next, nil
}

func (g *Generator) breed(ctx context.Context, cfg regime.Config, loop LoopConfig, current []model.Candidate, generation int) ([]model.Candidate, int, error) {
	ranked := Rank(current)
	eliteCount := loop.EliteCount
	if eliteCount > len(ranked) {
		eliteCount = len(ranked)
	}
	mutants := int(math.Round(loop.MutationRatio * float64(loop.PopulationSize)))

	next := make([]model.Candidate, 0, loop.PopulationSize)
	for len(next) < mutants {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		parent, err := loop.Selector.PickParent(g.cfg.Source, ranked, eliteCount)
		if err != nil {
			return nil, 0, err
		}
		next = append(next, g.create(cfg, generation, &parent, loop.FamilyWeights))
	}
	for len(next) < loop.PopulationSize {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		next = append(next, g.create(cfg, generation, nil, loop.FamilyWeights))
	}
	return next, mutants, nil
}

func summarizeGeneration(ranked []model.Candidate, r model.Regime, generation int) GenerationSummary {
	summary := GenerationSummary{
		Regime:       r,
		Generation:   generation,
		FamilyCounts: map[family.ID]int{},
	}
	if len(ranked) == 0 {
		return summary
	}

	total := 0.0
	minScore := ranked[0].Score
	for _, c := range ranked {
		total += c.Score
		if c.Score < minScore {
			minScore = c.Score
		}
		summary.FamilyCounts[c.Family]++
	}
	summary.BestScore = ranked[0].Score
	summary.BestID = ranked[0].ID
	summary.MeanScore = total / float64(len(ranked))
	summary.MinScore = minScore
	summary.FamilyCount = len(summary.FamilyCounts)
	return summary
}
