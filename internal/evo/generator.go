package evo

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/features"
	"github.com/ManiFed/invariant-sub001/internal/fitness"
	"github.com/ManiFed/invariant-sub001/internal/liquidity"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/regime"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

const (
	DefaultParentFamilyBias = 0.7
	DefaultMutationStrength = 0.15
)

type GeneratorConfig struct {
	Source    rng.Source
	Clock     func() time.Time
	Catalog   regime.Catalog
	Evaluator fitness.Evaluator
	// ParentFamilyBias is the probability a child keeps its parent's family.
	ParentFamilyBias float64
	MutationStrength float64
}

// Generator produces fully evaluated candidates from one random stream. It is
// not safe for concurrent use.
type Generator struct {
	cfg GeneratorConfig
}

func NewGenerator(cfg GeneratorConfig) (*Generator, error) {
	if cfg.Source == nil {
		return nil, errors.New("random source is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Catalog == nil {
		cfg.Catalog = regime.DefaultCatalog()
	}
	if cfg.Evaluator == (fitness.Evaluator{}) {
		cfg.Evaluator = fitness.DefaultEvaluator()
	}
	if cfg.ParentFamilyBias < 0 || cfg.ParentFamilyBias > 1 {
		return nil, fmt.Errorf("parent family bias must be in [0, 1], got %v", cfg.ParentFamilyBias)
	}
	if cfg.ParentFamilyBias == 0 {
		cfg.ParentFamilyBias = DefaultParentFamilyBias
	}
	if cfg.MutationStrength < 0 {
		return nil, fmt.Errorf("mutation strength must be >= 0, got %v", cfg.MutationStrength)
	}
	if cfg.MutationStrength == 0 {
		cfg.MutationStrength = DefaultMutationStrength
	}
	return &Generator{cfg: cfg}, nil
}

// CreateRandomCandidate builds and evaluates one candidate for regime r. A
// parent biases the family towards its own and its params seed the mutation;
// weights bias the family draw. An unknown regime is a configuration error.
func (g *Generator) CreateRandomCandidate(r model.Regime, generation int, parent *model.Candidate, weights map[family.ID]float64) (model.Candidate, error) {
	cfg, err := g.cfg.Catalog.Lookup(r)
	if err != nil {
		return model.Candidate{}, err
	}
	if generation < 0 {
		return model.Candidate{}, fmt.Errorf("generation must be >= 0, got %d", generation)
	}
	return g.create(cfg, generation, parent, weights), nil
}

func (g *Generator) create(cfg regime.Config, generation int, parent *model.Candidate, weights map[family.ID]float64) model.Candidate {
	src := g.cfg.Source

	id := g.chooseFamily(parent, weights)
	var params family.Params
	parentID := ""
	if parent != nil && parent.Family == id && parent.Params != nil {
		params = parent.Params.Mutate(src, g.cfg.MutationStrength)
		parentID = parent.ID
	} else {
		params = family.MustLookup(id).Sample(src)
	}

	bins := liquidity.Normalize(params.Shape())
	result := g.cfg.Evaluator.Evaluate(bins, regime.Simulate(src, cfg))

	return model.Candidate{
		ID:         uuid.Must(uuid.NewRandomFromReader(rng.Reader(src))).String(),
		Bins:       bins,
		Family:     id,
		Params:     params,
		Regime:     cfg.ID,
		Generation: generation,
		ParentID:   parentID,
		Metrics:    result.Metrics,
		Features:   features.Extract(bins),
		Stability:  result.Stability,
		Score:      result.Score,
		Timestamp:  g.cfg.Clock(),
	}
}

func (g *Generator) chooseFamily(parent *model.Candidate, weights map[family.ID]float64) family.ID {
	src := g.cfg.Source
	if parent != nil && rng.Bernoulli(src, g.cfg.ParentFamilyBias) {
		if _, err := family.Lookup(parent.Family); err == nil {
			return parent.Family
		}
	}
	return pickFamily(src, weights)
}

// pickFamily draws a registered family. Weighted draws walk families in
// descending weight order so a source returning 0 lands on the heaviest one.
func pickFamily(src rng.Source, weights map[family.ID]float64) family.ID {
	ids := family.IDs()
	type entry struct {
		id     family.ID
		weight float64
	}
	entries := make([]entry, 0, len(ids))
	total := 0.0
	for _, id := range ids {
		if w := weights[id]; w > 0 {
			entries = append(entries, entry{id: id, weight: w})
			total += w
		}
	}
	if total <= 0 {
		return ids[src.Intn(len(ids))]
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].weight > entries[j].weight
	})
	pick := src.Float64() * total
	acc := 0.0
	for _, e := range entries {
		acc += e.weight
		if pick <= acc {
			return e.id
		}
	}
	return entries[len(entries)-1].id
}
