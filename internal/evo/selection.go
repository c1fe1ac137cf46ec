package evo

import (
	"fmt"
	"sort"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/rng"
)

// Selector chooses parents from ranked candidates for mutation.
type Selector interface {
	Name() string
	PickParent(src rng.Source, ranked []model.Candidate, eliteCount int) (model.Candidate, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(src rng.Source, ranked []model.Candidate, eliteCount int) (model.Candidate, error) {
	if src == nil {
		return model.Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return model.Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return ranked[src.Intn(eliteCount)], nil
}

// TournamentSelector samples candidates and picks the best score among them.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(src rng.Source, ranked []model.Candidate, eliteCount int) (model.Candidate, error) {
	if src == nil {
		return model.Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return model.Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	pool := ranked[:s.poolSize(eliteCount, len(ranked))]
	return tournament(src, pool, s.TournamentSize), nil
}

func (s TournamentSelector) poolSize(eliteCount, available int) int {
	poolSize := s.PoolSize
	if poolSize <= 0 {
		poolSize = eliteCount * 2
	}
	if poolSize < eliteCount {
		poolSize = eliteCount
	}
	if poolSize > available {
		poolSize = available
	}
	return poolSize
}

// FamilyTournamentSelector first samples a family uniformly from the pool and
// then runs a tournament inside it, so strong minority families keep
// producing offspring.
type FamilyTournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (FamilyTournamentSelector) Name() string {
	return "family_tournament"
}

func (s FamilyTournamentSelector) PickParent(src rng.Source, ranked []model.Candidate, eliteCount int) (model.Candidate, error) {
	if src == nil {
		return model.Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return model.Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	pool := ranked[:TournamentSelector{PoolSize: s.PoolSize}.poolSize(eliteCount, len(ranked))]
	byFamily := make(map[family.ID][]model.Candidate, len(pool))
	for _, c := range pool {
		byFamily[c.Family] = append(byFamily[c.Family], c)
	}
	keys := make([]family.ID, 0, len(byFamily))
	for key := range byFamily {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	chosen := byFamily[keys[src.Intn(len(keys))]]
	return tournament(src, chosen, s.TournamentSize), nil
}

func tournament(src rng.Source, pool []model.Candidate, size int) model.Candidate {
	if size <= 0 {
		size = 3
	}
	if size > len(pool) {
		size = len(pool)
	}
	best := pool[src.Intn(len(pool))]
	for i := 1; i < size; i++ {
		c := pool[src.Intn(len(pool))]
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

// SelectorByName resolves the configured parent selection policy.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{}, nil
	case "family_tournament":
		return FamilyTournamentSelector{}, nil
	default:
		return nil, fmt.Errorf("unsupported selector: %s", name)
	}
}

// Rank orders candidates by score descending, breaking ties by id. The input
// slice is not modified.
func Rank(candidates []model.Candidate) []model.Candidate {
	out := append([]model.Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out
}
