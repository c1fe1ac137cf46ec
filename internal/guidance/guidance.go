// Package guidance turns archived outcomes into family sampling weights.
package guidance

import (
	"math"
	"sort"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/model"
)

const (
	DefaultMinSamples  = 5
	DefaultFloorWeight = 0.05
)

type Options struct {
	// MinSamples is the number of archived candidates a family needs before
	// its mean score is trusted.
	MinSamples  int
	FloorWeight float64
	// Families is the known family set; empty means every registered family.
	Families []family.ID
}

func (o Options) withDefaults() Options {
	if o.MinSamples <= 0 {
		o.MinSamples = DefaultMinSamples
	}
	if o.FloorWeight <= 0 {
		o.FloorWeight = DefaultFloorWeight
	}
	if len(o.Families) == 0 {
		o.Families = family.IDs()
	}
	return o
}

type FamilyStats struct {
	Family    family.ID `json:"family"`
	Count     int       `json:"count"`
	MeanScore float64   `json:"mean_score"`
	BestScore float64   `json:"best_score"`
	BestID    string    `json:"best_id"`
}

type Recommendation struct {
	PrioritizedFamilies []family.ID           `json:"prioritized_families"`
	FamilyWeights       map[family.ID]float64 `json:"family_weights"`
	Stats               []FamilyStats         `json:"stats"`
}

// Learn ranks families by mean score and converts the ranking into weights
// that sum to one. Every known family keeps at least the floor weight. It
// reports false when no family has enough samples.
func Learn(candidates []model.Candidate, opts Options) (Recommendation, bool) {
	opts = opts.withDefaults()

	known := make(map[family.ID]struct{}, len(opts.Families))
	for _, id := range opts.Families {
		known[id] = struct{}{}
	}

	byFamily := map[family.ID]*FamilyStats{}
	totals := map[family.ID]float64{}
	for _, c := range candidates {
		if _, ok := known[c.Family]; !ok {
			continue
		}
		s, ok := byFamily[c.Family]
		if !ok {
			s = &FamilyStats{Family: c.Family, BestScore: c.Score, BestID: c.ID}
			byFamily[c.Family] = s
		}
		s.Count++
		totals[c.Family] += c.Score
		if c.Score > s.BestScore {
			s.BestScore = c.Score
			s.BestID = c.ID
		}
	}

	stats := make([]FamilyStats, 0, len(byFamily))
	for id, s := range byFamily {
		s.MeanScore = totals[id] / float64(s.Count)
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].MeanScore == stats[j].MeanScore {
			return stats[i].Family < stats[j].Family
		}
		return stats[i].MeanScore > stats[j].MeanScore
	})

	var ranked []family.ID
	for _, s := range stats {
		if s.Count >= opts.MinSamples {
			ranked = append(ranked, s.Family)
		}
	}
	if len(ranked) == 0 {
		return Recommendation{}, false
	}

	return Recommendation{
		PrioritizedFamilies: ranked,
		FamilyWeights:       weights(ranked, opts.Families, opts.FloorWeight),
		Stats:               stats,
	}, true
}

// weights gives each known family the floor and splits the remaining mass
// over ranked families linearly by rank: the top of n gets n shares, the last
// one share. The floor shrinks so that at most half the mass is reserved,
// however many families are registered.
func weights(ranked, families []family.ID, floor float64) map[family.ID]float64 {
	out := make(map[family.ID]float64, len(families))
	if len(families) == 0 {
		return out
	}
	floor = math.Min(floor, 0.5/float64(len(families)))
	for _, id := range families {
		out[id] = floor
	}
	remaining := 1 - floor*float64(len(families))

	n := len(ranked)
	shares := float64(n*(n+1)) / 2
	for rank, id := range ranked {
		out[id] += remaining * float64(n-rank) / shares
	}
	return out
}
