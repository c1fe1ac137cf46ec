// Package pareto implements multi-objective dominance over candidate metrics.
package pareto

import (
	"math"
	"sort"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

type Direction int

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultDirection is the system-wide direction for a metric.
func DefaultDirection(m model.MetricName) Direction {
	switch m {
	case model.MetricTotalFees, model.MetricLiquidityUtilization, model.MetricLPValueVsHodl:
		return Maximize
	default:
		return Minimize
	}
}

type Objective struct {
	Metric    model.MetricName `json:"metric"`
	Direction Direction        `json:"direction"`
}

// Objectives builds objectives with default directions. No metrics means all
// of them.
func Objectives(metrics ...model.MetricName) []Objective {
	if len(metrics) == 0 {
		metrics = model.AllMetrics()
	}
	out := make([]Objective, 0, len(metrics))
	for _, m := range metrics {
		out = append(out, Objective{Metric: m, Direction: DefaultDirection(m)})
	}
	return out
}

// better reports how a compares to b on one objective: 1 better, -1 worse.
func (o Objective) better(a, b model.Metrics) int {
	av, bv := a.Value(o.Metric), b.Value(o.Metric)
	if o.Direction == Minimize {
		av, bv = -av, -bv
	}
	switch {
	case av > bv:
		return 1
	case av < bv:
		return -1
	default:
		return 0
	}
}

// Dominates reports whether a is at least as good as b on every objective and
// strictly better on at least one.
func Dominates(a, b model.Metrics, objectives []Objective) bool {
	strictly := false
	for _, o := range objectives {
		switch o.better(a, b) {
		case -1:
			return false
		case 1:
			strictly = true
		}
	}
	return strictly
}

// Front returns the candidates not dominated by any other in the set, sorted
// by id so the result does not depend on input order.
func Front(candidates []model.Candidate, objectives []Objective) []model.Candidate {
	var front []model.Candidate
	for i, c := range candidates {
		dominated := false
		for j, other := range candidates {
			if i != j && Dominates(other.Metrics, c.Metrics, objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, c)
		}
	}
	sort.SliceStable(front, func(i, j int) bool {
		if front[i].ID == front[j].ID {
			return front[i].Score > front[j].Score
		}
		return front[i].ID < front[j].ID
	})
	return front
}

// CrowdingDistance computes NSGA-II crowding distances for a front. Boundary
// points on any objective get +Inf.
func CrowdingDistance(front []model.Candidate, objectives []Objective) []float64 {
	n := len(front)
	distances := make([]float64, n)
	if n == 0 {
		return distances
	}

	indices := make([]int, n)
	for _, o := range objectives {
		for i := range indices {
			indices[i] = i
		}
		value := func(i int) float64 { return front[indices[i]].Metrics.Value(o.Metric) }
		sort.SliceStable(indices, func(i, j int) bool {
			return front[indices[i]].Metrics.Value(o.Metric) < front[indices[j]].Metrics.Value(o.Metric)
		})

		span := value(n-1) - value(0)
		if span == 0 {
			continue
		}
		distances[indices[0]] = math.Inf(1)
		distances[indices[n-1]] = math.Inf(1)
		for i := 1; i < n-1; i++ {
			distances[indices[i]] += (value(i+1) - value(i-1)) / span
		}
	}
	return distances
}

// SortByCrowding orders a front from most to least isolated, ties by id.
func SortByCrowding(front []model.Candidate, objectives []Objective) []model.Candidate {
	distances := CrowdingDistance(front, objectives)
	order := make([]int, len(front))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		di, dj := distances[order[i]], distances[order[j]]
		if di == dj {
			return front[order[i]].ID < front[order[j]].ID
		}
		return di > dj
	})
	out := make([]model.Candidate, len(front))
	for i, idx := range order {
		out[i] = front[idx]
	}
	return out
}
