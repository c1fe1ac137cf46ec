// Package archive holds the append-only history of every evaluated
// candidate.
package archive

import (
	"sync"

	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/model"
)

// Archive is safe for concurrent use. It is never pruned or deduplicated.
type Archive struct {
	mu    sync.RWMutex
	items []model.Candidate
	byID  map[string]int
}

func New(initial ...model.Candidate) *Archive {
	a := &Archive{byID: make(map[string]int, len(initial))}
	a.Append(initial...)
	return a
}

// Append adds a batch atomically: readers see all of it or none of it. It
// returns the archive size after the append.
func (a *Archive) Append(candidates ...model.Candidate) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range candidates {
		a.byID[c.ID] = len(a.items)
		a.items = append(a.items, c)
	}
	return len(a.items)
}

func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.items)
}

// Snapshot returns a copy of the archive in insertion order.
func (a *Archive) Snapshot() []model.Candidate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]model.Candidate(nil), a.items...)
}

// Get returns the most recently appended candidate with id.
func (a *Archive) Get(id string) (model.Candidate, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.byID[id]
	if !ok {
		return model.Candidate{}, false
	}
	return a.items[i], true
}

func (a *Archive) ByRegime(r model.Regime) []model.Candidate {
	return a.filter(func(c model.Candidate) bool { return c.Regime == r })
}

func (a *Archive) ByFamily(id family.ID) []model.Candidate {
	return a.filter(func(c model.Candidate) bool { return c.Family == id })
}

func (a *Archive) filter(keep func(model.Candidate) bool) []model.Candidate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []model.Candidate
	for _, c := range a.items {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
