package family

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrFamilyExists  = errors.New("family already registered")
	ErrUnknownFamily = errors.New("unknown family")
)

var familyRegistry = struct {
	mu sync.RWMutex
	m  map[ID]Family
}{
	m: make(map[ID]Family),
}

func init() {
	for _, f := range builtins() {
		if err := Register(f); err != nil {
			panic(err)
		}
	}
}

// Register adds a family template. IDs are unique.
func Register(f Family) error {
	if f.ID == "" {
		return errors.New("family id is required")
	}
	if f.Sample == nil || f.Decode == nil {
		return fmt.Errorf("family %s requires sample and decode functions", f.ID)
	}

	familyRegistry.mu.Lock()
	defer familyRegistry.mu.Unlock()

	if _, exists := familyRegistry.m[f.ID]; exists {
		return fmt.Errorf("%w: %s", ErrFamilyExists, f.ID)
	}
	familyRegistry.m[f.ID] = f
	return nil
}

func Lookup(id ID) (Family, error) {
	familyRegistry.mu.RLock()
	f, ok := familyRegistry.m[id]
	familyRegistry.mu.RUnlock()

	if !ok {
		return Family{}, fmt.Errorf("%w: %s", ErrUnknownFamily, id)
	}
	return f, nil
}

// MustLookup panics on unknown ids; callers pass ids taken from IDs().
func MustLookup(id ID) Family {
	f, err := Lookup(id)
	if err != nil {
		panic(err)
	}
	return f
}

// IDs lists registered families in sorted order.
func IDs() []ID {
	familyRegistry.mu.RLock()
	defer familyRegistry.mu.RUnlock()

	ids := make([]ID, 0, len(familyRegistry.m))
	for id := range familyRegistry.m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Decode resolves the tagged-union payload for id.
func Decode(id ID, raw json.RawMessage) (Params, error) {
	f, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	return f.Decode(raw)
}

func unregisterForTests(id ID) {
	familyRegistry.mu.Lock()
	defer familyRegistry.mu.Unlock()
	delete(familyRegistry.m, id)
}
