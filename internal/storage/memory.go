package storage

import (
	"context"
	"sync"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

// MemoryStore keeps the encoded state so loads never alias engine memory.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	payload     []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	return nil
}

func (s *MemoryStore) SaveState(_ context.Context, state model.EngineState) error {
	payload, err := EncodeState(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	s.payload = payload
	return nil
}

func (s *MemoryStore) LoadState(_ context.Context) (model.EngineState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return model.EngineState{}, false, ErrNotInitialized
	}
	if s.payload == nil {
		return model.EngineState{}, false, nil
	}
	state, err := DecodeState(s.payload)
	if err != nil {
		return model.EngineState{}, false, err
	}
	return state, true, nil
}

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payload = nil
	return nil
}
