package storage

import (
	"context"
	"errors"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

var (
	ErrNotInitialized     = errors.New("store is not initialized")
	ErrUnsupportedBackend = errors.New("unsupported store backend")
)

// stateKey is the row id the SQL backends store the engine state under.
const stateKey = "engine"

// Store persists the engine aggregate. LoadState reports false when nothing
// has been saved yet.
type Store interface {
	Init(ctx context.Context) error
	SaveState(ctx context.Context, state model.EngineState) error
	LoadState(ctx context.Context) (model.EngineState, bool, error)
	Reset(ctx context.Context) error
}
