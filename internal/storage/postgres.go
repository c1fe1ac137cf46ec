package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

// PostgresStore keeps the engine state as a single JSONB row.
type PostgresStore struct {
	dsn string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

func (s *PostgresStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return errors.New("postgres dsn is required")
	}
	if s.pool != nil {
		return nil
	}

	config, err := pgxpool.ParseConfig(s.dsn)
	if err != nil {
		return fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS engine_state (
			id TEXT PRIMARY KEY,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			total_generations INTEGER NOT NULL,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		pool.Close()
		return fmt.Errorf("create engine_state table: %w", err)
	}

	s.pool = pool
	return nil
}

func (s *PostgresStore) SaveState(ctx context.Context, state model.EngineState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	payload, err := EncodeState(state)
	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO engine_state (id, schema_version, codec_version, total_generations, payload, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET schema_version = EXCLUDED.schema_version,
		    codec_version = EXCLUDED.codec_version,
		    total_generations = EXCLUDED.total_generations,
		    payload = EXCLUDED.payload,
		    updated_at = NOW()
	`, stateKey, CurrentSchemaVersion, CurrentCodecVersion, state.TotalGenerations, string(payload))
	return err
}

func (s *PostgresStore) LoadState(ctx context.Context) (model.EngineState, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return model.EngineState{}, false, err
	}

	var payload []byte
	err = pool.QueryRow(ctx, `SELECT payload FROM engine_state WHERE id = $1`, stateKey).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.EngineState{}, false, nil
		}
		return model.EngineState{}, false, err
	}

	state, err := DecodeState(payload)
	if err != nil {
		return model.EngineState{}, false, fmt.Errorf("decode engine state: %w", err)
	}
	return state, true, nil
}

func (s *PostgresStore) Reset(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `DELETE FROM engine_state WHERE id = $1`, stateKey)
	return err
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pool == nil {
		return nil, ErrNotInitialized
	}
	return s.pool, nil
}
