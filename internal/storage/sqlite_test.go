//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "discovery.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if _, ok, err := store.LoadState(ctx); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}

	state := sampleState(t)
	if err := store.SaveState(ctx, state); err != nil {
		t.Fatalf("save state: %v", err)
	}
	state.TotalGenerations++
	if err := store.SaveState(ctx, state); err != nil {
		t.Fatalf("overwrite state: %v", err)
	}

	loaded, ok, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted state")
	}
	assertStateRoundTrip(t, state, loaded)

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, err := store.LoadState(ctx); err != nil || ok {
		t.Fatalf("expected empty store after reset, got ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "discovery.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	state := sampleState(t)
	if err := first.SaveState(ctx, state); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	loaded, ok, err := second.LoadState(ctx)
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	assertStateRoundTrip(t, state, loaded)
}
