//go:build sqlite

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestStateSurvivesAcrossCommandsSQLite(t *testing.T) {
	path := writeTestConfig(t)
	dbPath := filepath.Join(t.TempDir(), "discovery.db")
	common := []string{"-config", path, "-store", "sqlite", "-dsn", dbPath}

	if err := run(context.Background(), append([]string{"run", "-ticks", "2"}, common...), &bytes.Buffer{}); err != nil {
		t.Fatalf("run: %v", err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), append([]string{"front", "-metrics", "totalFees,totalSlippage"}, common...), &out); err != nil {
		t.Fatalf("front: %v", err)
	}
	if !strings.Contains(out.String(), "of 32 archived") {
		t.Fatalf("front did not see the saved archive:\n%s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), append([]string{"guidance"}, common...), &out); err != nil {
		t.Fatalf("guidance: %v", err)
	}
	if !strings.Contains(out.String(), "FAMILY") {
		t.Fatalf("expected a guidance table:\n%s", out.String())
	}

	if err := run(context.Background(), append([]string{"reset"}, common...), &bytes.Buffer{}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	out.Reset()
	if err := run(context.Background(), append([]string{"run", "-ticks", "1"}, common...), &out); err != nil {
		t.Fatalf("run after reset: %v", err)
	}
	if !strings.Contains(out.String(), "total_generations=1") {
		t.Fatalf("reset did not clear state:\n%s", out.String())
	}
}
