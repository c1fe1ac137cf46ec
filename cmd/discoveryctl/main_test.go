package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"

	"github.com/ManiFed/invariant-sub001/internal/config"
	"github.com/ManiFed/invariant-sub001/pkg/discovery"
)

// writeTestConfig writes a small, fast config and returns its path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Engine.PopulationSize = 4
	cfg.Engine.EliteCount = 2
	cfg.Engine.GuidanceInterval = 1
	cfg.Engine.MinSamples = 2
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	cfg.Regimes = discovery.DefaultRegimes()
	for i := range cfg.Regimes {
		cfg.Regimes[i].Steps = 24
		cfg.Regimes[i].Paths = 2
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "discovery.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunCommandPrintsSummary(t *testing.T) {
	path := writeTestConfig(t)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"run", "-config", path, "-ticks", "2"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"run completed: 2 of 2 ticks", "archive=32", "total_generations=2", "best="} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunCommandJSON(t *testing.T) {
	path := writeTestConfig(t)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"run", "-config", path, "-ticks", "1", "-seed", "9", "-json"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var summary discovery.RunSummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out.String())
	}
	if summary.Ticks != 1 || summary.ArchiveSize != 16 || summary.Cancelled {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestGuidanceAndResetOnFreshStore(t *testing.T) {
	path := writeTestConfig(t)

	var out bytes.Buffer
	if err := run(context.Background(), []string{"guidance", "-config", path}, &out); err != nil {
		t.Fatalf("guidance: %v", err)
	}
	if !strings.Contains(out.String(), "no recommendation yet") {
		t.Fatalf("unexpected guidance output: %s", out.String())
	}

	out.Reset()
	if err := run(context.Background(), []string{"reset", "-config", path}, &out); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out.String(), "reset engine state") {
		t.Fatalf("unexpected reset output: %s", out.String())
	}
}

func TestFrontRejectsUnknownMetric(t *testing.T) {
	path := writeTestConfig(t)
	err := run(context.Background(), []string{"front", "-config", path, "-metrics", "profit"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown metric") {
		t.Fatalf("err = %v, want unknown metric", err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	cases := [][]string{
		nil,
		{"explode"},
		{"run", "-store", "cassandra"},
	}
	for _, args := range cases {
		if err := run(context.Background(), args, &bytes.Buffer{}); err == nil {
			t.Fatalf("expected error for args %v", args)
		}
	}
}
