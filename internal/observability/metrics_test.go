package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsAreIsolatedPerInstance(t *testing.T) {
	a := NewMetrics("")
	b := NewMetrics("")

	a.TicksTotal.WithLabelValues(TickOK).Inc()
	a.TicksTotal.WithLabelValues(TickOK).Inc()
	b.TicksTotal.WithLabelValues(TickFailed).Inc()

	if got := testutil.ToFloat64(a.TicksTotal.WithLabelValues(TickOK)); got != 2 {
		t.Fatalf("expected 2 ok ticks, got %v", got)
	}
	if got := testutil.ToFloat64(b.TicksTotal.WithLabelValues(TickOK)); got != 0 {
		t.Fatalf("registries leaked: %v", got)
	}
}

func TestHandlerExposesEngineMetrics(t *testing.T) {
	m := NewMetrics("test")
	m.ArchiveSize.Set(42)
	m.BestScore.WithLabelValues("regime-shift").Set(1.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)
	for _, want := range []string{"test_archive_candidates 42", `test_evo_best_score{regime="regime-shift"} 1.5`} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}

func TestTracerIsUsableWithoutProvider(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "tick")
	span.End()
}
