// Package observability provides Prometheus metrics and tracing for the
// discovery engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultNamespace = "amm_discovery"
	tracerName       = "github.com/ManiFed/invariant-sub001"
)

// Tick outcome labels.
const (
	TickOK        = "ok"
	TickCancelled = "cancelled"
	TickFailed    = "failed"
)

// Metrics holds the engine's collectors on a dedicated registry so several
// engines can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal          *prometheus.CounterVec
	TickDuration        prometheus.Histogram
	CandidatesEvaluated *prometheus.CounterVec
	BestScore           *prometheus.GaugeVec
	FamilyWeight        *prometheus.GaugeVec
	ArchiveSize         prometheus.Gauge
	TotalGenerations    prometheus.Gauge
	PersistErrors       prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TicksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Engine ticks by outcome",
		}, []string{"status"}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one engine tick across all regimes",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		CandidatesEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evo",
			Name:      "candidates_evaluated_total",
			Help:      "Candidates produced and archived per regime",
		}, []string{"regime"}),
		BestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evo",
			Name:      "best_score",
			Help:      "Best score in the latest generation per regime",
		}, []string{"regime"}),
		FamilyWeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "guidance",
			Name:      "family_weight",
			Help:      "Current sampling weight per family",
		}, []string{"family"}),
		ArchiveSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "candidates",
			Help:      "Number of archived candidates",
		}),
		TotalGenerations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "total_generations",
			Help:      "Completed engine ticks",
		}),
		PersistErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persist_errors_total",
			Help:      "Failed state snapshots",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Tracer returns the engine tracer from the global provider. It is a no-op
// unless the host installs a provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
