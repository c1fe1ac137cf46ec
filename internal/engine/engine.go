// Package engine advances every regime population one generation per tick
// and owns the archive, guidance and persistence around it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManiFed/invariant-sub001/internal/archive"
	"github.com/ManiFed/invariant-sub001/internal/evo"
	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/fitness"
	"github.com/ManiFed/invariant-sub001/internal/guidance"
	"github.com/ManiFed/invariant-sub001/internal/logging"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/observability"
	"github.com/ManiFed/invariant-sub001/internal/pareto"
	"github.com/ManiFed/invariant-sub001/internal/regime"
	"github.com/ManiFed/invariant-sub001/internal/rng"
	"github.com/ManiFed/invariant-sub001/internal/storage"
)

// ErrTickCancelled wraps the context error of a tick that was discarded
// because its context ended.
var ErrTickCancelled = errors.New("tick cancelled")

const DefaultGuidanceInterval = 5

type Config struct {
	Seed      int64
	Catalog   regime.Catalog
	Evaluator fitness.Evaluator
	Loop      evo.LoopConfig
	// MutationStrength and ParentFamilyBias fall back to the evo defaults.
	MutationStrength float64
	ParentFamilyBias float64
	// GuidanceInterval re-learns family weights every N completed ticks.
	GuidanceInterval int
	Guidance         guidance.Options
	Store            storage.Store
	Logger           *slog.Logger
	Metrics          *observability.Metrics
	Clock            func() time.Time
}

type TickResult struct {
	Tick          int                     `json:"tick"`
	NewCandidates int                     `json:"new_candidates"`
	ArchiveSize   int                     `json:"archive_size"`
	Relearned     bool                    `json:"relearned"`
	Summaries     []evo.GenerationSummary `json:"summaries"`
	Duration      time.Duration           `json:"duration"`
}

type Engine struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer

	// tickMu serialises Tick, Load and Reset.
	tickMu sync.Mutex

	mu               sync.RWMutex
	archive          *archive.Archive
	populations      map[model.Regime]model.Population
	totalGenerations int
	weights          map[family.ID]float64
	recommendation   *guidance.Recommendation
}

func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = regime.DefaultCatalog()
	}
	for _, r := range model.Regimes() {
		if _, err := cfg.Catalog.Lookup(r); err != nil {
			return nil, err
		}
	}
	if cfg.Evaluator == (fitness.Evaluator{}) {
		cfg.Evaluator = fitness.DefaultEvaluator()
	}
	if cfg.GuidanceInterval == 0 {
		cfg.GuidanceInterval = DefaultGuidanceInterval
	}
	if cfg.GuidanceInterval < 0 {
		return nil, fmt.Errorf("guidance interval must be > 0, got %d", cfg.GuidanceInterval)
	}
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics("")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		cfg:     cfg,
		logger:  cfg.Logger.With(slog.String("component", "engine")),
		metrics: cfg.Metrics,
		tracer:  observability.Tracer(),
	}
	if _, err := e.newGenerators(0); err != nil {
		return nil, err
	}
	e.resetLocked()
	return e, nil
}

// Init prepares the store. Call Load afterwards to restore a saved state.
func (e *Engine) Init(ctx context.Context) error {
	return e.cfg.Store.Init(ctx)
}

// Close releases the store if it holds resources.
func (e *Engine) Close() error {
	return storage.CloseIfSupported(e.cfg.Store)
}

// resetLocked installs an empty state. Callers hold tickMu or own e
// exclusively.
func (e *Engine) resetLocked() {
	state := model.NewEngineState()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.archive = archive.New()
	e.populations = state.Populations
	e.totalGenerations = 0
	e.weights = nil
	e.recommendation = nil
}

// newGenerators gives each regime its own stream derived from the seed, the
// regime index and the tick about to run. Streams are rebuilt every tick so a
// discarded tick leaves no trace in later ones.
func (e *Engine) newGenerators(tick int) (map[model.Regime]*evo.Generator, error) {
	base := rng.Derive(e.cfg.Seed, tick)
	out := make(map[model.Regime]*evo.Generator, len(model.Regimes()))
	for i, r := range model.Regimes() {
		g, err := evo.NewGenerator(evo.GeneratorConfig{
			Source:           rng.New(rng.Derive(base, i)),
			Clock:            e.cfg.Clock,
			Catalog:          e.cfg.Catalog,
			Evaluator:        e.cfg.Evaluator,
			ParentFamilyBias: e.cfg.ParentFamilyBias,
			MutationStrength: e.cfg.MutationStrength,
		})
		if err != nil {
			return nil, fmt.Errorf("generator for %s: %w", r, err)
		}
		out[r] = g
	}
	return out, nil
}

// Tick advances all regimes by one generation. Either every regime commits
// or none does: on failure or cancellation the whole tick is discarded.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.tick")
	defer span.End()

	e.mu.RLock()
	populations := make(map[model.Regime]model.Population, len(e.populations))
	for r, pop := range e.populations {
		populations[r] = pop.Clone()
	}
	loop := e.cfg.Loop
	loop.FamilyWeights = maps.Clone(e.weights)
	tick := e.totalGenerations
	e.mu.RUnlock()

	generators, err := e.newGenerators(tick)
	if err != nil {
		return TickResult{}, err
	}

	regimes := model.Regimes()
	results := make([]evo.GenerationResult, len(regimes))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range regimes {
		g.Go(func() error {
			rctx, rspan := e.tracer.Start(gctx, "engine.regime", trace.WithAttributes(attribute.String("regime", string(r))))
			defer rspan.End()

			cfg, err := e.cfg.Catalog.Lookup(r)
			if err != nil {
				return err
			}
			res, err := generators[r].RunGeneration(rctx, populations[r], cfg, loop)
			if err != nil {
				rspan.RecordError(err)
				return fmt.Errorf("regime %s: %w", r, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.metrics.TicksTotal.WithLabelValues(observability.TickCancelled).Inc()
			e.logger.Info("tick cancelled", slog.String("reason", ctxErr.Error()))
			return TickResult{}, fmt.Errorf("%w: %w", ErrTickCancelled, ctxErr)
		}
		e.metrics.TicksTotal.WithLabelValues(observability.TickFailed).Inc()
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("tick failed", slog.Any("error", err))
		return TickResult{}, err
	}

	result := e.commit(results)
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("tick", result.Tick),
		attribute.Int("archive_size", result.ArchiveSize),
	)

	e.metrics.TicksTotal.WithLabelValues(observability.TickOK).Inc()
	e.metrics.TickDuration.Observe(result.Duration.Seconds())
	e.persist(context.WithoutCancel(ctx))

	e.logger.Info("tick complete",
		slog.Int("tick", result.Tick),
		slog.Int("new_candidates", result.NewCandidates),
		slog.Int("archive_size", result.ArchiveSize),
		slog.Bool("relearned", result.Relearned),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

func (e *Engine) commit(results []evo.GenerationResult) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	var fresh []model.Candidate
	summaries := make([]evo.GenerationSummary, 0, len(results))
	for _, res := range results {
		r := res.NewPopulation.Regime
		e.populations[r] = res.NewPopulation
		fresh = append(fresh, res.NewCandidates...)
		summaries = append(summaries, res.Summary)

		e.metrics.CandidatesEvaluated.WithLabelValues(string(r)).Add(float64(len(res.NewCandidates)))
		e.metrics.BestScore.WithLabelValues(string(r)).Set(res.Summary.BestScore)
		e.logger.Debug("generation complete",
			slog.String("regime", string(r)),
			slog.Int("generation", res.Summary.Generation),
			slog.Float64("best_score", res.Summary.BestScore),
			slog.Float64("mean_score", res.Summary.MeanScore),
			slog.Int("families", res.Summary.FamilyCount),
		)
	}
	size := e.archive.Append(fresh...)
	e.totalGenerations++

	relearned := false
	if e.totalGenerations%e.cfg.GuidanceInterval == 0 {
		relearned = e.relearnLocked()
	}

	e.metrics.ArchiveSize.Set(float64(size))
	e.metrics.TotalGenerations.Set(float64(e.totalGenerations))
	return TickResult{
		Tick:          e.totalGenerations,
		NewCandidates: len(fresh),
		ArchiveSize:   size,
		Relearned:     relearned,
		Summaries:     summaries,
	}
}

func (e *Engine) relearnLocked() bool {
	rec, ok := guidance.Learn(e.archive.Snapshot(), e.cfg.Guidance)
	if !ok {
		return false
	}
	e.recommendation = &rec
	e.weights = maps.Clone(rec.FamilyWeights)
	for id, w := range rec.FamilyWeights {
		e.metrics.FamilyWeight.WithLabelValues(string(id)).Set(w)
	}
	e.logger.Info("family guidance updated", slog.Any("prioritized", rec.PrioritizedFamilies))
	return true
}

// persist saves a snapshot. A failed save keeps the in-memory state and is
// retried with the next tick.
func (e *Engine) persist(ctx context.Context) {
	if err := e.cfg.Store.SaveState(ctx, e.Snapshot()); err != nil {
		e.metrics.PersistErrors.Inc()
		e.logger.Error("persist engine state", slog.Any("error", err))
	}
}

// Snapshot returns a copy of the engine state.
func (e *Engine) Snapshot() model.EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := model.NewEngineState()
	for r, pop := range e.populations {
		state.Populations[r] = pop.Clone()
	}
	state.Archive = e.archive.Snapshot()
	state.TotalGenerations = e.totalGenerations
	state.FamilyWeights = maps.Clone(e.weights)
	return state
}

// Load restores the saved state, if any, and reports whether one was found.
func (e *Engine) Load(ctx context.Context) (bool, error) {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	state, ok, err := e.cfg.Store.LoadState(ctx)
	if err != nil || !ok {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.archive = archive.New(state.Archive...)
	e.populations = state.Populations
	e.totalGenerations = state.TotalGenerations
	e.weights = maps.Clone(state.FamilyWeights)
	e.recommendation = nil
	if rec, ok := guidance.Learn(e.archive.Snapshot(), e.cfg.Guidance); ok {
		e.recommendation = &rec
	}
	e.metrics.ArchiveSize.Set(float64(e.archive.Len()))
	e.metrics.TotalGenerations.Set(float64(e.totalGenerations))
	e.logger.Info("engine state restored",
		slog.Int("tick", e.totalGenerations),
		slog.Int("archive_size", e.archive.Len()),
	)
	return true, nil
}

// Reset discards all state, in memory and in the store.
func (e *Engine) Reset(ctx context.Context) error {
	e.tickMu.Lock()
	defer e.tickMu.Unlock()

	if err := e.cfg.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	e.resetLocked()
	e.metrics.ArchiveSize.Set(0)
	e.metrics.TotalGenerations.Set(0)
	e.logger.Info("engine reset")
	return nil
}

func (e *Engine) TotalGenerations() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalGenerations
}

func (e *Engine) Archive() *archive.Archive {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.archive
}

// Recommendation returns the latest learned guidance.
func (e *Engine) Recommendation() (guidance.Recommendation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.recommendation == nil {
		return guidance.Recommendation{}, false
	}
	rec := *e.recommendation
	rec.FamilyWeights = maps.Clone(rec.FamilyWeights)
	return rec, true
}

// Front computes the Pareto front of the archive on demand.
func (e *Engine) Front(objectives []pareto.Objective) []model.Candidate {
	if len(objectives) == 0 {
		objectives = pareto.Objectives()
	}
	return pareto.Front(e.Archive().Snapshot(), objectives)
}

func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}
