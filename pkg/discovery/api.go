// Package discovery is the public entry point for the AMM discovery engine.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ManiFed/invariant-sub001/internal/config"
	"github.com/ManiFed/invariant-sub001/internal/engine"
	"github.com/ManiFed/invariant-sub001/internal/evo"
	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/guidance"
	"github.com/ManiFed/invariant-sub001/internal/logging"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/observability"
	"github.com/ManiFed/invariant-sub001/internal/pareto"
	"github.com/ManiFed/invariant-sub001/internal/regime"
	"github.com/ManiFed/invariant-sub001/internal/rng"
	"github.com/ManiFed/invariant-sub001/internal/storage"
)

type (
	Source           = rng.Source
	Regime           = model.Regime
	MetricName       = model.MetricName
	FamilyID         = family.ID
	Candidate        = model.Candidate
	Population       = model.Population
	EngineState      = model.EngineState
	RegimeConfig     = regime.Config
	LoopConfig       = evo.LoopConfig
	GenerationResult = evo.GenerationResult
	Recommendation   = guidance.Recommendation
	GuidanceOptions  = guidance.Options
	TickResult       = engine.TickResult
	Config           = config.Config
)

// NewSource returns a deterministic random source for seed.
func NewSource(seed int64) Source {
	return rng.New(seed)
}

// CreateInitialState returns an empty state with one population per regime.
func CreateInitialState() EngineState {
	return model.NewEngineState()
}

// DefaultRegimes returns the built-in regime configurations.
func DefaultRegimes() []RegimeConfig {
	return regime.Defaults()
}

// CreateRandomCandidate builds one evaluated candidate for regime r using the
// built-in regime catalog. now stamps the candidate; nil means time.Now.
func CreateRandomCandidate(src Source, now func() time.Time, r Regime, generation int, parent *Candidate, weights map[FamilyID]float64) (Candidate, error) {
	g, err := evo.NewGenerator(evo.GeneratorConfig{Source: src, Clock: now})
	if err != nil {
		return Candidate{}, err
	}
	return g.CreateRandomCandidate(r, generation, parent, weights)
}

// RunGeneration advances population by one generation under cfg.
func RunGeneration(ctx context.Context, src Source, now func() time.Time, population Population, cfg RegimeConfig, loop LoopConfig) (GenerationResult, error) {
	catalog := regime.DefaultCatalog()
	catalog[cfg.ID] = cfg
	g, err := evo.NewGenerator(evo.GeneratorConfig{Source: src, Clock: now, Catalog: catalog})
	if err != nil {
		return GenerationResult{}, err
	}
	return g.RunGeneration(ctx, population, cfg, loop)
}

// LearnRecommendation learns family weights from archived candidates. It
// reports false until some family has enough samples.
func LearnRecommendation(archive []Candidate, opts GuidanceOptions) (Recommendation, bool) {
	return guidance.Learn(archive, opts)
}

// ParetoFront returns the non-dominated candidates over metrics, ordered by
// crowding distance. No metrics means all of them.
func ParetoFront(candidates []Candidate, metrics ...MetricName) []Candidate {
	objectives := pareto.Objectives(metrics...)
	return pareto.SortByCrowding(pareto.Front(candidates, objectives), objectives)
}

type Options struct {
	Config Config
	Logger *slog.Logger
	// Metrics defaults to a fresh registry per client.
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// Client runs an engine backed by the configured store.
type Client struct {
	engine    *engine.Engine
	scheduler *engine.Scheduler
	cfg       Config
}

func New(opts Options) (*Client, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	selector, err := evo.SelectorByName(cfg.Engine.Selector)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	store, err := storage.NewStore(cfg.Storage.Kind, cfg.Storage.DSN)
	if err != nil {
		return nil, err
	}

	e, err := engine.New(engine.Config{
		Seed:    cfg.Engine.Seed,
		Catalog: catalog,
		Loop: evo.LoopConfig{
			PopulationSize: cfg.Engine.PopulationSize,
			EliteCount:     cfg.Engine.EliteCount,
			MutationRatio:  cfg.Engine.MutationRatio,
			Selector:       selector,
		},
		MutationStrength: cfg.Engine.MutationStrength,
		ParentFamilyBias: cfg.Engine.ParentFamilyBias,
		GuidanceInterval: cfg.Engine.GuidanceInterval,
		Guidance: guidance.Options{
			MinSamples:  cfg.Engine.MinSamples,
			FloorWeight: cfg.Engine.FloorWeight,
		},
		Store:   store,
		Logger:  logger,
		Metrics: opts.Metrics,
		Clock:   opts.Clock,
	})
	if err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, err
	}
	return &Client{engine: e, scheduler: engine.NewScheduler(e), cfg: cfg}, nil
}

// Init prepares the store and restores any saved state. It reports whether
// a state was restored.
func (c *Client) Init(ctx context.Context) (bool, error) {
	if err := c.engine.Init(ctx); err != nil {
		return false, fmt.Errorf("init store: %w", err)
	}
	return c.engine.Load(ctx)
}

func (c *Client) Close() error {
	c.scheduler.Stop()
	return c.engine.Close()
}

func (c *Client) Tick(ctx context.Context) (TickResult, error) {
	return c.engine.Tick(ctx)
}

type RunSummary struct {
	Ticks            int
	NewCandidates    int
	ArchiveSize      int
	TotalGenerations int
	BestScore        float64
	BestID           string
	Duration         time.Duration
	Cancelled        bool
}

// Run executes ticks back to back. A cancelled context stops the run after the
// last committed tick and is reported in the summary rather than as an error.
func (c *Client) Run(ctx context.Context, ticks int) (RunSummary, error) {
	if ticks <= 0 {
		return RunSummary{}, fmt.Errorf("ticks must be > 0, got %d", ticks)
	}
	summary := RunSummary{}
	for range ticks {
		res, err := c.engine.Tick(ctx)
		if errors.Is(err, engine.ErrTickCancelled) {
			summary.Cancelled = true
			break
		}
		if err != nil {
			return summary, err
		}
		summary.Ticks++
		summary.NewCandidates += res.NewCandidates
		summary.Duration += res.Duration
		for _, s := range res.Summaries {
			if summary.BestID == "" || s.BestScore > summary.BestScore {
				summary.BestScore = s.BestScore
				summary.BestID = s.BestID
			}
		}
	}
	summary.ArchiveSize = c.engine.Archive().Len()
	summary.TotalGenerations = c.engine.TotalGenerations()
	return summary, nil
}

func (c *Client) State() EngineState {
	return c.engine.Snapshot()
}

func (c *Client) Front(metrics ...MetricName) []Candidate {
	return ParetoFront(c.engine.Archive().Snapshot(), metrics...)
}

func (c *Client) Guidance() (Recommendation, bool) {
	return c.engine.Recommendation()
}

func (c *Client) Reset(ctx context.Context) error {
	c.scheduler.Stop()
	return c.engine.Reset(ctx)
}

// Engine exposes the underlying engine for hosts such as the HTTP API.
func (c *Client) Engine() *engine.Engine {
	return c.engine
}

func (c *Client) Scheduler() *engine.Scheduler {
	return c.scheduler
}

func (c *Client) TickInterval() time.Duration {
	return c.cfg.Engine.TickInterval
}
