// Package httpapi exposes the discovery engine over HTTP.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/ManiFed/invariant-sub001/internal/engine"
	"github.com/ManiFed/invariant-sub001/internal/evo"
	"github.com/ManiFed/invariant-sub001/internal/family"
	"github.com/ManiFed/invariant-sub001/internal/features"
	"github.com/ManiFed/invariant-sub001/internal/model"
	"github.com/ManiFed/invariant-sub001/internal/pareto"
)

const (
	defaultArchiveLimit = 100
	maxArchiveLimit     = 5000
	defaultSimilar      = 5
)

type Server struct {
	engine       *engine.Engine
	scheduler    *engine.Scheduler
	tickInterval time.Duration
	logger       *slog.Logger
	// baseCtx parents scheduler runs so they outlive the start request.
	baseCtx context.Context
}

func NewServer(ctx context.Context, e *engine.Engine, s *engine.Scheduler, tickInterval time.Duration, logger *slog.Logger) *Server {
	return &Server{
		engine:       e,
		scheduler:    s,
		tickInterval: tickInterval,
		logger:       logger.With(slog.String("component", "httpapi")),
		baseCtx:      ctx,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", s.engine.Metrics().Handler())

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/state", s.getState)
		r.Get("/archive", s.getArchive)
		r.Get("/front", s.getFront)
		r.Get("/guidance", s.getGuidance)
		r.Route("/candidates/{id}", func(r chi.Router) {
			r.Get("/", s.getCandidate)
			r.Get("/similar", s.getSimilar)
		})
		r.Route("/engine", func(r chi.Router) {
			r.Post("/start", s.startEngine)
			r.Post("/stop", s.stopEngine)
			r.Post("/tick", s.tickEngine)
			r.Post("/reset", s.resetEngine)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type populationView struct {
	Generation int     `json:"generation"`
	Size       int     `json:"size"`
	BestID     string  `json:"best_id,omitempty"`
	BestScore  float64 `json:"best_score"`
}

type stateView struct {
	TotalGenerations int                             `json:"total_generations"`
	ArchiveSize      int                             `json:"archive_size"`
	Running          bool                            `json:"running"`
	Populations      map[model.Regime]populationView `json:"populations"`
	FamilyWeights    map[family.ID]float64           `json:"family_weights,omitempty"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	state := s.engine.Snapshot()
	view := stateView{
		TotalGenerations: state.TotalGenerations,
		ArchiveSize:      len(state.Archive),
		Running:          s.scheduler.Running(),
		Populations:      make(map[model.Regime]populationView, len(state.Populations)),
		FamilyWeights:    state.FamilyWeights,
	}
	for regime, pop := range state.Populations {
		pv := populationView{Generation: pop.Generation, Size: len(pop.Candidates)}
		if ranked := evo.Rank(pop.Candidates); len(ranked) > 0 {
			pv.BestID = ranked[0].ID
			pv.BestScore = ranked[0].Score
		}
		view.Populations[regime] = pv
	}
	render.JSON(w, r, view)
}

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseLimit(query.Get("limit"), defaultArchiveLimit, maxArchiveLimit)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	candidates, err := s.filtered(query.Get("regime"), query.Get("family"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(candidates) > limit {
		candidates = candidates[len(candidates)-limit:]
	}
	render.JSON(w, r, map[string]any{
		"total":      s.engine.Archive().Len(),
		"count":      len(candidates),
		"candidates": candidates,
	})
}

func (s *Server) getFront(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var metrics []model.MetricName
	if raw := query.Get("metrics"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			m, err := model.ParseMetric(strings.TrimSpace(name))
			if err != nil {
				writeProblem(w, r, http.StatusBadRequest, err.Error())
				return
			}
			metrics = append(metrics, m)
		}
	}
	candidates, err := s.filtered(query.Get("regime"), query.Get("family"))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	objectives := pareto.Objectives(metrics...)
	front := pareto.SortByCrowding(pareto.Front(candidates, objectives), objectives)
	render.JSON(w, r, map[string]any{
		"objectives": objectives,
		"count":      len(front),
		"candidates": front,
	})
}

func (s *Server) getGuidance(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.engine.Recommendation()
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "not enough archived candidates for a recommendation yet")
		return
	}
	render.JSON(w, r, rec)
}

func (s *Server) getCandidate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.engine.Archive().Get(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "candidate not found")
		return
	}
	render.JSON(w, r, c)
}

func (s *Server) getSimilar(w http.ResponseWriter, r *http.Request) {
	arch := s.engine.Archive()
	target, ok := arch.Get(chi.URLParam(r, "id"))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, "candidate not found")
		return
	}
	k, err := parseLimit(r.URL.Query().Get("k"), defaultSimilar, maxArchiveLimit)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	render.JSON(w, r, map[string]any{
		"target":     target.ID,
		"candidates": features.Nearest(target, arch.Snapshot(), k),
	})
}

func (s *Server) startEngine(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(s.baseCtx, s.tickInterval); err != nil {
		if errors.Is(err, engine.ErrSchedulerRunning) {
			writeProblem(w, r, http.StatusConflict, err.Error())
			return
		}
		writeProblem(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]any{"running": true, "interval": s.tickInterval.String()})
}

func (s *Server) stopEngine(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	render.JSON(w, r, map[string]any{"running": false})
}

func (s *Server) tickEngine(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Tick(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrTickCancelled) {
			status = http.StatusServiceUnavailable
		}
		writeProblem(w, r, status, err.Error())
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) resetEngine(w http.ResponseWriter, r *http.Request) {
	s.scheduler.Stop()
	if err := s.engine.Reset(r.Context()); err != nil {
		writeProblem(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) filtered(rawRegime, rawFamily string) ([]model.Candidate, error) {
	var (
		r  model.Regime
		id family.ID
	)
	if rawRegime != "" {
		parsed, err := model.ParseRegime(rawRegime)
		if err != nil {
			return nil, err
		}
		r = parsed
	}
	if rawFamily != "" {
		id = family.ID(rawFamily)
		if _, err := family.Lookup(id); err != nil {
			return nil, err
		}
	}

	arch := s.engine.Archive()
	switch {
	case r == "" && id == "":
		return arch.Snapshot(), nil
	case id == "":
		return arch.ByRegime(r), nil
	case r == "":
		return arch.ByFamily(id), nil
	}
	var out []model.Candidate
	for _, c := range arch.ByFamily(id) {
		if c.Regime == r {
			out = append(out, c)
		}
	}
	return out, nil
}

func parseLimit(raw string, fallback, ceiling int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, ceiling), nil
}
