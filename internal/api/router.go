package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Harshitk-cp/beliefgraph/internal/api/handlers"
	mw "github.com/Harshitk-cp/beliefgraph/internal/api/middleware"
	"github.com/Harshitk-cp/beliefgraph/internal/buildconfig"
	"github.com/Harshitk-cp/beliefgraph/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// DB is checked by /health when set.
	DB              Pinger
	RateLimitRPS    float64
	RateLimitBurst  int
	DefaultMaxDepth int
	// Registry receives the HTTP collectors and backs /metrics. Nil uses the default registry.
	Registry *prometheus.Registry
}

// App holds the router and the engine for lifecycle management.
type App struct {
	Router    *chi.Mux
	Engine    *service.Engine
	startTime time.Time
}

func NewApp(engine *service.Engine, logger *zap.Logger, opts Options) *App {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 100
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 20
	}

	relHandler := handlers.NewRelationshipHandler(engine, logger)
	beliefHandler := handlers.NewBeliefHandler(engine, logger, opts.DefaultMaxDepth)
	graphHandler := handlers.NewGraphHandler(engine, logger)

	r := chi.NewRouter()
	app := &App{Router: r, Engine: engine, startTime: time.Now()}

	var metricsHandler http.Handler
	var metrics *mw.MetricsCollector
	if opts.Registry != nil {
		metrics = mw.NewMetricsCollector("beliefgraph", opts.Registry)
		metricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
	} else {
		metrics = mw.NewMetricsCollector("beliefgraph", nil)
		metricsHandler = promhttp.Handler()
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Tracing)
	r.Use(metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(opts.RateLimitRPS, opts.RateLimitBurst))

	r.Get("/health", app.healthHandler(opts.DB))
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.AgentScope)

		r.Get("/relationship-types", relHandler.Types)

		r.Route("/relationships", func(r chi.Router) {
			r.Get("/", relHandler.List)
			r.Post("/", relHandler.Create)
			r.Post("/bulk", relHandler.CreateBulk)
			r.Post("/import", relHandler.Import)
			r.Post("/deprecate", relHandler.Deprecate)
			r.Get("/between/{source}/{target}", relHandler.Between)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", relHandler.GetByID)
				r.Patch("/", relHandler.Update)
				r.Delete("/", relHandler.Delete)
				r.Post("/deactivate", relHandler.Deactivate)
				r.Post("/reactivate", relHandler.Reactivate)
			})
		})

		r.Route("/beliefs/{id}", func(r chi.Router) {
			r.Get("/relationships", beliefHandler.Relationships)
			r.Get("/degree", beliefHandler.Degree)
			r.Get("/reachable", beliefHandler.Reachable)
			r.Get("/path/{target}", beliefHandler.Path)
			r.Get("/chain", beliefHandler.Chain)
			r.Get("/similar", beliefHandler.Similar)
			r.Get("/superseding", beliefHandler.Superseding)
		})

		r.Route("/graph", func(r chi.Router) {
			r.Get("/statistics", graphHandler.Statistics)
			r.Get("/health", graphHandler.Health)
			r.Get("/validate", graphHandler.Validate)
			r.Get("/conflicts", graphHandler.Conflicts)
			r.Get("/clusters", graphHandler.Clusters)
			r.Get("/deprecated", graphHandler.Deprecated)
			r.Get("/snapshot", graphHandler.Snapshot)
			r.Post("/snapshot/filtered", graphHandler.FilteredSnapshot)
			r.Get("/active", graphHandler.Active)
			r.Get("/export", graphHandler.Export)
			r.Get("/search", graphHandler.Search)
			r.Post("/cleanup", graphHandler.Cleanup)
		})
	})

	return app
}

type healthResponse struct {
	Status        string           `json:"status"`
	Error         string           `json:"error,omitempty"`
	Build         buildconfig.Info `json:"build"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Relationships int              `json:"relationships"`
}

func (app *App) healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:        "ok",
			Build:         buildconfig.VersionInfo(),
			UptimeSeconds: time.Since(app.startTime).Seconds(),
			Relationships: app.Engine.Store.Len(),
		}
		status := http.StatusOK
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				resp.Status = "error"
				resp.Error = err.Error()
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
