// Package server provides the HTTP server and routing for Helm.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/helmfi/helm/internal/config"
	"github.com/helmfi/helm/internal/database"
	"github.com/helmfi/helm/internal/domain"
	"github.com/helmfi/helm/internal/modules/automation"
	"github.com/helmfi/helm/internal/modules/performance"
	"github.com/helmfi/helm/internal/modules/rebalancing"
	"github.com/helmfi/helm/internal/modules/risk"
	"github.com/helmfi/helm/internal/modules/stress"
	"github.com/helmfi/helm/internal/reliability"
)

// PriceFeed reports live price feed connectivity for status endpoints.
type PriceFeed interface {
	IsConnected() bool
}

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	EngineDB  *database.DB
	CacheDB   *database.DB
	Ledger    domain.Ledger
	Scheduler *automation.Scheduler
	Assessor  *risk.Assessor
	Advisor   *rebalancing.Advisor
	Tester    *stress.Tester
	Analyzer  *performance.Analyzer
	Backups   *reliability.BackupService // nil when backups are disabled
	PriceFeed PriceFeed                  // nil when the live feed is disabled
}

// Server is the HTTP API for the engine.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	ledger         domain.Ledger
	scheduler      *automation.Scheduler
	assessor       *risk.Assessor
	advisor        *rebalancing.Advisor
	tester         *stress.Tester
	analyzer       *performance.Analyzer
	backups        *reliability.BackupService
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg.Config,
		ledger:    cfg.Ledger,
		scheduler: cfg.Scheduler,
		assessor:  cfg.Assessor,
		advisor:   cfg.Advisor,
		tester:    cfg.Tester,
		analyzer:  cfg.Analyzer,
		backups:   cfg.Backups,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.EngineDB, cfg.CacheDB, cfg.PriceFeed)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/automations", func(r chi.Router) {
			r.Post("/", s.handleCreateAutomation)
			r.Get("/", s.handleListAutomations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Delete("/", s.handleDeleteAutomation)
				r.Post("/pause", s.handlePauseAutomation)
				r.Post("/resume", s.handleResumeAutomation)
				r.Post("/cancel", s.handleCancelAutomation)
				r.Get("/executions", s.handleListExecutions)
			})
		})

		r.Post("/risk/assessment", s.handleRiskAssessment)
		r.Post("/rebalancing/recommendation", s.handleRebalanceRecommendation)

		r.Route("/stress", func(r chi.Router) {
			r.Get("/scenarios", s.handleListScenarios)
			r.Post("/test", s.handleStressTest)
		})

		r.Route("/performance", func(r chi.Router) {
			r.Get("/metrics", s.handlePerformanceMetrics)
			r.Post("/projections", s.handleProjections)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			if s.backups != nil {
				r.Get("/backups", s.handleListBackups)
				r.Post("/backups", s.handleTriggerBackup)
			}
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
