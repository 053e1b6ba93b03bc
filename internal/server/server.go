// Package server provides the HTTP server and routing for TriggerGrain.
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

	"github.com/ericscottllc/triggergrain/internal/config"
	"github.com/ericscottllc/triggergrain/internal/database"
	"github.com/ericscottllc/triggergrain/internal/events"
	"github.com/ericscottllc/triggergrain/internal/modules/evaluation"
	evaluationhandlers "github.com/ericscottllc/triggergrain/internal/modules/evaluation/handlers"
	"github.com/ericscottllc/triggergrain/internal/modules/ledger"
	ledgerhandlers "github.com/ericscottllc/triggergrain/internal/modules/ledger/handlers"
	"github.com/ericscottllc/triggergrain/internal/modules/marketdata"
	marketdatahandlers "github.com/ericscottllc/triggergrain/internal/modules/marketdata/handlers"
	"github.com/ericscottllc/triggergrain/internal/modules/scenario"
	scenariohandlers "github.com/ericscottllc/triggergrain/internal/modules/scenario/handlers"
	"github.com/ericscottllc/triggergrain/internal/modules/timeline"
	timelinehandlers "github.com/ericscottllc/triggergrain/internal/modules/timeline/handlers"
)

// Config holds server configuration
type Config struct {
	Log        zerolog.Logger
	Config     *config.Config
	ScenarioDB *database.DB
	MarketDB   *database.DB

	ScenarioService *scenario.Service
	SaleRepo        *ledger.SaleRepository
	RecRepo         *timeline.RecommendationRepository
	MarketRepo      *marketdata.Repository
	EvalEngine      *evaluation.Engine
	EvalRepo        *evaluation.Repository
	EventBus        *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	scenarioDB     *database.DB
	marketDB       *database.DB
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		scenarioDB: cfg.ScenarioDB,
		marketDB:   cfg.MarketDB,
	}
	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.ScenarioDB, cfg.MarketDB)

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes(cfg)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Get("/health", s.handleHealth)

	// Events stream (SSE) before the module routes
	eventsStream := NewEventsStreamHandler(cfg.EventBus, s.log)
	s.router.Get("/api/events/stream", eventsStream.ServeHTTP)

	s.router.Get("/api/system/status", s.systemHandlers.HandleSystemStatus)
	s.router.Get("/api/system/databases", s.systemHandlers.HandleDatabaseStats)

	scenariohandlers.NewHandler(cfg.ScenarioService, s.log).RegisterRoutes(s.router)
	ledgerhandlers.NewHandler(cfg.SaleRepo, s.log).RegisterRoutes(s.router)
	timelinehandlers.NewHandler(cfg.RecRepo, s.log).RegisterRoutes(s.router)
	evaluationhandlers.NewHandler(cfg.EvalEngine, cfg.EvalRepo, s.log).RegisterRoutes(s.router)
	marketdatahandlers.NewHandler(cfg.MarketRepo, s.log).RegisterRoutes(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range []*database.DB{s.scenarioDB, s.marketDB} {
		if err := db.HealthCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status":"unhealthy","database":%q}`, db.Name())
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests with structured logging
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
