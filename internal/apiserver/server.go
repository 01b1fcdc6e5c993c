// Package apiserver is the local control-plane HTTP/SSE server: the surface
// agent hook scripts call to move tickets, claim work, report events, and
// subscribe to the live event feed.
package apiserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentkanban/agentkanban/internal/broadcast"
	"github.com/agentkanban/agentkanban/internal/metrics"
	"github.com/agentkanban/agentkanban/internal/reservation"
	"github.com/agentkanban/agentkanban/internal/store"
)

// Config configures a Server.
type Config struct {
	Addr  string // default "127.0.0.1:7432"
	Token string
}

// Server is the control-plane HTTP server.
type Server struct {
	router      *chi.Mux
	store       *store.Store
	reservation *reservation.Manager
	broadcaster *broadcast.Broadcaster
	logger      *slog.Logger
	cfg         Config
	httpServer  *http.Server
	startedAt   time.Time
}

// New builds a Server with its full route table mounted.
func New(cfg Config, st *store.Store, res *reservation.Manager, b *broadcast.Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7432"
	}

	s := &Server{
		router:      chi.NewRouter(),
		store:       st,
		reservation: res,
		broadcaster: b,
		logger:      logger,
		cfg:         cfg,
		startedAt:   time.Now(),
	}

	s.router.Use(requestID)
	s.router.Use(requestLogger(logger))
	s.router.Use(metricsMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(metricsRegistry(), promhttp.HandlerOpts{}))

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(tokenAuth(s.cfg.Token))
		s.mountBoardRoutes(r)
		s.mountTicketRoutes(r)
		s.mountRunRoutes(r)
		s.mountQueueRoutes(r)
		s.mountStreamRoutes(r)
	})

	return s
}

// Handler exposes the root handler, for use with httptest or a custom
// http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the HTTP server and blocks until ctx is cancelled or
// the server fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control plane listening", "addr", s.cfg.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startedAt).Seconds(),
	})
}

var metricsReg *prometheus.Registry

func metricsRegistry() *prometheus.Registry {
	if metricsReg == nil {
		metricsReg = prometheus.NewRegistry()
		metricsReg.MustRegister(httpRequestDuration)
		metricsReg.MustRegister(metrics.Collectors()...)
	}
	return metricsReg
}
