package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Clark-Hu/vibeflix/internal/config"
	"github.com/Clark-Hu/vibeflix/internal/controller"
	"github.com/Clark-Hu/vibeflix/internal/diagnostics"
	"github.com/Clark-Hu/vibeflix/internal/domain"
	"github.com/Clark-Hu/vibeflix/internal/present"
	"github.com/Clark-Hu/vibeflix/internal/repository"
	"github.com/Clark-Hu/vibeflix/internal/session"
)

const defaultHeartbeat = 30 * time.Second

// HealthChecker is the optional database probe behind /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventReader is the read side of the query journal.
type EventReader interface {
	Recent(ctx context.Context, filters repository.QueryEventFilters) (repository.QueryEventPage, error)
	Summary(ctx context.Context, since time.Time) ([]domain.OutcomeCount, error)
}

// Deps are the collaborators a Server routes to. Health, Events and Recorder
// are optional.
type Deps struct {
	Sessions *session.Manager
	Movies   controller.MovieQuerier
	Mapper   present.Mapper
	Health   HealthChecker
	Events   EventReader
	Recorder diagnostics.Recorder
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	deps      Deps
	logger    *slog.Logger
	router    chi.Router
	httpSrv   *http.Server
	heartbeat time.Duration
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		router:    r,
		heartbeat: defaultHeartbeat,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/", s.handlePage)
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/input", s.handleInput)
		r.Get("/events", s.handleEvents)
		r.Delete("/", s.handleCloseSession)
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Origins(),
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/movies", s.handleAPIMovies)
	})

	s.router.Route("/diagnostics", func(r chi.Router) {
		r.Get("/queries", s.handleListQueryEvents)
		r.Get("/summary", s.handleQuerySummary)
	})
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx ends or serving fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.Health.HealthCheck(ctx); err != nil {
			s.logger.Warn("health check failed", slog.String("error", err.Error()))
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "database unreachable")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: s.deps.Sessions.Len()})
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

// RequestLogger logs one line per request with status, size and latency.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				level := slog.LevelInfo
				switch {
				case status >= 500:
					level = slog.LevelError
				case status >= 400:
					level = slog.LevelWarn
				}
				logger.LogAttrs(r.Context(), level, "http request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("remote", r.RemoteAddr),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
