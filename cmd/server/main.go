package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Clark-Hu/vibeflix/internal/config"
	"github.com/Clark-Hu/vibeflix/internal/diagnostics"
	httpserver "github.com/Clark-Hu/vibeflix/internal/http"
	"github.com/Clark-Hu/vibeflix/internal/logger"
	"github.com/Clark-Hu/vibeflix/internal/present"
	"github.com/Clark-Hu/vibeflix/internal/render"
	"github.com/Clark-Hu/vibeflix/internal/repository"
	"github.com/Clark-Hu/vibeflix/internal/session"
	"github.com/Clark-Hu/vibeflix/internal/store"
	"github.com/Clark-Hu/vibeflix/internal/tmdb"
)

const (
	sentryFlushTime    = 2 * time.Second
	journalPrunePeriod = time.Hour
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Format:      cfg.LogFormat,
		Environment: cfg.AppEnv,
		Level:       logger.ParseLevel(cfg.LogLevel),
		AddSource:   true,
	}).With(slog.String("service", "vibeflix"))
	slog.SetDefault(log)

	recorders := []diagnostics.Recorder{diagnostics.NewLog(log)}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.AppEnv,
			AttachStacktrace: true,
		}); err != nil {
			return err
		}
		defer sentry.Flush(sentryFlushTime)
		recorders = append(recorders, diagnostics.NewSentry(nil))
	}

	deps := httpserver.Deps{
		Mapper: present.Mapper{
			ImageBaseURL:      cfg.ImageBaseURL,
			PosterPlaceholder: cfg.PosterPlaceholder,
		},
	}

	if cfg.DBURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		st, err := store.New(dbCtx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 log,
		})
		if err != nil {
			cancel()
			return err
		}
		defer st.Close()

		cancel()
		if err := st.Migrate(); err != nil {
			return err
		}

		repo := repository.New(st)
		journal := diagnostics.NewJournal(repo.QueryEvents, log)
		recorders = append(recorders, journal)
		go journal.RunPruner(ctx, journalPrunePeriod, cfg.JournalRetention())

		deps.Health = st
		deps.Events = repo.QueryEvents
	} else {
		log.Info("DB_URL not set; query journal disabled")
	}
	deps.Recorder = diagnostics.Multi(recorders...)

	if !cfg.APIKeyConfigured() {
		log.Warn("TMDB_API_KEY is not set; pages will show the configuration message")
	}

	movies, err := tmdb.NewClient(tmdb.Options{
		BaseURL:   cfg.TMDBBaseURL,
		APIKey:    cfg.TMDBAPIKey,
		Language:  cfg.TMDBLanguage,
		Timeout:   cfg.TMDBTimeout(),
		RateLimit: cfg.TMDBRateLimit,
		RateBurst: cfg.TMDBRateBurst,
		Logger:    log,
	})
	if err != nil {
		return err
	}
	deps.Movies = movies

	tpl, err := render.LoadTemplate(cfg.PageTemplatePath)
	if err != nil {
		return err
	}

	sessions := session.NewManager(session.Options{
		Template:         tpl,
		Movies:           movies,
		Mapper:           deps.Mapper,
		APIKeyConfigured: cfg.APIKeyConfigured(),
		Debounce:         cfg.Debounce(),
		Recorder:         deps.Recorder,
		TTL:              cfg.SessionTTL(),
		Logger:           log,
	})
	go sessions.Run(ctx)
	deps.Sessions = sessions

	// Event streams only end when their session does; close sessions before
	// the HTTP server waits on in-flight requests.
	context.AfterFunc(ctx, sessions.Shutdown)

	server := httpserver.New(cfg, deps, log)
	log.Info("listening", slog.String("addr", cfg.Addr()))

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case serveErr = <-serverErrCh:
	case <-ctx.Done():
	}

	sessions.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("graceful shutdown error", slog.String("error", err.Error()))
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	log.Info("server stopped")
	return nil
}
