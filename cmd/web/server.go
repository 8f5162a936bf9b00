package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/tourney-live/internal/archive"
	"github.com/AdamBeresnev/tourney-live/internal/config"
	"github.com/AdamBeresnev/tourney-live/internal/db"
	"github.com/AdamBeresnev/tourney-live/internal/metrics"
	"github.com/AdamBeresnev/tourney-live/internal/middleware"
	"github.com/AdamBeresnev/tourney-live/internal/service"
	"github.com/AdamBeresnev/tourney-live/internal/session"
	"github.com/AdamBeresnev/tourney-live/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const connectTimeout = 5 * time.Second

func withDatabase(c *cli.Context, fn func(*config.Config, *slog.Logger, *sqlx.DB) error) error {
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	database, err := db.Open(c.Context, cfg.Database.Driver, cfg.Database.DSN, connectTimeout)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(cfg, logger, database)
}

func runServe(c *cli.Context) error {
	return withDatabase(c, func(cfg *config.Config, logger *slog.Logger, database *sqlx.DB) error {
		if err := db.RunMigrations(database); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database ready", "driver", cfg.Database.Driver)

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger, database)
	})
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, database *sqlx.DB) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hub := session.NewHub(cfg.Sessions.SubscriberBuffer, m, logger)
	tournamentStore := store.NewTournamentStore(database)

	var archiver store.Archiver
	if cfg.Archive.Bucket != "" {
		a, err := archive.NewS3Archiver(ctx, archive.Config(cfg.Archive))
		if err != nil {
			return err
		}
		archiver = a
		logger.Info("archiving completed tournaments", "bucket", cfg.Archive.Bucket)
	}
	writer := store.NewWriteBehind(tournamentStore, archiver, m, logger)

	svc := service.NewTournamentService(
		service.WithPublisher(hub),
		service.WithPersister(writer),
		service.WithLogger(logger),
		service.WithMetrics(m),
		service.WithTimerDefault(cfg.Engine.TimerDuration),
	)
	saved, err := tournamentStore.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore tournaments: %w", err)
	}
	for _, t := range saved {
		svc.Restore(t)
	}
	logger.Info("tournaments restored", "count", len(saved))

	sessions := session.NewManager(hub,
		session.WithStaleThreshold(cfg.Sessions.StaleAfter),
		session.WithMetrics(m),
		session.WithLogger(logger),
	)

	sessionManager := scs.New()
	sessionManager.Lifetime = 24 * time.Hour
	if database.DriverName() == db.DriverSQLite {
		sessionManager.Store = sqlite3store.New(database.DB)
	} else {
		sessionManager.Store = memstore.New()
	}

	app := &application{
		cfg:            cfg,
		logger:         logger,
		svc:            svc,
		sessions:       sessions,
		hub:            hub,
		sessionManager: sessionManager,
		metrics:        m,
		limiter:        middleware.NewIPRateLimiter(rate.Limit(cfg.Sessions.PairRate), cfg.Sessions.PairBurst),
	}

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     app.routes(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		ErrorLog:    slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	// Persistence outlives the server so writes made during shutdown are flushed
	persistCtx, stopPersist := context.WithCancel(context.WithoutCancel(ctx))
	defer stopPersist()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		hub.Close()
		stopPersist()
		return err
	})
	g.Go(func() error { return sessions.Run(gctx, cfg.Sessions.SweepInterval) })
	g.Go(func() error { return svc.RunTimers(gctx, cfg.Engine.TickInterval) })
	g.Go(func() error { return writer.Run(persistCtx) })

	err = g.Wait()
	logger.Info("application exited", "error", err)
	return err
}
