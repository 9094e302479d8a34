// Command ecopoints runs the community cleanup events service and its
// maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/ecopoints/internal/config"
	"github.com/Shivanand-hulikatti/ecopoints/internal/database"
	"github.com/Shivanand-hulikatti/ecopoints/internal/directory"
	"github.com/Shivanand-hulikatti/ecopoints/internal/enrollment"
	"github.com/Shivanand-hulikatti/ecopoints/internal/handler"
	"github.com/Shivanand-hulikatti/ecopoints/internal/leaderboard"
	"github.com/Shivanand-hulikatti/ecopoints/internal/ledger"
	"github.com/Shivanand-hulikatti/ecopoints/internal/logging"
	"github.com/Shivanand-hulikatti/ecopoints/internal/metrics"
	"github.com/Shivanand-hulikatti/ecopoints/internal/notify"
	"github.com/Shivanand-hulikatti/ecopoints/internal/reconcile"
	"github.com/Shivanand-hulikatti/ecopoints/internal/registry"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/ecopoints/internal/repository/sqlite"
	"github.com/Shivanand-hulikatti/ecopoints/internal/reward"
	"github.com/Shivanand-hulikatti/ecopoints/internal/telemetry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ecopoints",
		Short:         "Community cleanup events, rewards and leaderboards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Parse()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newReconcileCmd(a),
		newUserCmd(a),
	)
	return root
}

// openStore connects to the configured backend and applies migrations.
func (a *app) openStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.Driver {
	case config.DriverSQLite:
		store, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.logger.Info("opened sqlite store", zap.String("path", a.cfg.SQLitePath))
		return store, nil
	default:
		pool, err := database.NewPool(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		store, err := postgres.Open(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.logger.Info("connected to postgres", zap.String("host", a.cfg.Postgres.Host), zap.String("db", a.cfg.Postgres.DBName))
		return store, nil
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	// ── Wire up components ───────────────────────────────────────────────
	dispatcher := notify.NewDispatcher(notify.LogSink{Logger: logger}, cfg.NotifyQueueSize, logger, m)
	dir := directory.NewCached(directory.NewStore(store), cfg.DirectoryCacheSize, cfg.DirectoryCacheTTL)
	pointsLedger := ledger.New(store, dir, cfg.ActionPoints, dispatcher, m, logger)
	distributor := reward.NewDistributor(pointsLedger, m, logger)
	events := registry.New(store, dir, distributor, dispatcher, m, logger,
		registry.WithDefaultReward(cfg.DefaultRewardPoints))
	enroll := enrollment.NewManager(store, m, logger)
	board := leaderboard.New(store, loc, nil)
	reconciler := reconcile.New(store, m, logger)

	h := handler.New(events, enroll, pointsLedger, board, store, logger)
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(h, logger, handler.RouterConfig{
			RateLimit: handler.RateLimitConfig{
				RequestsPerMinute: cfg.RateLimitPerMinute,
				Burst:             cfg.RateLimitBurst,
			},
			Gatherer: prometheus.DefaultGatherer,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return reconciler.Schedule(gctx, cfg.ReconcileSchedule) })

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
