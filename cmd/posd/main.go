// Command posd runs a POS terminal: the JSON API for the UI shell, the sync
// engine and, when enabled, the background job worker.
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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/docstore"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer"
	"github.com/odyssey-erp/odyssey-pos/internal/syncer/remote"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("posd stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("posd stopped")
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := observability.NewMetrics()
	services := app.NewServices(store, cfg)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable, sync events and jobs disabled", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	var engine *syncer.Engine
	if cfg.SyncEnabled {
		client, err := remote.NewClient(remote.Config{
			BaseURL:       cfg.RemoteURL,
			APIKey:        cfg.RemoteAPIKey,
			Timeout:       cfg.RemoteTimeout,
			RatePerSecond: cfg.RemoteRatePerSec,
		})
		if err != nil {
			return err
		}
		var publisher syncer.Publisher
		if redisClient != nil {
			publisher = syncer.NewRedisPublisher(redisClient, cfg.SyncEventsChannel)
		}
		engine = syncer.NewEngine(store, client, app.EngineConfig(cfg), logger, syncer.NewMetrics(metrics.Registerer()), publisher)
	}

	var worker *jobs.Worker
	jobHandler := jobs.NewHandler(nil, logger)
	if cfg.JobsEnabled && redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB}
		worker, err = newWorker(cfg, redisOpts, services, engine, logger, jobmetrics.NewMetrics(metrics.Registerer()))
		if err != nil {
			return err
		}
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	params := app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Handlers:   services.Handlers(logger, cfg.WorkspaceID),
		Audit:      app.NewAuditHandler(logger, services.Audit),
		JobHandler: jobHandler,
		Metrics:    metrics,
	}
	if engine != nil {
		params.Sync = syncer.NewHandler(logger, engine)
	}
	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           app.NewRouter(params),
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	if engine != nil {
		if err := engine.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if engine != nil {
		g.Go(func() error {
			<-gctx.Done()
			engine.Stop()
			return nil
		})
	}
	if worker != nil {
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

func openStore(ctx context.Context, cfg *app.Config, logger *slog.Logger) (docstore.Store, error) {
	if cfg.StoreDriver == app.StoreDriverMemory {
		logger.Warn("using the memory store, data is lost on exit")
		return docstore.NewMemory(), nil
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 8, MaxConnIdleTime: 5 * time.Minute})
	if err != nil {
		return nil, err
	}
	store := docstore.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func newWorker(cfg *app.Config, redisOpts asynq.RedisClientOpt, services *app.Services, engine *syncer.Engine, logger *slog.Logger, metrics *jobmetrics.Metrics) (*jobs.Worker, error) {
	var syncJob *jobs.SyncRunJob
	if engine != nil {
		syncJob = jobs.NewSyncRunJob(engine, logger, metrics)
	}
	nightly, err := jobs.NightlyReconcile(cfg.WorkspaceID)
	if err != nil {
		return nil, err
	}
	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: jobs.Handlers(
			syncJob,
			jobs.NewGiftCardsBulkJob(services.GiftCards, logger, metrics),
			jobs.NewStockReconcileJob(services.Inventory, cfg.WorkspaceID, logger, metrics),
		),
		Cron: []jobs.CronRegistration{nightly},
	})
}
