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

	"github.com/odyssey-erp/contractdesk/internal/accounting"
	"github.com/odyssey-erp/contractdesk/internal/app"
	"github.com/odyssey-erp/contractdesk/internal/contracts"
	"github.com/odyssey-erp/contractdesk/internal/erp"
	jobmetrics "github.com/odyssey-erp/contractdesk/internal/jobs"
	"github.com/odyssey-erp/contractdesk/internal/observability"
	"github.com/odyssey-erp/contractdesk/internal/platform/cache"
	"github.com/odyssey-erp/contractdesk/internal/seed"
	"github.com/odyssey-erp/contractdesk/jobs"
	"github.com/odyssey-erp/contractdesk/report"
)

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
		logger.Error("contractdesk stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("contractdesk stopped")
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics()

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		client, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable, running without cache and jobs", slog.Any("error", err))
		} else {
			redisClient = client
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	var dashboardCache *accounting.Cache
	if redisClient != nil {
		dashboardCache = accounting.NewCache(redisClient, cfg.DashboardCacheTTL)
	}

	gateway := erp.NewSimulated(erp.SimulatedConfig{
		Latency:     cfg.ERPLatency,
		SuccessRate: cfg.ERPSuccessRate,
		Seed:        cfg.ERPSeed,
		Logger:      logger.With(slog.String("component", "erp")),
	})

	svc := app.NewServices(app.ServicesConfig{
		Logger:  logger,
		Metrics: metrics,
		Gateway: gateway,
		Cache:   dashboardCache,
		Money:   erp.NewMoney(cfg.Currency, cfg.Locale),
	})
	defer svc.Close()

	if cfg.SeedSampleData {
		seed.Load(svc.Contracts, svc.Accounting)
		logger.Info("sample data loaded")
	}

	group, ctx := errgroup.WithContext(ctx)

	var (
		contractEnqueuer   contracts.SyncEnqueuer
		accountingEnqueuer accounting.SyncEnqueuer
		inspector          jobs.QueueInspector
	)
	if cfg.JobsEnabled && redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
		syncJob := jobs.NewERPSyncJob(svc.Accounting, svc.Contracts, logger.With(slog.String("component", "jobs")), jobMetrics)
		auditJob := jobs.NewLedgerAuditJob(svc.Contracts, logger.With(slog.String("component", "jobs")), jobMetrics)

		worker, err := jobs.NewWorker(jobs.WorkerConfig{
			RedisOpts:   redisOpts,
			Logger:      logger,
			Concurrency: cfg.JobsConcurrency,
			Handlers:    append(syncJob.Handlers(), jobs.TaskHandler{Type: jobs.TaskLedgerAudit, Handler: auditJob.Handle}),
			Cron: []jobs.CronRegistration{
				{Spec: cfg.LedgerAuditCron, Task: jobs.NewLedgerAuditTask()},
			},
		})
		if err != nil {
			return err
		}
		client := jobs.NewClient(redisOpts)
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("jobs client close", slog.Any("error", err))
			}
		}()
		asynqInspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := asynqInspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		contractEnqueuer, accountingEnqueuer, inspector = client, client, asynqInspector

		group.Go(func() error {
			return worker.Run(ctx)
		})
	}

	if dashboardCache != nil {
		group.Go(func() error {
			return dashboardCache.ListenForInvalidation(ctx)
		})
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ContractsHandler:  contracts.NewHandler(logger, svc.Contracts, contractEnqueuer),
		AccountingHandler: accounting.NewHandler(logger, svc.Accounting, accountingEnqueuer),
		ReportHandler:     report.NewHandler(report.NewClient(cfg.GotenbergURL), svc.Accounting, logger),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
