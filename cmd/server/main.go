package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"eligibility/internal/audit"
	"eligibility/internal/bulk"
	checkservice "eligibility/internal/check/service"
	checkstore "eligibility/internal/check/store"
	"eligibility/internal/conflict"
	"eligibility/internal/consumer"
	consumermetrics "eligibility/internal/consumer/metrics"
	"eligibility/internal/engine"
	enginemetrics "eligibility/internal/engine/metrics"
	"eligibility/internal/platform/config"
	"eligibility/internal/platform/httpserver"
	"eligibility/internal/platform/logger"
	"eligibility/internal/platform/postgres"
	platformredis "eligibility/internal/platform/redis"
	"eligibility/internal/queue"
	"eligibility/internal/resultcache"
	"eligibility/internal/sources/events"
	"eligibility/internal/sources/legacy"
	"eligibility/internal/sources/modern"
	"eligibility/internal/sources/snapshot"
	httptransport "eligibility/internal/transport/http"
	"eligibility/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "eligibility: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.RunMigrations(ctx, db, cfg.Database.MigrationsDir, log); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	auditor, err := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
	if err != nil {
		return err
	}
	defer auditor.Close()

	stream := queue.NewStream(redisClient, cfg.Queue, log)
	if err := stream.EnsureGroup(ctx); err != nil {
		return err
	}

	checks := checkstore.NewPostgres(db)
	groups := bulk.NewPostgres(db)
	snapshots := snapshot.NewPostgres(db)
	eventFeed := events.NewPostgres(db)
	conflicts := conflict.NewPostgres(db)
	runner := tx.NewSQLRunner(db)

	cache := resultcache.New(
		resultcache.NewPostgresStore(db),
		auditor,
		cfg.Engine.HashCheckDays,
		resultcache.NewMetrics(),
	)

	eng := engine.New(engine.Deps{
		Checks:    checks,
		Cache:     cache,
		Snapshots: snapshots,
		Legacy:    legacy.NewHTTPClient(cfg.Gateway.LegacyURL, cfg.Gateway.LegacyTimeout, log),
		Modern:    modern.NewHTTPClient(cfg.Gateway.ModernBaseURL, cfg.Gateway.ModernTimeout, log),
		Events:    eventFeed,
		Conflicts: conflicts,
		Auditor:   auditor,
		Runner:    runner,
		Engine:    cfg.Engine,
		Gateway:   cfg.Gateway,
		Metrics:   enginemetrics.New(),
		Logger:    log.Named("engine"),
	})

	checkSvc := checkservice.New(checks, cache, stream, runner, auditor, log.Named("checks"))
	bulkSvc := bulk.New(groups, checks, cache, stream, runner, auditor, cfg.Engine.BulkDeleteMax, log.Named("bulk"))

	worker := consumer.New(consumer.Deps{
		Queue:     stream,
		Processor: eng,
		Checks:    checks,
		Groups:    bulkSvc,
		Auditor:   auditor,
		Config:    cfg.Queue,
		Metrics:   consumermetrics.New(),
		Logger:    log.Named("consumer"),
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Checks:        httptransport.NewCheckHandler(checkSvc, log.Named("http")),
		Bulk:          httptransport.NewBulkHandler(bulkSvc, log.Named("http")),
		JWTSigningKey: cfg.Server.JWTSigningKey,
		HealthChecks: map[string]httptransport.HealthCheck{
			"postgres": db.PingContext,
			"redis":    redisClient.Health,
		},
		Logger: log.Named("http"),
	})
	server := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("queue consumer starting", zap.Int("workers", cfg.Queue.Workers))
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			return fmt.Errorf("queue consumer: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
