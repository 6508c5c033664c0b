package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/totegamma/reputation-engine"
	"github.com/totegamma/reputation-engine/internal/config"
	"github.com/totegamma/reputation-engine/internal/infra/cache"
	"github.com/totegamma/reputation-engine/internal/infra/database"
	"github.com/totegamma/reputation-engine/internal/infra/logging"
	"github.com/totegamma/reputation-engine/internal/infra/metrics"
	"github.com/totegamma/reputation-engine/internal/infra/repository"
	"github.com/totegamma/reputation-engine/internal/infra/telemetry"
	"github.com/totegamma/reputation-engine/internal/present/rest"
	restmiddleware "github.com/totegamma/reputation-engine/internal/present/rest/middleware"
	"github.com/totegamma/reputation-engine/internal/service"
	"github.com/totegamma/reputation-engine/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(conf.Server.LogMode, conf.Server.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	logger.Info("starting reputation engine", zap.String("version", reputation.Version))

	if conf.Server.EnableTrace {
		shutdown, err := telemetry.Setup(ctx, conf.Server.TraceEndpoint, reputation.Version)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn, logger)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	var store usecase.DocumentStore = repository.NewDocumentRepository(db)
	store = cache.NewCachedStore(store, conf.Reputation.TagCacheTTL)

	var snapshot usecase.SnapshotCache
	if conf.Server.MemcachedAddr != "" {
		snapshot = cache.NewSnapshotCache(database.NewMemcached(conf.Server.MemcachedAddr), conf.Reputation.SnapshotTTL)
	}

	var (
		events usecase.EventPublisher
		signal *service.SignalService
	)
	if conf.Server.RedisAddr != "" {
		var rdb *redis.Client
		rdb, err = database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		signal = service.NewSignalService(rdb, logger)
		events = signal
	}

	ledger := usecase.NewVoteLedger(store, conf.Reputation.ListPageSize)
	reputationUsecase := usecase.NewReputationUsecase(store, ledger, snapshot, events, recorder, logger, conf.Reputation)
	validator := usecase.NewValidator(store, conf.Reputation)
	documentUsecase := usecase.NewDocumentUsecase(
		store, validator, recorder, logger, conf.Reputation,
		usecase.NewReputationHook(reputationUsecase),
	)

	handler := rest.NewHandler(
		reputationUsecase,
		documentUsecase,
		signal,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("reputation-engine"))
	}
	e.Use(restmiddleware.IdentifyCaller)
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", conf.Server.Listen))
		errCh <- e.Start(conf.Server.Listen)
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = e.Shutdown(shutdownCtx)
	}

	documentUsecase.Wait()
	return err
}
