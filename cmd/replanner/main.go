// Command replanner runs the field-service dispatch replanner: an HTTP
// API for triggering and inspecting replan runs, and an Asynq worker
// that executes them against Postgres, Redis and the optimizer,
// distance-matrix and device-location services.
package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldops/replanner/internal/api"
	"github.com/fieldops/replanner/internal/config"
	"github.com/fieldops/replanner/internal/externalsvc"
	"github.com/fieldops/replanner/internal/job"
	"github.com/fieldops/replanner/internal/logger"
	"github.com/fieldops/replanner/internal/metrics"
	"github.com/fieldops/replanner/internal/replan"
	"github.com/fieldops/replanner/internal/repository/postgres"
	"github.com/fieldops/replanner/internal/traveltime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic("build logger: " + err.Error())
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatalw("replanner exited with error", "error", err)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	sqlDB, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	db := postgres.NewDatabase(sqlDB)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
	distanceMatrix := externalsvc.NewDistanceMatrixClient(httpClient, cfg.DistanceMatrixBaseURL, cfg.DistanceMatrixAPIKey)
	optimizer := externalsvc.NewOptimizerClient(httpClient, cfg.OptimizerBaseURL, cfg.OptimizerAPIKey)
	deviceLocations := externalsvc.NewDeviceLocationClient(httpClient, cfg.DeviceLocationBaseURL, cfg.DeviceLocationAPIKey)

	cache := traveltime.NewTieredCache(
		traveltime.NewRedisTier(redisClient),
		traveltime.NewPostgresTier(sqlDB.DB),
		distanceMatrix,
		log.Desugar(),
	)

	reg := metrics.New()

	orchestrator, err := replan.New(db, optimizer, deviceLocations, cache, cfg, log, reg)
	if err != nil {
		return err
	}

	scheduler, err := job.NewJobScheduler(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer scheduler.Close()

	handlers := job.NewJobHandlers(orchestrator, log)
	mux := asynq.NewServeMux()
	handlers.RegisterHandlers(mux)

	worker := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{Concurrency: 1, Queues: map[string]int{"default": 1}},
	)

	router := api.NewRouter(scheduler, orchestrator, db)

	errCh := make(chan error, 2)
	go func() {
		log.Infow("starting asynq worker")
		errCh <- worker.Run(mux)
	}()
	go func() {
		log.Infow("starting http server", "addr", cfg.ServerAddr)
		if err := router.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", reg.Handler())
		log.Infow("starting metrics server", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, metricsMux); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infow("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		log.Errorw("a server goroutine exited", "error", err)
	}

	worker.Shutdown()
	return router.Shutdown()
}
