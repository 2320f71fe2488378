package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThiagoRGoveia/market-data-loader/internal/config"
	"github.com/ThiagoRGoveia/market-data-loader/internal/database"
	"github.com/ThiagoRGoveia/market-data-loader/internal/ingestion"
	"github.com/ThiagoRGoveia/market-data-loader/internal/metrics"
	"github.com/ThiagoRGoveia/market-data-loader/internal/models"
	"github.com/ThiagoRGoveia/market-data-loader/internal/scheduler"
	"github.com/ThiagoRGoveia/market-data-loader/internal/server"
)

type app struct {
	cfg       *config.Config
	configs   []models.DataConfig
	writer    *database.Writer
	scheduler *scheduler.Scheduler
	metrics   *metrics.Recorder
	service   *ingestion.IngestionService
}

func setup(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	configs, err := config.LoadDataConfigs(cfg.DataConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load data configs: %w", err)
	}

	store, err := database.Open(ctx, cfg.DBDriver, cfg.ConnString(), database.PoolOptions{
		MaxConns:       cfg.DBMaxConns,
		IdleTimeout:    cfg.DBIdleTimeout,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	writer := database.NewWriter(store, cfg.DBBatchSize)
	recorder := metrics.New()
	sched := scheduler.Shared(cfg.MaxConcurrentTasks)
	recorder.WatchScheduler(sched)

	service := ingestion.NewIngestionService(
		ingestion.NewFileProcessor(),
		ingestion.NewPipeline(sched, recorder),
		writer,
		recorder,
		cfg.MaxParallelConfigs,
	)

	cleanupFunc := func() {
		writer.Close()
	}

	return &app{
		cfg:       cfg,
		configs:   configs,
		writer:    writer,
		scheduler: sched,
		metrics:   recorder,
		service:   service,
	}, cleanupFunc, nil
}

func execute(ctx context.Context, a *app) error {
	if !a.writer.HealthCheck(ctx) {
		return fmt.Errorf("database health check failed, refusing to start")
	}

	if a.cfg.StatusAddr != "" {
		status := server.NewStatusService(a.writer, a.scheduler, a.service)
		go func() {
			if err := server.Serve(ctx, a.cfg.StatusAddr, server.SetupRoutes(status, a.metrics.Registry())); err != nil {
				log.Printf("ERROR: status server: %v", err)
			}
		}()
	}

	log.Printf("Starting load of %d data configs with %d concurrent tasks...", len(a.configs), a.scheduler.MaxConcurrentTasks())
	results, err := a.service.Execute(ctx, a.configs)
	if err != nil {
		return err
	}

	var done, skipped int
	for _, r := range results {
		if r.Status == models.PeriodStatusDone {
			done++
		} else {
			skipped++
		}
	}
	log.Printf("%d periods loaded, %d skipped", done, skipped)
	return nil
}

func cleanup(cleanupFunc func()) {
	log.Println("Cleaning up resources...")
	cleanupFunc()
}

func main() {
	startTime := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, cleanupFunc, err := setup(ctx)
	if err != nil {
		log.Fatal(err)
	}

	// Queries are not cancelled on a signal; closing the store ends the run.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("Received %s, shutting down...", sig)
		cancel()
		cleanup(cleanupFunc)
		os.Exit(0)
	}()

	if err := execute(ctx, a); err != nil {
		cleanup(cleanupFunc)
		log.Fatalf("Error during load: %v\n", err)
	}

	cancel()
	cleanup(cleanupFunc)
	log.Println("Load process finished.")
	log.Printf("Execution time: %s\n", time.Since(startTime))
}
