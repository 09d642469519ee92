// Package entrypoint bootstraps the batch worker: database, task queues,
// cron schedules and the metrics listener, with signal-driven graceful
// shutdown.
package entrypoint

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/openlibris/circulate/internal/config"
	"github.com/openlibris/circulate/internal/coverage"
	"github.com/openlibris/circulate/internal/database"
	"github.com/openlibris/circulate/internal/database/identifiers"
	"github.com/openlibris/circulate/internal/search"
	"github.com/openlibris/circulate/internal/tasks"
)

// Run starts the worker and blocks until SIGINT/SIGTERM.
func Run(cfg *config.Config, version string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("can't initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("circulate worker starting",
		zap.String("version", version),
		zap.String("database", cfg.Database.Path))

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	provider := coverage.NewProvider(db.DB, log, coverage.Options{
		BatchSize: cfg.Coverage.BatchSize,
		Policy: identifiers.TraversalPolicy{
			Levels:    cfg.Traversal.Levels,
			Threshold: cfg.Traversal.Threshold,
			Cutoff:    cfg.Traversal.Cutoff,
		},
	})

	searchService := search.NewMemoryService()
	indexer := search.NewIndexer(
		searchService,
		search.NewRevisionDirectory(),
		search.NewDocumentBuilder(db.DB),
		cfg.Search.Base,
		cfg.Search.Version,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:           cfg.Tasks.Workers,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}, log)
		if err != nil {
			return err
		}
		defer taskClient.Close()

		taskClient.Register(
			tasks.NewRecomputeEquivalentsQueue(provider, log),
			tasks.NewBackfillCoverageQueue(provider, log),
			tasks.NewReindexWorksQueue(indexer, log),
		)
		go taskClient.Start(ctx)
	}

	scheduler := cron.New()
	if cfg.Coverage.Enabled && taskClient != nil {
		_, err := scheduler.AddFunc(cfg.Coverage.Schedule, func() {
			if _, err := taskClient.Add(tasks.RecomputeEquivalentsTask{}).Save(); err != nil {
				log.Error("could not enqueue recompute task", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid coverage schedule %q: %w", cfg.Coverage.Schedule, err)
		}
	}
	if cfg.Search.Enabled && taskClient != nil {
		_, err := scheduler.AddFunc(cfg.Search.ReindexSchedule, func() {
			if _, err := taskClient.Add(tasks.ReindexWorksTask{}).Save(); err != nil {
				log.Error("could not enqueue reindex task", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("invalid reindex schedule %q: %w", cfg.Search.ReindexSchedule, err)
		}
	}
	scheduler.Start()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		})
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Metrics.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			log.Info("metrics listener started", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-shutdownCtx.Done():
	}

	cancel()
	if taskClient != nil {
		taskClient.Stop(shutdownCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics listener shutdown", zap.Error(err))
		}
	}

	log.Info("shutdown complete")
	return nil
}
