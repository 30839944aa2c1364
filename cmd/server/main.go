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

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crash-dashboard/internal/aggregate"
	"crash-dashboard/internal/config"
	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/handlers"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/repository"
	"crash-dashboard/internal/services"
	"crash-dashboard/pkg/database"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crash-dashboard", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting crash dashboard server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"dataset_source": cfg.Dataset.Source,
	})

	metricsCollector := metrics.NewCollector("crash_dashboard")

	// Load the dataset once; everything below works on this immutable table
	var health handlers.HealthFunc
	var table *dataset.Table
	switch cfg.Dataset.Source {
	case config.SourcePostgres:
		db, err := database.NewPostgresDB(ctx, database.Config{
			DSN:             cfg.Database.DSN(),
			Database:        cfg.Database.Database,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			PoolInterval:    15 * time.Second,
		}, logger, metricsCollector)
		if err != nil {
			metricsCollector.DatasetLoadErrors.WithLabelValues(config.SourcePostgres).Inc()
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
		}
		defer db.Close()

		crashRepo := repository.NewCrashRepository(db, logger, metricsCollector)
		health = crashRepo.HealthCheck
		table = loadFromRepository(ctx, crashRepo, cfg.Database.Database, logger, metricsCollector)
	default:
		table = loadFromFile(ctx, cfg.Dataset.Path, logger, metricsCollector)
	}
	metricsCollector.DatasetRows.Set(float64(table.Len()))

	baselines := aggregate.Baselines{
		Clear: cfg.Dashboard.Baselines.Clear,
		Rain:  cfg.Dashboard.Baselines.Rain,
		Snow:  cfg.Dashboard.Baselines.Snow,
	}
	snapshot, err := aggregate.Compute(ctx, table, baselines, func(view string, elapsed time.Duration) {
		metricsCollector.AggregationDuration.WithLabelValues(view).Observe(elapsed.Seconds())
	})
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to compute dashboard views", logging.Fields{}, err)
	}

	// Initialize services
	controller := services.NewInteractionController(table, snapshot.Damage, cfg.Dashboard.DefaultTimeUnit, logger, metricsCollector)
	dashboard := services.NewDashboardService(ctx, table, snapshot, controller, services.DashboardOptions{
		PreviewRows:     cfg.Dataset.PreviewRows,
		PageSize:        cfg.Dataset.PageSize,
		FatalityLookups: cfg.Dashboard.FatalityLookups,
		Baselines:       baselines,
	}, logger, metricsCollector)

	dashboardHandler := handlers.NewDashboardHandler(dashboard, health, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID, handlers.AccessLog(logger, metricsCollector))
	dashboardHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
			"rows":    table.Len(),
		})

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}

func loadFromFile(ctx context.Context, path string, logger *logging.StructuredLogger, m *metrics.Collector) *dataset.Table {
	timer := m.NewTimer(m.DatasetLoadDuration)
	table, err := dataset.LoadFile(path)
	timer.ObserveDuration()
	if err != nil {
		m.DatasetLoadErrors.WithLabelValues(config.SourceFile).Inc()
		fields := logging.Fields{"path": path}
		var loadErr *models.LoadError
		if errors.As(err, &loadErr) {
			fields["reason"] = loadErr.Reason
		}
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load dataset", fields, err)
	}

	logger.Info(ctx, "[DATASET_LOADED] Dataset loaded", logging.Fields{
		"path":    path,
		"rows":    table.Len(),
		"columns": len(table.Columns()),
	})
	return table
}

func loadFromRepository(ctx context.Context, repo repository.CrashRepository, source string, logger *logging.StructuredLogger, m *metrics.Collector) *dataset.Table {
	timer := m.NewTimer(m.DatasetLoadDuration)
	crashes, err := repo.ListCrashes(ctx, repository.CrashFilter{})
	if err == nil {
		var table *dataset.Table
		table, err = dataset.FromCrashRecords(crashes, "postgres:"+source)
		timer.ObserveDuration()
		if err == nil {
			logger.Info(ctx, "[DATASET_LOADED] Dataset loaded", logging.Fields{
				"source": table.Source(),
				"rows":   table.Len(),
			})
			return table
		}
	}

	m.DatasetLoadErrors.WithLabelValues(config.SourcePostgres).Inc()
	logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load dataset", logging.Fields{"source": source}, err)
	return nil
}
