package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"crash-dashboard/internal/config"
	"crash-dashboard/internal/repository"
	"crash-dashboard/internal/services"
	"crash-dashboard/pkg/database"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

func main() {
	dataDir := flag.String("data-dir", "", "Directory of .csv/.xlsx crash files (default: the configured DATASET_PATH file)")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert per transaction")
	replace := flag.Bool("replace", false, "Delete all stored crashes before ingesting")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("crash-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting crash data ingestion", logging.Fields{
		"version":    "1.0.0",
		"data_dir":   *dataDir,
		"files":      flag.Args(),
		"batch_size": *batchSize,
		"replace":    *replace,
	})

	metricsCollector := metrics.NewCollector("crash_ingester")

	db, err := database.NewPostgresDB(ctx, database.Config{
		DSN:             cfg.Database.DSN(),
		Database:        cfg.Database.Database,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	crashRepo := repository.NewCrashRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(crashRepo, logger, metricsCollector)

	if *replace {
		deleted, err := crashRepo.DeleteAll(ctx)
		if err != nil {
			logger.Fatal(ctx, "[INGESTER_ERROR] Failed to clear crashes table", logging.Fields{}, err)
		}
		logger.Info(ctx, "[INGESTER_REPLACE] Cleared stored crashes", logging.Fields{"deleted": deleted})
	}

	var result *services.IngestionResult
	switch {
	case *dataDir != "":
		result, err = ingestionService.IngestDirectory(ctx, *dataDir, *batchSize)
	case flag.NArg() > 0:
		result, err = ingestionService.IngestFiles(ctx, flag.Args(), *batchSize)
	default:
		result, err = ingestionService.IngestFiles(ctx, []string{cfg.Dataset.Path}, *batchSize)
	}
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"error": err.Error(),
		}, err)
	}

	stored, err := crashRepo.CountCrashes(ctx, repository.CrashFilter{})
	if err != nil {
		logger.Warn(ctx, "[INGESTER_COUNT] Could not count stored crashes", logging.Fields{"error": err.Error()})
		stored = -1
	}
	printSummary(os.Stdout, result, stored)

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
	})
}

const maxListedErrors = 10

func printSummary(w io.Writer, result *services.IngestionResult, stored int) {
	rate := "n/a"
	if secs := result.Duration.Seconds(); secs > 0 {
		rate = fmt.Sprintf("%.2f", float64(result.SuccessfulRecords)/secs)
	}
	storedText := "unknown"
	if stored >= 0 {
		storedText = strconv.Itoa(stored)
	}

	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"Ingestion", "Value"})
	t.SetAutoFormatHeaders(false)
	t.AppendBulk([][]string{
		{"Files", strconv.Itoa(result.TotalFiles)},
		{"Rows read", strconv.Itoa(result.TotalRecords)},
		{"Rows stored", strconv.Itoa(result.SuccessfulRecords)},
		{"Rows skipped", strconv.Itoa(result.FailedRecords)},
		{"Duration", result.Duration.String()},
		{"Rows/second", rate},
		{"Crashes in table", storedText},
	})
	t.Render()

	if len(result.Errors) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped files (%d):\n", len(result.Errors))
	for i, msg := range result.Errors {
		if i == maxListedErrors {
			fmt.Fprintf(w, "  ... and %d more\n", len(result.Errors)-maxListedErrors)
			break
		}
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
