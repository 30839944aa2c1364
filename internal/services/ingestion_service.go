package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"crash-dashboard/internal/dataset"
	"crash-dashboard/internal/models"
	"crash-dashboard/internal/repository"
	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// IngestionService copies crash files into Postgres
type IngestionService struct {
	repo    repository.CrashRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.CrashRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every .csv and .xlsx file in dataDir, in name order
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	var files []string
	for _, pattern := range []string{"*.csv", "*.xlsx"} {
		matches, err := filepath.Glob(filepath.Join(dataDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no data files found in %s", dataDir)
	}
	sort.Strings(files)

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"data_dir":   dataDir,
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})
	return s.IngestFiles(ctx, files, batchSize)
}

// IngestFiles ingests each file independently. A file that fails to load is
// recorded in Errors and skipped; a failed insert aborts the run.
func (s *IngestionService) IngestFiles(ctx context.Context, files []string, batchSize int) (*IngestionResult, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"files":      len(files),
		"batch_size": batchSize,
		"stage":      "INITIALIZATION",
	})

	result := &IngestionResult{TotalFiles: len(files), Errors: make([]string, 0)}

	for _, path := range files {
		fileResult, err := s.ingestFile(ctx, path, batchSize)
		if err != nil {
			var loadErr *models.LoadError
			if !errors.As(err, &loadErr) {
				return nil, err
			}
			result.Errors = append(result.Errors, err.Error())
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": path,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.TotalRecords += fileResult.TotalRecords
		result.SuccessfulRecords += fileResult.SuccessfulRecords
		result.FailedRecords += fileResult.FailedRecords

		s.logger.Info(ctx, "[INGEST_FILE_SUCCESS] File ingested successfully", logging.Fields{
			"file_path":          path,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
			"stage":              "FILE_COMPLETE",
		})
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
		"stage":              "COMPLETE",
	})

	return result, nil
}

// FileIngestionResult contains per-file ingestion statistics
type FileIngestionResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
}

// ingestFile loads one file with the dashboard loader, so a file the
// dashboard would reject is never half-ingested.
func (s *IngestionService) ingestFile(ctx context.Context, path string, batchSize int) (*FileIngestionResult, error) {
	table, err := dataset.LoadFile(path)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logging.Fields{"file": filepath.Base(path)})
	result := &FileIngestionResult{}
	batch := make([]*models.CrashRecord, 0, batchSize)
	seen := make(map[string]bool)

	for _, row := range table.Rows() {
		result.TotalRecords++

		record := models.CrashRecordFromRow(row)
		id := strings.TrimSpace(record.CrashRecordID)
		if id == "" {
			result.FailedRecords++
			s.metrics.RecordIngestionError("missing_id")
			continue
		}
		if seen[id] {
			result.FailedRecords++
			s.metrics.RecordIngestionError("duplicate_id")
			log.Debug(ctx, "[INGEST_SKIP] Duplicate crash record ID", logging.Fields{"crash_record_id": id})
			continue
		}
		seen[id] = true
		record.CrashRecordID = id

		batch = append(batch, record)
		if len(batch) >= batchSize {
			if err := s.repo.CreateCrashesBatch(ctx, batch); err != nil {
				return nil, fmt.Errorf("failed to insert batch from %s: %w", path, err)
			}
			result.SuccessfulRecords += len(batch)
			log.Debug(ctx, "[INGEST_BATCH] Batch stored", logging.Fields{"count": len(batch), "stored": result.SuccessfulRecords})
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.repo.CreateCrashesBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to insert final batch from %s: %w", path, err)
		}
		result.SuccessfulRecords += len(batch)
	}

	return result, nil
}
