package services

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// DirectoryNotFoundError is the only run-fatal ingestion failure: the target
// directory does not exist, so the run fails before any processing begins.
type DirectoryNotFoundError struct {
	Path string
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("data directory not found: %s", e.Path)
}

// IngestionService drives the file-to-database pipeline: file discovery,
// line parsing, and batched loading.
type IngestionService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains the aggregate counters for one ingestion run.
type IngestionResult struct {
	FilesProcessed  int
	RecordsIngested int
	RecordsSkipped  int
	Errors          int
	Duration        time.Duration
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// IngestDirectory ingests every per-station file in dataDir. The station ID
// is each file's base name without extension. A file that cannot be read or
// a line that cannot be parsed is counted as an error and does not abort
// the run; already-committed batches stay committed.
func (s *IngestionService) IngestDirectory(ctx context.Context, dataDir string, batchSize int) (*IngestionResult, error) {
	startTime := time.Now()

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		return nil, &DirectoryNotFoundError{Path: dataDir}
	}

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	s.logger.Info(ctx, "[INGEST_FILES] Found data files", logging.Fields{
		"file_count": len(files),
	})

	result := &IngestionResult{}

	for _, filePath := range files {
		counts, parseErrors, err := s.ingestFile(ctx, filePath, batchSize)

		result.RecordsIngested += counts.Ingested
		result.RecordsSkipped += counts.Skipped
		result.Errors += counts.Errored + parseErrors

		if err != nil {
			result.Errors++
			s.metrics.RecordIngestionError("file_error")
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": filePath,
			}, err)
			continue
		}

		result.FilesProcessed++
		s.logger.Info(ctx, "[INGEST_FILE_COMPLETE] File ingested", logging.Fields{
			"file_path":        filePath,
			"records_ingested": counts.Ingested,
			"records_skipped":  counts.Skipped,
			"errors":           counts.Errored + parseErrors,
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"files_processed":  result.FilesProcessed,
		"records_ingested": result.RecordsIngested,
		"records_skipped":  result.RecordsSkipped,
		"errors":           result.Errors,
		"duration_seconds": result.Duration.Seconds(),
	})

	return result, nil
}

// ingestFile streams one station file through the parser and loader.
// Returns the loader counts and the number of unparseable lines; err is
// non-nil only when the file itself could not be opened or read.
func (s *IngestionService) ingestFile(ctx context.Context, filePath string, batchSize int) (LoadCounts, int, error) {
	fileName := filepath.Base(filePath)
	stationID := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	file, err := os.Open(filePath)
	if err != nil {
		return LoadCounts{}, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	s.logger.Debug(ctx, "[INGEST_FILE] Processing file", logging.Fields{
		"file_path":  filePath,
		"station_id": stationID,
	})

	loader := NewBatchLoader(s.repo, s.logger, s.metrics, batchSize)
	parseErrors := 0

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		record, err := models.ParseDailyLine(stationID, line)
		if err != nil {
			parseErrors++
			s.metrics.RecordIngestionError("parse_error")
			s.logger.Warn(ctx, "[INGEST_PARSE_ERROR] Skipping malformed line", logging.Fields{
				"file_path": filePath,
				"error":     err.Error(),
			})
			continue
		}

		loader.Add(ctx, record)
	}

	// The final partial batch still has to go through the loader.
	loader.Flush(ctx)

	if err := scanner.Err(); err != nil {
		return loader.Counts(), parseErrors, fmt.Errorf("error reading file: %w", err)
	}

	return loader.Counts(), parseErrors, nil
}
