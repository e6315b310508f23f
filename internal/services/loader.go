package services

import (
	"context"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// DefaultBatchSize is the number of records per bulk-insert transaction.
const DefaultBatchSize = 1000

// LoadCounts tracks the final classification of every record handed to a
// BatchLoader. A record is counted exactly once: committed, skipped as a
// duplicate of an existing (station, date), or errored.
type LoadCounts struct {
	Ingested int
	Skipped  int
	Errored  int
}

// Merge adds other's counts into c.
func (c *LoadCounts) Merge(other LoadCounts) {
	c.Ingested += other.Ingested
	c.Skipped += other.Skipped
	c.Errored += other.Errored
}

// BatchLoader accumulates parsed records and persists them in fixed-size
// batches. The bulk insert is the fast path; when a batch hits a uniqueness
// conflict it is rolled back and retried one record per transaction, so only
// the conflicting records are skipped. Any non-uniqueness bulk failure does
// not downgrade: the batch is counted as errors and loading continues.
type BatchLoader struct {
	repo      repository.WeatherRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	batchSize int
	buffer    []*models.DailyRecord
	counts    LoadCounts
}

// NewBatchLoader creates a loader flushing every batchSize records.
// A non-positive batchSize falls back to DefaultBatchSize.
func NewBatchLoader(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, batchSize int) *BatchLoader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchLoader{
		repo:      repo,
		logger:    logger,
		metrics:   metricsCollector,
		batchSize: batchSize,
		buffer:    make([]*models.DailyRecord, 0, batchSize),
	}
}

// Add buffers one record, flushing when the buffer reaches the batch size.
// Persistence outcomes are absorbed into the counters; nothing a single
// record does can abort the load.
func (l *BatchLoader) Add(ctx context.Context, record *models.DailyRecord) {
	l.buffer = append(l.buffer, record)
	if len(l.buffer) >= l.batchSize {
		l.flushBatch(ctx)
	}
}

// Flush persists any buffered partial batch. Call at the end of each file.
func (l *BatchLoader) Flush(ctx context.Context) {
	if len(l.buffer) > 0 {
		l.flushBatch(ctx)
	}
}

// Counts returns the running record classification totals.
func (l *BatchLoader) Counts() LoadCounts {
	return l.counts
}

func (l *BatchLoader) flushBatch(ctx context.Context) {
	batch := l.buffer

	err := l.repo.InsertDailyBatch(ctx, batch)
	if err == nil {
		l.counts.Ingested += len(batch)
		l.metrics.IngestionRecordsTotal.Add(float64(len(batch)))
		l.metrics.IngestionBatchSize.Observe(float64(len(batch)))
		l.buffer = l.buffer[:0]
		return
	}

	if !repository.IsDuplicate(err) {
		// The batch transaction rolled back for a reason other than a
		// duplicate key. Per-record retry would hit the same failure, so
		// the whole batch is classified as errored.
		l.counts.Errored += len(batch)
		l.metrics.RecordIngestionError("persistence_error")
		l.logger.Error(ctx, "[LOAD_BATCH_ERROR] Batch insert failed", logging.Fields{
			"batch_size": len(batch),
		}, err)
		l.buffer = l.buffer[:0]
		return
	}

	// At least one record collides with an existing (station, date).
	// Retry the batch one record per transaction to isolate duplicates.
	l.metrics.BatchFallbacksTotal.Inc()
	l.logger.Debug(ctx, "[LOAD_BATCH_FALLBACK] Uniqueness conflict, retrying per record", logging.Fields{
		"batch_size": len(batch),
	})

	for _, rec := range batch {
		err := l.repo.InsertDaily(ctx, rec)
		switch {
		case err == nil:
			l.counts.Ingested++
			l.metrics.IngestionRecordsTotal.Inc()
		case repository.IsDuplicate(err):
			// Expected outcome, not an error: the record already exists.
			l.counts.Skipped++
			l.metrics.IngestionDuplicatesTotal.Inc()
		default:
			l.counts.Errored++
			l.metrics.RecordIngestionError("persistence_error")
			l.logger.Error(ctx, "[LOAD_RECORD_ERROR] Record insert failed", logging.Fields{
				"station_id": rec.StationID,
				"date":       rec.Date.Format("2006-01-02"),
			}, err)
		}
	}

	l.buffer = l.buffer[:0]
}
