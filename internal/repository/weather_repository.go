package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"weather-pipeline/internal/models"
	"weather-pipeline/pkg/database"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// WeatherRepository provides data access for daily records and annual stats
type WeatherRepository interface {
	// Ingestion operations
	InsertDailyBatch(ctx context.Context, records []*models.DailyRecord) error
	InsertDaily(ctx context.Context, record *models.DailyRecord) error

	// Aggregation operations
	DistinctStationYears(ctx context.Context, stationID string) ([]StationYear, error)
	DailyRecordsForYear(ctx context.Context, stationID string, year int) ([]*models.DailyRecord, error)
	UpsertAnnualStat(ctx context.Context, stat *models.AnnualStat) error

	// Query operations
	GetDailyRecords(ctx context.Context, filter DailyRecordFilter) ([]*models.DailyRecord, int, error)
	GetAnnualStats(ctx context.Context, filter AnnualStatFilter) ([]*models.AnnualStat, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// StationYear identifies one aggregation group.
type StationYear struct {
	StationID string `db:"station_id"`
	Year      int    `db:"year"`
}

// DailyRecordFilter defines filters for querying daily records
type DailyRecordFilter struct {
	StationID *string
	Date      *time.Time
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// AnnualStatFilter defines filters for querying annual stats
type AnnualStatFilter struct {
	StationID *string
	Year      *int
	StartYear *int
	EndYear   *int
	Limit     int
	Offset    int
}

// IsDuplicate reports whether err is a uniqueness-constraint violation.
// Only this class of failure means "record already exists"; other integrity
// errors must surface as persistence errors.
func IsDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return false
}

// weatherRepository implements WeatherRepository
type weatherRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherRepository creates a new weather repository
func NewWeatherRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WeatherRepository {
	return &weatherRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const insertDailyQuery = `
	INSERT INTO daily_records (station_id, date, max_temp, min_temp, precipitation, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// InsertDailyBatch inserts all records in a single transaction. A conflict
// on (station_id, date) fails the whole batch so the caller can downgrade
// to per-record inserts; there is deliberately no ON CONFLICT clause here.
func (r *weatherRepository) InsertDailyBatch(ctx context.Context, records []*models.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.DBQueryDuration.WithLabelValues("insert_daily_batch").Observe(duration.Seconds())
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert attempted", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertDailyQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.StationID,
			rec.Date,
			rec.MaxTemp,
			rec.MinTemp,
			rec.Precipitation,
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s/%s: %w",
				rec.StationID, rec.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// InsertDaily inserts one record in its own transaction. Used on the
// fallback path after a batch hit a uniqueness conflict.
func (r *weatherRepository) InsertDaily(ctx context.Context, record *models.DailyRecord) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, insertDailyQuery,
		record.StationID,
		record.Date,
		record.MaxTemp,
		record.MinTemp,
		record.Precipitation,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s/%s: %w",
			record.StationID, record.Date.Format("2006-01-02"), err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit record: %w", err)
	}

	return nil
}

// DistinctStationYears lists every (station, year) pair present in the
// daily records. An empty stationID enumerates all stations.
func (r *weatherRepository) DistinctStationYears(ctx context.Context, stationID string) ([]StationYear, error) {
	query := `
		SELECT station_id, EXTRACT(YEAR FROM date)::int AS year
		FROM daily_records
	`
	args := []interface{}{}

	if stationID != "" {
		query += " WHERE station_id = $1"
		args = append(args, stationID)
	}

	query += " GROUP BY station_id, EXTRACT(YEAR FROM date) ORDER BY station_id, year"

	var pairs []StationYear
	err := r.db.SelectContext(ctx, "distinct_station_years", &pairs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate station years: %w", err)
	}

	return pairs, nil
}

// DailyRecordsForYear fetches all daily records for one aggregation group.
func (r *weatherRepository) DailyRecordsForYear(ctx context.Context, stationID string, year int) ([]*models.DailyRecord, error) {
	query := `
		SELECT id, station_id, date, max_temp, min_temp, precipitation, created_at
		FROM daily_records
		WHERE station_id = $1
		  AND EXTRACT(YEAR FROM date) = $2
	`

	var records []*models.DailyRecord
	err := r.db.SelectContext(ctx, "daily_records_for_year", &records, query, stationID, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get records for %s/%d: %w", stationID, year, err)
	}

	return records, nil
}

// UpsertAnnualStat creates or overwrites the annual stat for the record's
// (station_id, year) key.
func (r *weatherRepository) UpsertAnnualStat(ctx context.Context, stat *models.AnnualStat) error {
	query := `
		INSERT INTO annual_stats (
			station_id, year,
			avg_max_temp, avg_min_temp, total_precipitation,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (station_id, year) DO UPDATE SET
			avg_max_temp = EXCLUDED.avg_max_temp,
			avg_min_temp = EXCLUDED.avg_min_temp,
			total_precipitation = EXCLUDED.total_precipitation,
			updated_at = EXCLUDED.updated_at
		RETURNING id
	`

	err := r.db.DB().QueryRowContext(ctx, query,
		stat.StationID,
		stat.Year,
		stat.AvgMaxTemp,
		stat.AvgMinTemp,
		stat.TotalPrecipitation,
		stat.CreatedAt,
		stat.UpdatedAt,
	).Scan(&stat.ID)

	if err != nil {
		return fmt.Errorf("failed to upsert annual stat: %w", err)
	}

	return nil
}

// GetDailyRecords retrieves daily records with filtering and pagination
func (r *weatherRepository) GetDailyRecords(ctx context.Context, filter DailyRecordFilter) ([]*models.DailyRecord, int, error) {
	query := `
		SELECT id, station_id, date, max_temp, min_temp, precipitation, created_at
		FROM daily_records
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StationID != nil {
		query += fmt.Sprintf(" AND station_id = $%d", argNum)
		args = append(args, *filter.StationID)
		argNum++
	}

	if filter.Date != nil {
		query += fmt.Sprintf(" AND date = $%d", argNum)
		args = append(args, *filter.Date)
		argNum++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND date >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND date <= $%d", argNum)
		args = append(args, *filter.EndDate)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_daily_records", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count daily records: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY date DESC, station_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var records []*models.DailyRecord
	err = r.db.SelectContext(ctx, "get_daily_records", &records, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get daily records: %w", err)
	}

	return records, totalCount, nil
}

// GetAnnualStats retrieves annual stats with filtering and pagination
func (r *weatherRepository) GetAnnualStats(ctx context.Context, filter AnnualStatFilter) ([]*models.AnnualStat, int, error) {
	query := `
		SELECT id, station_id, year,
		       avg_max_temp, avg_min_temp, total_precipitation,
		       created_at, updated_at
		FROM annual_stats
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StationID != nil {
		query += fmt.Sprintf(" AND station_id = $%d", argNum)
		args = append(args, *filter.StationID)
		argNum++
	}

	if filter.Year != nil {
		query += fmt.Sprintf(" AND year = $%d", argNum)
		args = append(args, *filter.Year)
		argNum++
	}

	if filter.StartYear != nil {
		query += fmt.Sprintf(" AND year >= $%d", argNum)
		args = append(args, *filter.StartYear)
		argNum++
	}

	if filter.EndYear != nil {
		query += fmt.Sprintf(" AND year <= $%d", argNum)
		args = append(args, *filter.EndYear)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := r.db.GetContext(ctx, "count_annual_stats", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count annual stats: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY year DESC, station_id"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var stats []*models.AnnualStat
	err = r.db.SelectContext(ctx, "get_annual_stats", &stats, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get annual stats: %w", err)
	}

	return stats, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *weatherRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
