package services

import (
	"context"
	"fmt"
	"time"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// StatisticsService derives annual summaries from persisted daily records.
// Aggregation is idempotent: re-running it upserts the same values for an
// unchanged data set, touching only updated_at.
type StatisticsService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// AggregationResult contains the counters for one aggregation run.
type AggregationResult struct {
	StationsProcessed int
	YearsProcessed    int
	StatsCalculated   int
	Errors            int
	Duration          time.Duration
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// AggregateAll calculates and upserts annual stats for every (station, year)
// pair present in the daily records.
func (s *StatisticsService) AggregateAll(ctx context.Context) (*AggregationResult, error) {
	return s.aggregate(ctx, "")
}

// AggregateStation restricts aggregation to a single station.
func (s *StatisticsService) AggregateStation(ctx context.Context, stationID string) (*AggregationResult, error) {
	return s.aggregate(ctx, stationID)
}

func (s *StatisticsService) aggregate(ctx context.Context, stationID string) (*AggregationResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[STATS_START] Starting statistics calculation", logging.Fields{
		"station_id": stationID,
	})

	pairs, err := s.repo.DistinctStationYears(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate station years: %w", err)
	}

	s.logger.Info(ctx, "[STATS_GROUPS] Found station-year groups", logging.Fields{
		"group_count": len(pairs),
	})

	result := &AggregationResult{}
	stations := make(map[string]struct{})
	years := make(map[int]struct{})

	for _, pair := range pairs {
		stations[pair.StationID] = struct{}{}
		years[pair.Year] = struct{}{}

		if err := s.aggregateGroup(ctx, pair.StationID, pair.Year); err != nil {
			result.Errors++
			s.metrics.AggregationErrorsTotal.Inc()
			s.logger.Error(ctx, "[STATS_GROUP_ERROR] Failed to aggregate group", logging.Fields{
				"station_id": pair.StationID,
				"year":       pair.Year,
			}, err)
			continue
		}

		result.StatsCalculated++
		s.metrics.AggregationGroupsTotal.Inc()
	}

	result.StationsProcessed = len(stations)
	result.YearsProcessed = len(years)
	result.Duration = time.Since(startTime)
	s.metrics.AggregationDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[STATS_COMPLETE] Statistics calculation completed", logging.Fields{
		"stations_processed": result.StationsProcessed,
		"years_processed":    result.YearsProcessed,
		"stats_calculated":   result.StatsCalculated,
		"errors":             result.Errors,
		"duration_seconds":   result.Duration.Seconds(),
	})

	return result, nil
}

// aggregateGroup computes and upserts the annual stat for one group.
func (s *StatisticsService) aggregateGroup(ctx context.Context, stationID string, year int) error {
	timer := time.Now()
	defer func() {
		s.metrics.StatsCalculationDuration.Observe(time.Since(timer).Seconds())
	}()

	records, err := s.repo.DailyRecordsForYear(ctx, stationID, year)
	if err != nil {
		return fmt.Errorf("failed to fetch group records: %w", err)
	}

	stat := buildAnnualStat(stationID, year, records)

	if err := s.repo.UpsertAnnualStat(ctx, stat); err != nil {
		return fmt.Errorf("failed to upsert annual stat: %w", err)
	}

	return nil
}

// buildAnnualStat derives the summary values for one (station, year) group.
// Sentinel values are excluded from every calculation; a field whose values
// are all sentinels stays nil rather than becoming zero.
func buildAnnualStat(stationID string, year int, records []*models.DailyRecord) *models.AnnualStat {
	var (
		maxSum, maxCount       int
		minSum, minCount       int
		precipSum, precipCount int
	)

	for _, rec := range records {
		if rec.MaxTemp != models.SentinelMissing {
			maxSum += rec.MaxTemp
			maxCount++
		}
		if rec.MinTemp != models.SentinelMissing {
			minSum += rec.MinTemp
			minCount++
		}
		if rec.Precipitation != models.SentinelMissing {
			precipSum += rec.Precipitation
			precipCount++
		}
	}

	now := time.Now().UTC()
	stat := &models.AnnualStat{
		StationID: stationID,
		Year:      year,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if maxCount > 0 {
		v := float64(maxSum) / float64(maxCount) / 10.0
		stat.AvgMaxTemp = &v
	}
	if minCount > 0 {
		v := float64(minSum) / float64(minCount) / 10.0
		stat.AvgMinTemp = &v
	}
	if precipCount > 0 {
		v := float64(precipSum) / 100.0
		stat.TotalPrecipitation = &v
	}

	return stat
}

// GetAnnualStats retrieves annual stats with filtering
func (s *StatisticsService) GetAnnualStats(ctx context.Context, filter repository.AnnualStatFilter) ([]*models.AnnualStat, int, error) {
	return s.repo.GetAnnualStats(ctx, filter)
}
