package services

import (
	"context"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// WeatherService handles read access to daily records for the listing API
type WeatherService struct {
	repo    repository.WeatherRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.WeatherRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetDailyRecords retrieves daily records with filtering
func (s *WeatherService) GetDailyRecords(ctx context.Context, filter repository.DailyRecordFilter) ([]*models.DailyRecord, int, error) {
	return s.repo.GetDailyRecords(ctx, filter)
}

// HealthCheck reports storage availability
func (s *WeatherService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
