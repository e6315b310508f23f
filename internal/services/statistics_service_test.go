package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weather-pipeline/internal/models"
)

func TestBuildAnnualStat(t *testing.T) {
	records := []*models.DailyRecord{
		record("S1", "19850101", 100, 40, 100),
		record("S1", "19850102", 150, 60, 250),
		record("S1", "19850103", models.SentinelMissing, models.SentinelMissing, models.SentinelMissing),
	}

	stat := buildAnnualStat("S1", 1985, records)

	assert.Equal(t, "S1", stat.StationID)
	assert.Equal(t, 1985, stat.Year)

	// Mean of 100 and 150 tenths, sentinel excluded, converted to Celsius.
	require.NotNil(t, stat.AvgMaxTemp)
	assert.Equal(t, 12.5, *stat.AvgMaxTemp)

	require.NotNil(t, stat.AvgMinTemp)
	assert.Equal(t, 5.0, *stat.AvgMinTemp)

	// Sum of 100 and 250 hundredths of a centimeter.
	require.NotNil(t, stat.TotalPrecipitation)
	assert.Equal(t, 3.5, *stat.TotalPrecipitation)
}

func TestBuildAnnualStatAllSentinels(t *testing.T) {
	records := []*models.DailyRecord{
		record("S1", "19850101", models.SentinelMissing, models.SentinelMissing, models.SentinelMissing),
		record("S1", "19850102", models.SentinelMissing, models.SentinelMissing, models.SentinelMissing),
	}

	stat := buildAnnualStat("S1", 1985, records)

	// Absent, never zero.
	assert.Nil(t, stat.AvgMaxTemp)
	assert.Nil(t, stat.AvgMinTemp)
	assert.Nil(t, stat.TotalPrecipitation)
}

func TestBuildAnnualStatMixedSentinelsPerField(t *testing.T) {
	records := []*models.DailyRecord{
		record("S1", "19850101", 100, models.SentinelMissing, models.SentinelMissing),
		record("S1", "19850102", models.SentinelMissing, models.SentinelMissing, 50),
	}

	stat := buildAnnualStat("S1", 1985, records)

	require.NotNil(t, stat.AvgMaxTemp)
	assert.Equal(t, 10.0, *stat.AvgMaxTemp)
	assert.Nil(t, stat.AvgMinTemp)
	require.NotNil(t, stat.TotalPrecipitation)
	assert.Equal(t, 0.5, *stat.TotalPrecipitation)
}

func seedTwoStations(t *testing.T, repo *fakeRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.InsertDaily(ctx, record("S1", "19850101", 100, 40, 100)))
	require.NoError(t, repo.InsertDaily(ctx, record("S1", "19850102", 150, 60, 250)))
	require.NoError(t, repo.InsertDaily(ctx, record("S1", "19860101", 200, 80, 0)))
	require.NoError(t, repo.InsertDaily(ctx, record("S2", "19850101", -50, -100, 10)))
}

func TestAggregateAll(t *testing.T) {
	repo := newFakeRepository()
	seedTwoStations(t, repo)
	svc := NewStatisticsService(repo, testLogger, testMetrics)

	result, err := svc.AggregateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.StationsProcessed)
	assert.Equal(t, 2, result.YearsProcessed)
	assert.Equal(t, 3, result.StatsCalculated)
	assert.Equal(t, 0, result.Errors)
	assert.Len(t, repo.stats, 3)

	s1Stat := repo.stats[statKey("S1", 1985)]
	require.NotNil(t, s1Stat)
	require.NotNil(t, s1Stat.AvgMaxTemp)
	assert.Equal(t, 12.5, *s1Stat.AvgMaxTemp)

	s2Stat := repo.stats[statKey("S2", 1985)]
	require.NotNil(t, s2Stat)
	require.NotNil(t, s2Stat.AvgMaxTemp)
	assert.Equal(t, -5.0, *s2Stat.AvgMaxTemp)
}

func TestAggregateStation(t *testing.T) {
	repo := newFakeRepository()
	seedTwoStations(t, repo)
	svc := NewStatisticsService(repo, testLogger, testMetrics)

	result, err := svc.AggregateStation(context.Background(), "S1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.StationsProcessed)
	assert.Equal(t, 2, result.YearsProcessed)
	assert.Equal(t, 2, result.StatsCalculated)
	assert.Len(t, repo.stats, 2)
	assert.NotContains(t, repo.stats, statKey("S2", 1985))
}

func TestAggregateIsIdempotent(t *testing.T) {
	repo := newFakeRepository()
	seedTwoStations(t, repo)
	svc := NewStatisticsService(repo, testLogger, testMetrics)
	ctx := context.Background()

	_, err := svc.AggregateAll(ctx)
	require.NoError(t, err)

	first := *repo.stats[statKey("S1", 1985)]
	firstCreated := first.CreatedAt

	time.Sleep(time.Millisecond)

	second, err := svc.AggregateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, second.StatsCalculated)

	updated := repo.stats[statKey("S1", 1985)]
	assert.Equal(t, *first.AvgMaxTemp, *updated.AvgMaxTemp)
	assert.Equal(t, *first.AvgMinTemp, *updated.AvgMinTemp)
	assert.Equal(t, *first.TotalPrecipitation, *updated.TotalPrecipitation)
	assert.Equal(t, first.ID, updated.ID, "upsert overwrites in place, never appends")
	assert.Equal(t, firstCreated, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(first.UpdatedAt))

	// Still one row per (station, year).
	assert.Len(t, repo.stats, 3)
}

func TestAggregateGroupErrorContinues(t *testing.T) {
	repo := newFakeRepository()
	seedTwoStations(t, repo)
	repo.upsertErrFor[statKey("S1", 1985)] = errors.New("deadlock detected")
	svc := NewStatisticsService(repo, testLogger, testMetrics)

	result, err := svc.AggregateAll(context.Background())
	require.NoError(t, err, "a group failure never aborts the run")

	assert.Equal(t, 2, result.StatsCalculated)
	assert.Equal(t, 1, result.Errors)
	assert.NotContains(t, repo.stats, statKey("S1", 1985))
	assert.Contains(t, repo.stats, statKey("S1", 1986))
}

func TestAggregateGroupFetchErrorContinues(t *testing.T) {
	repo := newFakeRepository()
	seedTwoStations(t, repo)
	repo.fetchErrFor[statKey("S2", 1985)] = errors.New("connection reset")
	svc := NewStatisticsService(repo, testLogger, testMetrics)

	result, err := svc.AggregateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.StatsCalculated)
	assert.Equal(t, 1, result.Errors)
}

func TestAggregateAllEmpty(t *testing.T) {
	repo := newFakeRepository()
	svc := NewStatisticsService(repo, testLogger, testMetrics)

	result, err := svc.AggregateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, result.StatsCalculated)
	assert.Equal(t, 0, result.StationsProcessed)
	assert.Equal(t, 0, result.YearsProcessed)
}
