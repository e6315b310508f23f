package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"

	"weather-pipeline/internal/models"
	"weather-pipeline/internal/repository"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

// Shared across the package's tests: promauto registers collectors on the
// default registry, so the collector must be created exactly once per
// test binary.
var (
	testMetrics = metrics.NewCollector("weather_services_test")
	testLogger  = logging.NewStructuredLogger("test", "0.0.0", logging.FatalLevel)
)

func dailyKey(stationID string, date time.Time) string {
	return stationID + "|" + date.Format("20060102")
}

func statKey(stationID string, year int) string {
	return fmt.Sprintf("%s|%d", stationID, year)
}

// uniqueViolation builds the error shape the repository produces when
// Postgres rejects an insert on the (station_id, date) constraint.
func uniqueViolation() error {
	return fmt.Errorf("failed to insert record: %w", &pq.Error{Code: "23505"})
}

// fakeRepository is an in-memory repository.WeatherRepository enforcing the
// same uniqueness semantics as the real schema.
type fakeRepository struct {
	daily map[string]*models.DailyRecord
	stats map[string]*models.AnnualStat

	nextID int64

	// Batch sizes of every InsertDailyBatch call, successful or not.
	batchCalls []int

	// Forced failures.
	batchErr     error
	insertErrFor map[string]error
	upsertErrFor map[string]error
	distinctErr  error
	fetchErrFor  map[string]error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		daily:        make(map[string]*models.DailyRecord),
		stats:        make(map[string]*models.AnnualStat),
		insertErrFor: make(map[string]error),
		upsertErrFor: make(map[string]error),
		fetchErrFor:  make(map[string]error),
	}
}

func (f *fakeRepository) InsertDailyBatch(ctx context.Context, records []*models.DailyRecord) error {
	f.batchCalls = append(f.batchCalls, len(records))

	if f.batchErr != nil {
		return f.batchErr
	}

	// A conflict anywhere rolls back the whole batch.
	staged := make(map[string]*models.DailyRecord, len(records))
	for _, rec := range records {
		key := dailyKey(rec.StationID, rec.Date)
		if _, exists := f.daily[key]; exists {
			return uniqueViolation()
		}
		if _, exists := staged[key]; exists {
			return uniqueViolation()
		}
		staged[key] = rec
	}

	for key, rec := range staged {
		f.nextID++
		rec.ID = f.nextID
		f.daily[key] = rec
	}
	return nil
}

func (f *fakeRepository) InsertDaily(ctx context.Context, record *models.DailyRecord) error {
	key := dailyKey(record.StationID, record.Date)

	if err, ok := f.insertErrFor[key]; ok {
		return err
	}
	if _, exists := f.daily[key]; exists {
		return uniqueViolation()
	}

	f.nextID++
	record.ID = f.nextID
	f.daily[key] = record
	return nil
}

func (f *fakeRepository) DistinctStationYears(ctx context.Context, stationID string) ([]repository.StationYear, error) {
	if f.distinctErr != nil {
		return nil, f.distinctErr
	}

	seen := make(map[repository.StationYear]struct{})
	for _, rec := range f.daily {
		if stationID != "" && rec.StationID != stationID {
			continue
		}
		seen[repository.StationYear{StationID: rec.StationID, Year: rec.Date.Year()}] = struct{}{}
	}

	pairs := make([]repository.StationYear, 0, len(seen))
	for pair := range seen {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].StationID != pairs[j].StationID {
			return pairs[i].StationID < pairs[j].StationID
		}
		return pairs[i].Year < pairs[j].Year
	})
	return pairs, nil
}

func (f *fakeRepository) DailyRecordsForYear(ctx context.Context, stationID string, year int) ([]*models.DailyRecord, error) {
	if err, ok := f.fetchErrFor[statKey(stationID, year)]; ok {
		return nil, err
	}

	var records []*models.DailyRecord
	for _, rec := range f.daily {
		if rec.StationID == stationID && rec.Date.Year() == year {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (f *fakeRepository) UpsertAnnualStat(ctx context.Context, stat *models.AnnualStat) error {
	key := statKey(stat.StationID, stat.Year)

	if err, ok := f.upsertErrFor[key]; ok {
		return err
	}

	if existing, ok := f.stats[key]; ok {
		existing.AvgMaxTemp = stat.AvgMaxTemp
		existing.AvgMinTemp = stat.AvgMinTemp
		existing.TotalPrecipitation = stat.TotalPrecipitation
		existing.UpdatedAt = stat.UpdatedAt
		stat.ID = existing.ID
		return nil
	}

	f.nextID++
	stat.ID = f.nextID
	stored := *stat
	f.stats[key] = &stored
	return nil
}

func (f *fakeRepository) GetDailyRecords(ctx context.Context, filter repository.DailyRecordFilter) ([]*models.DailyRecord, int, error) {
	var records []*models.DailyRecord
	for _, rec := range f.daily {
		if filter.StationID != nil && rec.StationID != *filter.StationID {
			continue
		}
		records = append(records, rec)
	}
	return records, len(records), nil
}

func (f *fakeRepository) GetAnnualStats(ctx context.Context, filter repository.AnnualStatFilter) ([]*models.AnnualStat, int, error) {
	var stats []*models.AnnualStat
	for _, stat := range f.stats {
		if filter.StationID != nil && stat.StationID != *filter.StationID {
			continue
		}
		stats = append(stats, stat)
	}
	return stats, len(stats), nil
}

func (f *fakeRepository) HealthCheck(ctx context.Context) error {
	return nil
}

// record builds a DailyRecord for test seeding.
func record(stationID, date string, maxTemp, minTemp, precip int) *models.DailyRecord {
	d, err := time.Parse("20060102", date)
	if err != nil {
		panic(err)
	}
	return &models.DailyRecord{
		StationID:     stationID,
		Date:          d,
		MaxTemp:       maxTemp,
		MinTemp:       minTemp,
		Precipitation: precip,
		CreatedAt:     time.Now().UTC(),
	}
}
