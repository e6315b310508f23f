package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SentinelMissing marks a measurement that was not recorded. It is stored
// verbatim and must be excluded from aggregation, never treated as zero.
const SentinelMissing = -9999

// DailyRecord is one day of measurements for one station, kept in the raw
// units of the source files: temperatures in tenths of a degree Celsius,
// precipitation in hundredths of a centimeter. Records are immutable once
// ingested; (station_id, date) is unique.
type DailyRecord struct {
	ID            int64     `json:"id" db:"id"`
	StationID     string    `json:"station_id" db:"station_id"`
	Date          time.Time `json:"date" db:"date"`
	MaxTemp       int       `json:"max_temp" db:"max_temp"`
	MinTemp       int       `json:"min_temp" db:"min_temp"`
	Precipitation int       `json:"precipitation" db:"precipitation"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// MaxTempCelsius converts the raw max temperature to degrees Celsius.
// Returns nil when the value is the missing-data sentinel.
func (r *DailyRecord) MaxTempCelsius() *float64 {
	if r.MaxTemp == SentinelMissing {
		return nil
	}
	v := float64(r.MaxTemp) / 10.0
	return &v
}

// MinTempCelsius converts the raw min temperature to degrees Celsius.
// Returns nil when the value is the missing-data sentinel.
func (r *DailyRecord) MinTempCelsius() *float64 {
	if r.MinTemp == SentinelMissing {
		return nil
	}
	v := float64(r.MinTemp) / 10.0
	return &v
}

// PrecipitationCm converts the raw precipitation to centimeters.
// Returns nil when the value is the missing-data sentinel.
func (r *DailyRecord) PrecipitationCm() *float64 {
	if r.Precipitation == SentinelMissing {
		return nil
	}
	v := float64(r.Precipitation) / 100.0
	return &v
}

// Year returns the calendar year of the record's date.
func (r *DailyRecord) Year() int {
	return r.Date.Year()
}

// AnnualStat holds derived yearly statistics for one station. The three
// derived fields are nil when every contributing value was the sentinel.
// (station_id, year) is unique; aggregation upserts rows in place.
type AnnualStat struct {
	ID                 int64     `json:"id" db:"id"`
	StationID          string    `json:"station_id" db:"station_id"`
	Year               int       `json:"year" db:"year"`
	AvgMaxTemp         *float64  `json:"avg_max_temp" db:"avg_max_temp"`
	AvgMinTemp         *float64  `json:"avg_min_temp" db:"avg_min_temp"`
	TotalPrecipitation *float64  `json:"total_precipitation" db:"total_precipitation"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// ParseError reports a malformed input line. The offending line is carried
// so the caller can log it without re-reading the file.
type ParseError struct {
	Line    string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s (line: %q)", e.Message, e.Line)
}

// IsTransient returns false as parse errors are permanent.
func (e *ParseError) IsTransient() bool {
	return false
}

// ParseDailyLine parses one tab-delimited line into a DailyRecord.
// Format: YYYYMMDD\tMAX_TEMP\tMIN_TEMP\tPRECIP. The three measurements are
// copied verbatim, sentinel included; unit conversion happens at the
// presentation boundary, not here.
func ParseDailyLine(stationID, line string) (*DailyRecord, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != 4 {
		return nil, &ParseError{
			Line:    line,
			Message: fmt.Sprintf("expected 4 fields, got %d", len(parts)),
		}
	}

	date, err := time.Parse("20060102", strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Message: "invalid date, expected YYYYMMDD",
		}
	}

	maxTemp, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Message: "invalid max temperature: " + err.Error(),
		}
	}

	minTemp, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Message: "invalid min temperature: " + err.Error(),
		}
	}

	precip, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Message: "invalid precipitation: " + err.Error(),
		}
	}

	return &DailyRecord{
		StationID:     stationID,
		Date:          date,
		MaxTemp:       maxTemp,
		MinTemp:       minTemp,
		Precipitation: precip,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
