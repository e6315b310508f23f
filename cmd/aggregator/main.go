package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"weather-pipeline/internal/config"
	"weather-pipeline/internal/repository"
	"weather-pipeline/internal/services"
	"weather-pipeline/pkg/database"
	"weather-pipeline/pkg/logging"
	"weather-pipeline/pkg/metrics"
)

func main() {
	station := flag.String("station", "", "Restrict aggregation to one station ID (default: all stations)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-aggregator", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[AGGREGATOR_START] Starting statistics aggregation", logging.Fields{
		"station": *station,
	})

	metricsCollector := metrics.NewCollector("weather_aggregator")

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[AGGREGATOR_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

	var result *services.AggregationResult
	if *station != "" {
		result, err = statsService.AggregateStation(ctx, *station)
	} else {
		result, err = statsService.AggregateAll(ctx)
	}
	if err != nil {
		logger.Fatal(ctx, "[AGGREGATION_ERROR] Aggregation failed", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("AGGREGATION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Stations Processed: %d\n", result.StationsProcessed)
	fmt.Printf("Years Processed:    %d\n", result.YearsProcessed)
	fmt.Printf("Stats Calculated:   %d\n", result.StatsCalculated)
	fmt.Printf("Errors:             %d\n", result.Errors)
	fmt.Printf("Duration:           %v\n", result.Duration)

	logger.Info(ctx, "[AGGREGATOR_COMPLETE] Aggregation run finished", logging.Fields{
		"stations_processed": result.StationsProcessed,
		"years_processed":    result.YearsProcessed,
		"stats_calculated":   result.StatsCalculated,
		"errors":             result.Errors,
		"duration_seconds":   result.Duration.Seconds(),
	})
}
