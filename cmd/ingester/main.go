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
	dataDir := flag.String("data-dir", "./wx_data", "Directory containing weather data files")
	batchSize := flag.Int("batch-size", services.DefaultBatchSize, "Number of records per bulk-insert batch")
	calculateStats := flag.Bool("calculate-stats", false, "Calculate annual statistics after ingestion")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("weather-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting weather data ingestion", logging.Fields{
		"data_dir":        *dataDir,
		"batch_size":      *batchSize,
		"calculate_stats": *calculateStats,
	})

	metricsCollector := metrics.NewCollector("weather_ingester")

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
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	weatherRepo := repository.NewWeatherRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(weatherRepo, logger, metricsCollector)
	statsService := services.NewStatisticsService(weatherRepo, logger, metricsCollector)

	result, err := ingestionService.IngestDirectory(ctx, *dataDir, *batchSize)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Files Processed:    %d\n", result.FilesProcessed)
	fmt.Printf("Records Ingested:   %d\n", result.RecordsIngested)
	fmt.Printf("Records Skipped:    %d (duplicates)\n", result.RecordsSkipped)
	fmt.Printf("Errors:             %d\n", result.Errors)
	fmt.Printf("Duration:           %v\n", result.Duration)

	if *calculateStats {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("CALCULATING STATISTICS")
		fmt.Println(strings.Repeat("=", 80))

		statsResult, err := statsService.AggregateAll(ctx)
		if err != nil {
			logger.Error(ctx, "[STATS_ERROR] Statistics calculation failed", logging.Fields{}, err)
			fmt.Printf("Statistics calculation failed: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Stations Processed: %d\n", statsResult.StationsProcessed)
		fmt.Printf("Years Processed:    %d\n", statsResult.YearsProcessed)
		fmt.Printf("Stats Calculated:   %d\n", statsResult.StatsCalculated)
		fmt.Printf("Errors:             %d\n", statsResult.Errors)
		fmt.Printf("Duration:           %v\n", statsResult.Duration)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion run finished", logging.Fields{
		"files_processed":  result.FilesProcessed,
		"records_ingested": result.RecordsIngested,
		"records_skipped":  result.RecordsSkipped,
		"errors":           result.Errors,
		"duration_seconds": result.Duration.Seconds(),
	})
}
