package main

import (
	"context"
	"flag"
	"os"
	"slices"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/railnet/routeplanner/internal/gtfs"
	"github.com/railnet/routeplanner/internal/logging"
	"github.com/railnet/routeplanner/models"
	"github.com/railnet/routeplanner/repository"
)

// stopWriter is implemented by both storage backends
type stopWriter interface {
	InsertStops(ctx context.Context, stops []models.Stop) (int, error)
	DeleteTrain(ctx context.Context, trainID int64) error
}

func main() {
	_ = godotenv.Load(".env")

	// Command line flags
	dbPath := flag.String("db", "../../data/transit.db", "Path to SQLite database")
	databaseURL := flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL URL; when set, import into Postgres instead of SQLite")
	csvPath := flag.String("csv", "", "CSV file with columns train_id,station_id,arrival_time,departure_time,fare")
	gtfsPath := flag.String("gtfs", "", "GTFS zip to import instead of a CSV file")
	gtfsService := flag.String("gtfs-service", "", "Only import trips of this GTFS service_id")
	gtfsParent := flag.Bool("gtfs-parent-stations", true, "Map GTFS platforms onto their parent station")
	gtfsFare := flag.Float64("gtfs-fare", 0, "Flat fare charged per leg for GTFS imports")
	gtfsFirstTrain := flag.Int64("gtfs-first-train", 1, "Train id assigned to the first GTFS trip")
	replace := flag.Bool("replace", false, "Delete existing stops of every imported train first")
	pretty := flag.Bool("pretty", true, "Human-readable log output")
	flag.Parse()

	logger := logging.New("info", *pretty)

	var stops []models.Stop
	switch {
	case *gtfsPath != "":
		data, err := gtfs.Parse(*gtfsPath, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *gtfsPath).Msg("Failed to parse GTFS feed")
		}
		var report gtfs.ConvertReport
		stops, report = gtfs.ToStops(data, gtfs.ConvertOptions{
			ServiceID:        *gtfsService,
			UseParentStation: *gtfsParent,
			FarePerLeg:       *gtfsFare,
			FirstTrainID:     *gtfsFirstTrain,
		})
		event := logger.Info()
		if report.NonNumericStopIDs > 0 {
			event = logger.Warn()
		}
		event.
			Int("trips", report.Trips).
			Int("stops", report.Stops).
			Int("filtered_trips", report.FilteredTrips).
			Int("non_numeric_stop_ids", report.NonNumericStopIDs).
			Msg("Converted GTFS feed")

	case *csvPath != "":
		f, err := os.Open(*csvPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to open CSV")
		}
		defer f.Close()

		var skipped []rowError
		stops, skipped, err = parseStops(f)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *csvPath).Msg("Failed to parse CSV")
		}
		for _, re := range skipped {
			logger.Warn().Int("line", re.Line).Err(re.Err).Msg("Skipping row")
		}
		logger.Info().Int("stops", len(stops)).Int("skipped", len(skipped)).Msg("Parsed CSV")

	default:
		logger.Fatal().Msg("one of -csv or -gtfs is required")
	}

	ctx := context.Background()
	writer, closeFn, err := openWriter(ctx, *dbPath, *databaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer closeFn()

	if *replace {
		for _, id := range trainIDs(stops) {
			if err := writer.DeleteTrain(ctx, id); err != nil {
				logger.Fatal().Err(err).Int64("train_id", id).Msg("Failed to clear train")
			}
		}
	}

	n, err := writer.InsertStops(ctx, stops)
	if err != nil {
		logger.Fatal().Err(err).Msg("Import failed")
	}
	logger.Info().Int("inserted", n).Msg("Import complete")
}

func openWriter(ctx context.Context, dbPath, databaseURL string, logger zerolog.Logger) (stopWriter, func(), error) {
	if databaseURL != "" {
		repo, err := repository.NewPostgresStopRepository(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			repo.Close()
			return nil, nil, err
		}
		logger.Info().Msg("Connected to PostgreSQL")
		return repo, repo.Close, nil
	}

	sqliteDB, err := repository.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := sqliteDB.EnsureSchema(ctx); err != nil {
		sqliteDB.Close()
		return nil, nil, err
	}
	logger.Info().Str("path", dbPath).Msg("Connected to SQLite database")
	return repository.NewSQLiteStopRepository(sqliteDB), func() { sqliteDB.Close() }, nil
}

func trainIDs(stops []models.Stop) []int64 {
	ids := make([]int64, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.TrainID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
