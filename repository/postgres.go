package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/railnet/routeplanner/models"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS stations (
    station_id BIGINT PRIMARY KEY,
    name       TEXT
);

CREATE TABLE IF NOT EXISTS trains (
    train_id BIGINT PRIMARY KEY,
    name     TEXT
);

CREATE TABLE IF NOT EXISTS stops (
    stop_id        BIGSERIAL PRIMARY KEY,
    train_id       BIGINT NOT NULL REFERENCES trains(train_id),
    station_id     BIGINT NOT NULL REFERENCES stations(station_id),
    arrival_time   TEXT,
    departure_time TEXT,
    fare           DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_stops_train ON stops(train_id, stop_id);
`

type PostgresStopRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresStopRepository(ctx context.Context, databaseURL string) (*PostgresStopRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStopRepository{pool: pool}, nil
}

func (r *PostgresStopRepository) Close() {
	r.pool.Close()
}

func (r *PostgresStopRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *PostgresStopRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *PostgresStopRepository) ListTrainIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT train_id FROM stops ORDER BY train_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trains: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan train ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresStopRepository) StopsForTrain(ctx context.Context, trainID int64) ([]models.Stop, error) {
	query := `
		SELECT
			stop_id,
			train_id,
			station_id,
			arrival_time,
			departure_time,
			fare
		FROM stops
		WHERE train_id = $1
		ORDER BY stop_id
	`

	rows, err := r.pool.Query(ctx, query, trainID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var s models.Stop
		err := rows.Scan(
			&s.ID,
			&s.TrainID,
			&s.StationID,
			&s.ArrivalTime,
			&s.DepartureTime,
			&s.Fare,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stop row: %w", err)
		}
		stops = append(stops, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop rows: %w", err)
	}

	return stops, nil
}

// InsertStops writes stops in a single batched transaction.
func (r *PostgresStopRepository) InsertStops(ctx context.Context, stops []models.Stop) (int, error) {
	if len(stops) == 0 {
		return 0, nil
	}
	for i := range stops {
		if err := stops[i].Validate(); err != nil {
			return 0, fmt.Errorf("stop %d: %w", i, err)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range stops {
		batch.Queue(`INSERT INTO stations (station_id) VALUES ($1) ON CONFLICT DO NOTHING`, s.StationID)
		batch.Queue(`INSERT INTO trains (train_id) VALUES ($1) ON CONFLICT DO NOTHING`, s.TrainID)
		batch.Queue(`
			INSERT INTO stops (train_id, station_id, arrival_time, departure_time, fare)
			VALUES ($1, $2, $3, $4, $5)
		`, s.TrainID, s.StationID, s.ArrivalTime, s.DepartureTime, s.Fare)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert stops: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit stops: %w", err)
	}
	return len(stops), nil
}

func (r *PostgresStopRepository) DeleteTrain(ctx context.Context, trainID int64) error {
	if trainID <= 0 {
		return ErrInvalidTrainID
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM stops WHERE train_id = $1`, trainID); err != nil {
		return fmt.Errorf("failed to delete stops for train %d: %w", trainID, err)
	}
	return nil
}
