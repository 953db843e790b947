package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/railnet/routeplanner/models"

	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the SQLite schema.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteDB wraps a SQL database connection for SQLite
type SQLiteDB struct {
	db      *sql.DB
	writeMu sync.Mutex // serializes writes; SQLite allows one writer at a time
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// EnsureSchema creates tables if they don't exist.
func (s *SQLiteDB) EnsureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SQLiteStopRepository handles stop queries using SQLite
type SQLiteStopRepository struct {
	sdb *SQLiteDB
}

// NewSQLiteStopRepository creates a new SQLiteStopRepository
func NewSQLiteStopRepository(sdb *SQLiteDB) *SQLiteStopRepository {
	return &SQLiteStopRepository{sdb: sdb}
}

// Ping checks database connectivity
func (r *SQLiteStopRepository) Ping(ctx context.Context) error {
	return r.sdb.db.PingContext(ctx)
}

// ListTrainIDs returns the ids of all trains that have at least one stop
func (r *SQLiteStopRepository) ListTrainIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.sdb.db.QueryContext(ctx, `SELECT DISTINCT train_id FROM stops ORDER BY train_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trains: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan train id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating train rows: %w", err)
	}
	return ids, nil
}

// StopsForTrain returns a train's stops in the order they were imported
func (r *SQLiteStopRepository) StopsForTrain(ctx context.Context, trainID int64) ([]models.Stop, error) {
	query := `
		SELECT
			stop_id,
			train_id,
			station_id,
			arrival_time,
			departure_time,
			fare
		FROM stops
		WHERE train_id = ?
		ORDER BY stop_id
	`

	rows, err := r.sdb.db.QueryContext(ctx, query, trainID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ID, &s.TrainID, &s.StationID, &s.ArrivalTime, &s.DepartureTime, &s.Fare); err != nil {
			return nil, fmt.Errorf("failed to scan stop row: %w", err)
		}
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stop rows: %w", err)
	}
	return stops, nil
}

// InsertStops writes stops in one transaction, creating the referenced
// stations and trains when missing. Returns the number of stops inserted.
func (r *SQLiteStopRepository) InsertStops(ctx context.Context, stops []models.Stop) (int, error) {
	if len(stops) == 0 {
		return 0, nil
	}
	for i := range stops {
		if err := stops[i].Validate(); err != nil {
			return 0, fmt.Errorf("stop %d: %w", i, err)
		}
	}

	r.sdb.writeMu.Lock()
	defer r.sdb.writeMu.Unlock()

	tx, err := r.sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stationStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO stations (station_id) VALUES (?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare station insert: %w", err)
	}
	defer stationStmt.Close()

	trainStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO trains (train_id) VALUES (?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare train insert: %w", err)
	}
	defer trainStmt.Close()

	stopStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stops (train_id, station_id, arrival_time, departure_time, fare)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare stop insert: %w", err)
	}
	defer stopStmt.Close()

	for _, s := range stops {
		if _, err := stationStmt.ExecContext(ctx, s.StationID); err != nil {
			return 0, fmt.Errorf("failed to insert station %d: %w", s.StationID, err)
		}
		if _, err := trainStmt.ExecContext(ctx, s.TrainID); err != nil {
			return 0, fmt.Errorf("failed to insert train %d: %w", s.TrainID, err)
		}
		if _, err := stopStmt.ExecContext(ctx, s.TrainID, s.StationID, s.ArrivalTime, s.DepartureTime, s.Fare); err != nil {
			return 0, fmt.Errorf("failed to insert stop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit stops: %w", err)
	}
	return len(stops), nil
}

// DeleteTrain removes all stops of a train
func (r *SQLiteStopRepository) DeleteTrain(ctx context.Context, trainID int64) error {
	if trainID <= 0 {
		return ErrInvalidTrainID
	}

	r.sdb.writeMu.Lock()
	defer r.sdb.writeMu.Unlock()

	if _, err := r.sdb.db.ExecContext(ctx, `DELETE FROM stops WHERE train_id = ?`, trainID); err != nil {
		return fmt.Errorf("failed to delete stops for train %d: %w", trainID, err)
	}
	return nil
}
