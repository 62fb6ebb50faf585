package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database, enables WAL for concurrent-writer
// durability and foreign keys, and verifies the connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the schema. All statements are idempotent so startup can
// run this unconditionally.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journeys (
			journey_id      TEXT PRIMARY KEY,
			vehicle_id      TEXT NOT NULL,
			departure_date  TEXT NOT NULL,
			start_timestamp INTEGER NOT NULL,
			end_timestamp   INTEGER,
			status          TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS samples (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			journey_id TEXT NOT NULL REFERENCES journeys(journey_id),
			timestamp  INTEGER NOT NULL,
			lat        REAL NOT NULL,
			lon        REAL NOT NULL,
			speed      REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_journeys_vehicle_status ON journeys(vehicle_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_journeys_vehicle_date ON journeys(vehicle_id, departure_date)`,
		`CREATE INDEX IF NOT EXISTS idx_samples_journey_ts ON samples(journey_id, timestamp)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Transaction executes a function within a database transaction.
func Transaction(db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
