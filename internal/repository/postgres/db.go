// Package postgres archives finished games for later inspection.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect opens a connection pool to the PostgreSQL database.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the archive table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS finished_games (
			id            TEXT PRIMARY KEY,
			code          TEXT NOT NULL,
			winner        TEXT NOT NULL,
			total_rounds  INT NOT NULL,
			player_count  INT NOT NULL,
			players       JSONB NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			finished_at   TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
