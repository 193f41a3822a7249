// Package sqlite provides the reference persistence implementation for
// every model.*Repository port, backed by github.com/mattn/go-sqlite3.
// Grounded on the teacher's internal/store/sqlite/{writer,reader}.go:
// WAL mode, a single writer connection, and INSERT OR REPLACE upserts.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if absent) the SQLite database at path in WAL
// mode and applies the schema.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instruments (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol   TEXT NOT NULL,
			exchange TEXT NOT NULL,
			base     TEXT NOT NULL,
			quote    TEXT NOT NULL,
			UNIQUE (symbol, exchange)
		);

		CREATE TABLE IF NOT EXISTS ticks (
			instrument_id INTEGER NOT NULL,
			source_type   TEXT    NOT NULL,
			price         TEXT    NOT NULL,
			volume        TEXT    NOT NULL,
			event_ts      INTEGER NOT NULL,
			received_at   INTEGER NOT NULL,
			day           TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ticks_instrument_ts ON ticks (instrument_id, event_ts DESC);
		CREATE INDEX IF NOT EXISTS idx_ticks_ts ON ticks (event_ts DESC);
		CREATE INDEX IF NOT EXISTS idx_ticks_day ON ticks (day);

		CREATE TABLE IF NOT EXISTS candles (
			instrument_id INTEGER NOT NULL,
			interval      TEXT    NOT NULL,
			open_time     INTEGER NOT NULL,
			close_time    INTEGER NOT NULL,
			open          TEXT    NOT NULL,
			high          TEXT    NOT NULL,
			low           TEXT    NOT NULL,
			close         TEXT    NOT NULL,
			volume        TEXT    NOT NULL,
			trades_count  INTEGER NOT NULL,
			UNIQUE (instrument_id, interval, open_time)
		);

		CREATE TABLE IF NOT EXISTS alert_rules (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			name           TEXT    NOT NULL,
			instrument_id  INTEGER NOT NULL,
			kind           TEXT    NOT NULL,
			threshold      TEXT    NOT NULL,
			period_minutes INTEGER NOT NULL,
			active         INTEGER NOT NULL,
			created_at     INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alert_histories (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			rule_id       INTEGER NOT NULL,
			instrument_id INTEGER NOT NULL,
			message       TEXT    NOT NULL,
			triggered_at  INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_alert_histories_triggered_at ON alert_histories (triggered_at DESC);

		CREATE TABLE IF NOT EXISTS exchange_statuses (
			exchange     TEXT    NOT NULL,
			source_type  TEXT    NOT NULL,
			is_online    INTEGER NOT NULL,
			last_tick_at INTEGER,
			last_error   TEXT,
			updated_at   INTEGER NOT NULL,
			UNIQUE (exchange, source_type)
		);
	`)
	return err
}
