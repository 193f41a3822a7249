package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketagg/internal/model"
)

// ExchangeStatusRepository persists the latest connectivity snapshot
// per (exchange, source type).
type ExchangeStatusRepository struct {
	db *sql.DB
}

func NewExchangeStatusRepository(db *sql.DB) *ExchangeStatusRepository {
	return &ExchangeStatusRepository{db: db}
}

func (r *ExchangeStatusRepository) Upsert(ctx context.Context, status model.ExchangeStatus) error {
	var lastTickAt sql.NullInt64
	if !status.LastTickAt.IsZero() {
		lastTickAt = sql.NullInt64{Int64: status.LastTickAt.UnixMilli(), Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO exchange_statuses (exchange, source_type, is_online, last_tick_at, last_error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (exchange, source_type) DO UPDATE SET
			is_online = excluded.is_online,
			last_tick_at = excluded.last_tick_at,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		status.Exchange, string(status.SourceType), boolToInt(status.IsOnline), lastTickAt, status.LastError, status.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert exchange status: %w", err)
	}
	return nil
}

func (r *ExchangeStatusRepository) GetAll(ctx context.Context) ([]model.ExchangeStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT exchange, source_type, is_online, last_tick_at, last_error, updated_at FROM exchange_statuses`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query exchange statuses: %w", err)
	}
	defer rows.Close()

	var out []model.ExchangeStatus
	for rows.Next() {
		s, err := scanExchangeStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ExchangeStatusRepository) Get(ctx context.Context, exchange string, sourceType model.SourceType) (model.ExchangeStatus, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT exchange, source_type, is_online, last_tick_at, last_error, updated_at
		 FROM exchange_statuses WHERE exchange = ? AND source_type = ?`,
		exchange, string(sourceType),
	)
	return scanExchangeStatus(row)
}

func scanExchangeStatus(row rowScanner) (model.ExchangeStatus, error) {
	var (
		s            model.ExchangeStatus
		sourceType   string
		isOnline     int
		lastTickAt   sql.NullInt64
		updatedAtMs  int64
	)
	if err := row.Scan(&s.Exchange, &sourceType, &isOnline, &lastTickAt, &s.LastError, &updatedAtMs); err != nil {
		return model.ExchangeStatus{}, fmt.Errorf("sqlite: scan exchange status: %w", err)
	}
	s.SourceType = model.SourceType(sourceType)
	s.IsOnline = isOnline != 0
	if lastTickAt.Valid {
		s.LastTickAt = time.UnixMilli(lastTickAt.Int64).UTC()
	}
	s.UpdatedAt = time.UnixMilli(updatedAtMs).UTC()
	return s, nil
}
