package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketagg/internal/model"
)

// AlertHistoryRepository records fired alerts, indexed for recent-first
// retrieval.
type AlertHistoryRepository struct {
	db *sql.DB
}

func NewAlertHistoryRepository(db *sql.DB) *AlertHistoryRepository {
	return &AlertHistoryRepository{db: db}
}

func (r *AlertHistoryRepository) Add(ctx context.Context, h model.AlertHistory) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_histories (rule_id, instrument_id, message, triggered_at) VALUES (?, ?, ?, ?)`,
		h.RuleID, h.InstrumentID, h.Message, h.TriggeredAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert alert history: %w", err)
	}
	return nil
}

func (r *AlertHistoryRepository) Get(ctx context.Context, from, to int64, limit int) ([]model.AlertHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, rule_id, instrument_id, message, triggered_at FROM alert_histories
		 WHERE triggered_at BETWEEN ? AND ? ORDER BY triggered_at DESC LIMIT ?`,
		from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query alert history: %w", err)
	}
	defer rows.Close()

	var out []model.AlertHistory
	for rows.Next() {
		var h model.AlertHistory
		var triggeredAtMs int64
		if err := rows.Scan(&h.ID, &h.RuleID, &h.InstrumentID, &h.Message, &triggeredAtMs); err != nil {
			return nil, fmt.Errorf("sqlite: scan alert history: %w", err)
		}
		h.TriggeredAt = time.UnixMilli(triggeredAtMs).UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
