package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"marketagg/internal/model"
)

// TickRepository persists raw ticks in batched transactions, grounded
// on the teacher's Writer.insertBatch.
type TickRepository struct {
	db *sql.DB
}

func NewTickRepository(db *sql.DB) *TickRepository {
	return &TickRepository{db: db}
}

func (r *TickRepository) BulkInsert(ctx context.Context, ticks []model.NormalizedTick) error {
	if len(ticks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks (instrument_id, source_type, price, volume, event_ts, received_at, day)
		VALUES ((SELECT id FROM instruments WHERE symbol = ? AND exchange = ?), ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare tick insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range ticks {
		_, err := stmt.ExecContext(ctx,
			t.Symbol, t.Exchange,
			string(t.SourceType), t.Price.String(), t.Volume.String(),
			t.EventTS.UnixMilli(), t.ReceivedAt.UnixMilli(),
			t.EventTS.Format("2006-01-02"),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: insert tick: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit ticks: %w", err)
	}
	return nil
}
