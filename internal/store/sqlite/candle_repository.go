package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"marketagg/internal/model"
)

// CandleRepository upserts OHLCV candles, grounded on the teacher's
// Writer.insertTFBatch INSERT OR REPLACE pattern.
type CandleRepository struct {
	db *sql.DB
}

func NewCandleRepository(db *sql.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

func (r *CandleRepository) BulkUpsert(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (instrument_id, interval, open_time, close_time, open, high, low, close, volume, trades_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instrument_id, interval, open_time) DO UPDATE SET
			close_time = excluded.close_time,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			trades_count = excluded.trades_count
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite: prepare candle upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx,
			c.InstrumentID, string(c.Interval), c.OpenTime.UnixMilli(), c.CloseTime.UnixMilli(),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(),
			c.TradesCount,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite: upsert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit candles: %w", err)
	}
	return nil
}
