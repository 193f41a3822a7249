package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"marketagg/internal/model"
)

// InstrumentRepository resolves or lazily creates the (symbol,
// exchange) identity row.
type InstrumentRepository struct {
	db *sql.DB
}

func NewInstrumentRepository(db *sql.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

func (r *InstrumentRepository) GetOrCreate(ctx context.Context, symbol, exchange string) (model.Instrument, error) {
	var inst model.Instrument
	err := r.db.QueryRowContext(ctx,
		`SELECT id, symbol, exchange, base, quote FROM instruments WHERE symbol = ? AND exchange = ?`,
		symbol, exchange,
	).Scan(&inst.ID, &inst.Symbol, &inst.Exchange, &inst.Base, &inst.Quote)
	if err == nil {
		return inst, nil
	}
	if err != sql.ErrNoRows {
		return model.Instrument{}, fmt.Errorf("sqlite: lookup instrument: %w", err)
	}

	base, quote := model.SplitSymbol(symbol)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO instruments (symbol, exchange, base, quote) VALUES (?, ?, ?, ?)
		 ON CONFLICT (symbol, exchange) DO UPDATE SET symbol = excluded.symbol`,
		symbol, exchange, base, quote,
	)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("sqlite: create instrument: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		// Lost the insert race to a concurrent caller; read back the row.
		err := r.db.QueryRowContext(ctx,
			`SELECT id, symbol, exchange, base, quote FROM instruments WHERE symbol = ? AND exchange = ?`,
			symbol, exchange,
		).Scan(&inst.ID, &inst.Symbol, &inst.Exchange, &inst.Base, &inst.Quote)
		if err != nil {
			return model.Instrument{}, fmt.Errorf("sqlite: reread instrument after race: %w", err)
		}
		return inst, nil
	}

	return model.Instrument{ID: id, Symbol: symbol, Exchange: exchange, Base: base, Quote: quote}, nil
}
