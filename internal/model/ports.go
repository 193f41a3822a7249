package model

import "context"

// ── Persistence port interfaces ──
// These decouple the core pipeline from concrete storage. Implementations
// (SQL, Redis, etc.) are external collaborators; only the SQLite reference
// implementation under internal/store/sqlite ships in this repository.

// TickRepository persists raw ticks in bulk. BulkInsert is NOT required to
// be idempotent: duplicates can reach the DB if upstream dedup missed one,
// and callers tolerate that.
type TickRepository interface {
	BulkInsert(ctx context.Context, ticks []NormalizedTick) error
}

// CandleRepository upserts candles keyed by (instrument_id, interval,
// open_time); an existing row's OHLCV/volume/trades/close_time is
// replaced.
type CandleRepository interface {
	BulkUpsert(ctx context.Context, candles []Candle) error
}

// InstrumentRepository resolves or creates the stable Instrument record
// for a (symbol, exchange) pair.
type InstrumentRepository interface {
	GetOrCreate(ctx context.Context, symbol, exchange string) (Instrument, error)
}

// AlertRuleRepository manages alert rule definitions.
type AlertRuleRepository interface {
	GetAllActive(ctx context.Context) ([]AlertRule, error)
	GetByID(ctx context.Context, id int64) (AlertRule, error)
	Create(ctx context.Context, rule AlertRule) (AlertRule, error)
	Update(ctx context.Context, rule AlertRule) error
	Delete(ctx context.Context, id int64) error
}

// AlertHistoryRepository records fired alerts.
type AlertHistoryRepository interface {
	Add(ctx context.Context, h AlertHistory) error
	Get(ctx context.Context, from, to int64, limit int) ([]AlertHistory, error)
}

// ExchangeStatusRepository persists adapter connectivity snapshots.
type ExchangeStatusRepository interface {
	Upsert(ctx context.Context, status ExchangeStatus) error
	GetAll(ctx context.Context) ([]ExchangeStatus, error)
	Get(ctx context.Context, exchange string, sourceType SourceType) (ExchangeStatus, error)
}
