// Package candle implements the candle aggregator tick handler: lazy
// instrument resolution, per-(instrument,interval,open_time) OHLCV
// accumulation, a buffered tick writer, and periodic flush/eviction.
package candle

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"marketagg/internal/apperr"
	"marketagg/internal/metrics"
	"marketagg/internal/model"

	redisstore "marketagg/internal/store/redis"
)

// Config holds the aggregator's tunables, all sourced from
// configuration.
type Config struct {
	Intervals                     []model.Interval
	TickBufferSize                int
	InMemoryCandleRetentionMinutes int
}

// entry pairs a candle with the mutex that serializes ApplyTick calls
// against it, satisfying §4.4's per-key mutual-exclusion requirement.
type entry struct {
	mu     sync.Mutex
	candle model.Candle
}

// Aggregator is the candle aggregator tick handler described in §4.4.
type Aggregator struct {
	cfg Config

	instrumentRepo model.InstrumentRepository
	tickRepo       model.TickRepository
	candleRepo     model.CandleRepository
	metrics        *metrics.Registry

	instruments   sync.Map // "exchange:symbol" -> model.Instrument
	candles       sync.Map // Candle.Key() -> *entry

	bufMu      sync.Mutex
	tickBuffer []model.NormalizedTick

	flushing int32 // atomic CAS single-flight flag

	breaker *redisstore.CircuitBreaker
}

// New constructs an Aggregator. breaker guards repository bulk calls so
// a struggling backend doesn't get hammered every flush tick.
func New(cfg Config, instrumentRepo model.InstrumentRepository, tickRepo model.TickRepository, candleRepo model.CandleRepository, reg *metrics.Registry) *Aggregator {
	if len(cfg.Intervals) == 0 {
		cfg.Intervals = model.DefaultIntervals()
	}
	if cfg.TickBufferSize <= 0 {
		cfg.TickBufferSize = 500
	}
	if cfg.InMemoryCandleRetentionMinutes <= 0 {
		cfg.InMemoryCandleRetentionMinutes = 120
	}
	return &Aggregator{
		cfg:            cfg,
		instrumentRepo: instrumentRepo,
		tickRepo:       tickRepo,
		candleRepo:     candleRepo,
		metrics:        reg,
		tickBuffer:     make([]model.NormalizedTick, 0, cfg.TickBufferSize*2),
		breaker:        redisstore.NewCircuitBreaker(5, 10*time.Second),
	}
}

func (a *Aggregator) Name() string { return "candle-aggregator" }

// Handle resolves the instrument, buffers the tick for persistence, and
// applies it to every configured interval's candle.
func (a *Aggregator) Handle(ctx context.Context, tick model.NormalizedTick) error {
	inst, err := a.resolveInstrument(ctx, tick.Exchange, tick.Symbol)
	if err != nil {
		return err
	}

	a.bufferTick(ctx, tick)

	for _, interval := range a.cfg.Intervals {
		openTime := interval.OpenTime(tick.EventTS)
		a.applyToCandle(inst.ID, interval, openTime, tick)
	}
	return nil
}

func (a *Aggregator) resolveInstrument(ctx context.Context, exchange, symbol string) (model.Instrument, error) {
	key := exchange + ":" + symbol
	if v, ok := a.instruments.Load(key); ok {
		return v.(model.Instrument), nil
	}

	inst, err := a.instrumentRepo.GetOrCreate(ctx, symbol, exchange)
	if err != nil {
		return model.Instrument{}, apperr.NewTransientBackendError("instrument-repo", err)
	}
	actual, _ := a.instruments.LoadOrStore(key, inst)
	return actual.(model.Instrument), nil
}

func (a *Aggregator) applyToCandle(instrumentID int64, interval model.Interval, openTime time.Time, tick model.NormalizedTick) {
	key := candleKey(instrumentID, interval, openTime)

	v, loaded := a.candles.Load(key)
	if !loaded {
		fresh := &entry{candle: model.NewCandle(instrumentID, interval, openTime)}
		actual, _ := a.candles.LoadOrStore(key, fresh)
		v = actual
	}
	e := v.(*entry)

	e.mu.Lock()
	e.candle.ApplyTick(tick.Price, tick.Volume)
	e.mu.Unlock()
}

func candleKey(instrumentID int64, interval model.Interval, openTime time.Time) string {
	c := model.Candle{InstrumentID: instrumentID, Interval: interval, OpenTime: openTime}
	return c.Key()
}

func (a *Aggregator) bufferTick(ctx context.Context, tick model.NormalizedTick) {
	a.bufMu.Lock()
	a.tickBuffer = append(a.tickBuffer, tick)
	shouldFlush := len(a.tickBuffer) >= a.cfg.TickBufferSize
	a.bufMu.Unlock()

	if shouldFlush {
		a.flushTickBuffer(ctx)
	}
}

// flushTickBuffer drains up to 2x TickBufferSize items and bulk-inserts
// them. On failure, the drained items are discarded — an explicit,
// documented at-most-once loss mode when the repository is
// unreachable, chosen over re-enqueueing per the spec's open question.
func (a *Aggregator) flushTickBuffer(ctx context.Context) {
	a.bufMu.Lock()
	n := len(a.tickBuffer)
	if n > 2*a.cfg.TickBufferSize {
		n = 2 * a.cfg.TickBufferSize
	}
	batch := a.tickBuffer[:n]
	a.tickBuffer = append([]model.NormalizedTick(nil), a.tickBuffer[n:]...)
	a.bufMu.Unlock()

	if n == 0 {
		return
	}

	err := a.breaker.Execute(func() error {
		return a.tickRepo.BulkInsert(ctx, batch)
	})
	if err != nil {
		if apperr.IsCanceled(ctx, err) {
			return
		}
		log.Printf("[candle] tick buffer flush failed, discarding %d ticks: %v", n, err)
		return
	}
	a.metrics.RecordTickStored(n)
}

// Flush runs the periodic tick-buffer-then-candle flush, single-flight
// guarded by a CAS so overlapping timer fires never run concurrently.
func (a *Aggregator) Flush(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&a.flushing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&a.flushing, 0)

	a.flushTickBuffer(ctx)
	a.flushCandles(ctx)
}

func (a *Aggregator) flushCandles(ctx context.Context) {
	now := time.Now()
	retention := time.Duration(a.cfg.InMemoryCandleRetentionMinutes) * time.Minute

	var toUpsert []model.Candle
	var keysToDelete []any

	a.candles.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		c := e.candle
		e.mu.Unlock()

		if now.After(c.CloseTime) || now.Equal(c.CloseTime) || now.Sub(c.OpenTime) > retention {
			toUpsert = append(toUpsert, c)
			keysToDelete = append(keysToDelete, k)
		}
		return true
	})

	if len(toUpsert) == 0 {
		return
	}

	err := a.breaker.Execute(func() error {
		return a.candleRepo.BulkUpsert(ctx, toUpsert)
	})
	if err != nil {
		if apperr.IsCanceled(ctx, err) {
			return
		}
		log.Printf("[candle] candle flush failed for %d candles: %v", len(toUpsert), err)
		return
	}

	for _, k := range keysToDelete {
		a.candles.Delete(k)
	}
}
