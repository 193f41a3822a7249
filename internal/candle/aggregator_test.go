package candle

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketagg/internal/metrics"
	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

type fakeInstrumentRepo struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]model.Instrument
}

func newFakeInstrumentRepo() *fakeInstrumentRepo {
	return &fakeInstrumentRepo{byKey: make(map[string]model.Instrument)}
}

func (r *fakeInstrumentRepo) GetOrCreate(ctx context.Context, symbol, exchange string) (model.Instrument, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := exchange + ":" + symbol
	if inst, ok := r.byKey[key]; ok {
		return inst, nil
	}
	r.nextID++
	base, quote := model.SplitSymbol(symbol)
	inst := model.Instrument{ID: r.nextID, Symbol: symbol, Exchange: exchange, Base: base, Quote: quote}
	r.byKey[key] = inst
	return inst, nil
}

type fakeTickRepo struct {
	mu    sync.Mutex
	count int
}

func (r *fakeTickRepo) BulkInsert(ctx context.Context, ticks []model.NormalizedTick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count += len(ticks)
	return nil
}

type fakeCandleRepo struct {
	mu       sync.Mutex
	upserted []model.Candle
}

func (r *fakeCandleRepo) BulkUpsert(ctx context.Context, candles []model.Candle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted = append(r.upserted, candles...)
	return nil
}

func tickAt(ts time.Time, price, volume string) model.NormalizedTick {
	return model.NormalizedTick{
		Exchange: "Binance", SourceType: model.SourceStreaming, Symbol: "BTCUSDT",
		Price: dec(price), Volume: dec(volume), EventTS: ts, ReceivedAt: ts,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregator_BuildsOneMinuteCandleFromTicks(t *testing.T) {
	instRepo := newFakeInstrumentRepo()
	tickRepo := &fakeTickRepo{}
	candleRepo := &fakeCandleRepo{}
	agg := New(Config{Intervals: []model.Interval{model.OneMinute}}, instRepo, tickRepo, candleRepo, metrics.NewRegistry())

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []model.NormalizedTick{
		tickAt(base.Add(5*time.Second), "100", "1"),
		tickAt(base.Add(20*time.Second), "110", "2"),
		tickAt(base.Add(40*time.Second), "95", "1"),
		tickAt(base.Add(55*time.Second), "105", "1"),
	}
	ctx := context.Background()
	for _, tk := range ticks {
		if err := agg.Handle(ctx, tk); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}

	agg.flushCandles(ctx)
	if len(candleRepo.upserted) != 1 {
		t.Fatalf("expected 1 candle upserted after eviction window close, got %d", len(candleRepo.upserted))
	}
}

func TestAggregator_AppliesOHLCVInvariants(t *testing.T) {
	instRepo := newFakeInstrumentRepo()
	tickRepo := &fakeTickRepo{}
	candleRepo := &fakeCandleRepo{}
	agg := New(Config{Intervals: []model.Interval{model.OneMinute}, InMemoryCandleRetentionMinutes: 120}, instRepo, tickRepo, candleRepo, metrics.NewRegistry())

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	for _, tk := range []model.NormalizedTick{
		tickAt(base.Add(5*time.Second), "100", "1"),
		tickAt(base.Add(20*time.Second), "110", "2"),
		tickAt(base.Add(40*time.Second), "95", "1"),
		tickAt(base.Add(55*time.Second), "105", "1"),
	} {
		_ = agg.Handle(ctx, tk)
	}

	inst, _ := instRepo.GetOrCreate(ctx, "BTCUSDT", "Binance")
	key := candleKey(inst.ID, model.OneMinute, base)
	v, ok := agg.candles.Load(key)
	if !ok {
		t.Fatal("expected candle entry to exist")
	}
	c := v.(*entry).candle

	if !c.Open.Equal(dec("100")) || !c.High.Equal(dec("110")) || !c.Low.Equal(dec("95")) || !c.Close.Equal(dec("105")) {
		t.Errorf("OHLC mismatch: O=%s H=%s L=%s C=%s", c.Open, c.High, c.Low, c.Close)
	}
	if c.TradesCount != 4 {
		t.Errorf("expected trades_count 4, got %d", c.TradesCount)
	}
	if !c.Volume.Equal(dec("5")) {
		t.Errorf("expected volume 5, got %s", c.Volume)
	}
}

func TestAggregator_TickBufferFlushesAtThreshold(t *testing.T) {
	instRepo := newFakeInstrumentRepo()
	tickRepo := &fakeTickRepo{}
	candleRepo := &fakeCandleRepo{}
	agg := New(Config{TickBufferSize: 3}, instRepo, tickRepo, candleRepo, metrics.NewRegistry())

	ctx := context.Background()
	base := time.Now()
	for i := 0; i < 3; i++ {
		_ = agg.Handle(ctx, tickAt(base.Add(time.Duration(i)*time.Second), "100", "1"))
	}

	tickRepo.mu.Lock()
	defer tickRepo.mu.Unlock()
	if tickRepo.count != 3 {
		t.Errorf("expected inline flush at buffer threshold, got %d stored", tickRepo.count)
	}
}
