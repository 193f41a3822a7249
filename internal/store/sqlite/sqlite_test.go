package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInstrumentRepository_GetOrCreateIsIdempotent(t *testing.T) {
	tdb := openTestDB(t)
	repo := NewInstrumentRepository(tdb)

	first, err := repo.GetOrCreate(context.Background(), "BTCUSDT", "Binance")
	if err != nil {
		t.Fatalf("first GetOrCreate: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected non-zero instrument id")
	}
	if first.Base != "BTC" || first.Quote != "USDT" {
		t.Errorf("unexpected split: base=%s quote=%s", first.Base, first.Quote)
	}

	second, err := repo.GetOrCreate(context.Background(), "BTCUSDT", "Binance")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same instrument id, got %d and %d", first.ID, second.ID)
	}
}

func TestCandleRepository_BulkUpsertReplacesOnConflict(t *testing.T) {
	tdb := openTestDB(t)
	instruments := NewInstrumentRepository(tdb)
	inst, err := instruments.GetOrCreate(context.Background(), "ETHUSDT", "Binance")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	candles := NewCandleRepository(tdb)
	openTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := model.Candle{
		InstrumentID: inst.ID, Interval: model.OneMinute, OpenTime: openTime, CloseTime: openTime.Add(time.Minute),
		Open: decimal.RequireFromString("100"), High: decimal.RequireFromString("100"),
		Low: decimal.RequireFromString("100"), Close: decimal.RequireFromString("100"),
		Volume: decimal.RequireFromString("1"), TradesCount: 1,
	}
	if err := candles.BulkUpsert(context.Background(), []model.Candle{c}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	c.Close = decimal.RequireFromString("110")
	c.High = decimal.RequireFromString("110")
	c.TradesCount = 2
	if err := candles.BulkUpsert(context.Background(), []model.Candle{c}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	var rows int
	if err := tdb.QueryRow(`SELECT COUNT(*) FROM candles WHERE instrument_id = ?`, inst.ID).Scan(&rows); err != nil {
		t.Fatalf("count candles: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected 1 candle row after conflicting upsert, got %d", rows)
	}
	var closeStr, highStr string
	var trades int
	if err := tdb.QueryRow(`SELECT close, high, trades_count FROM candles WHERE instrument_id = ? AND interval = ? AND open_time = ?`,
		inst.ID, string(model.OneMinute), openTime.UnixMilli()).Scan(&closeStr, &highStr, &trades); err != nil {
		t.Fatalf("read back candle: %v", err)
	}
	if closeStr != "110" || highStr != "110" || trades != 2 {
		t.Errorf("expected replaced row close=110 high=110 trades=2, got close=%s high=%s trades=%d", closeStr, highStr, trades)
	}
}

func TestAlertRuleRepository_CreateAndGetAllActive(t *testing.T) {
	tdb := openTestDB(t)
	instruments := NewInstrumentRepository(tdb)
	inst, _ := instruments.GetOrCreate(context.Background(), "BTCUSDT", "Binance")

	rules := NewAlertRuleRepository(tdb)
	created, err := rules.Create(context.Background(), model.AlertRule{
		Name: "btc-above-50k", InstrumentID: inst.ID, Kind: model.RulePriceAbove,
		Threshold: decimal.RequireFromString("50000"), Active: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected non-zero rule id")
	}

	active, err := rules.GetAllActive(context.Background())
	if err != nil {
		t.Fatalf("GetAllActive: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active rule, got %d", len(active))
	}
	if !active[0].Threshold.Equal(decimal.RequireFromString("50000")) {
		t.Errorf("unexpected threshold: %s", active[0].Threshold)
	}
}

func TestAlertHistoryRepository_AddAndGet(t *testing.T) {
	tdb := openTestDB(t)
	history := NewAlertHistoryRepository(tdb)

	now := time.Now().UTC()
	if err := history.Add(context.Background(), model.AlertHistory{RuleID: 1, InstrumentID: 1, Message: "test", TriggeredAt: now}); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := history.Get(context.Background(), now.Add(-time.Minute).UnixMilli(), now.Add(time.Minute).UnixMilli(), 10)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(got))
	}
}

func TestExchangeStatusRepository_UpsertAndGet(t *testing.T) {
	tdb := openTestDB(t)
	repo := NewExchangeStatusRepository(tdb)

	status := model.ExchangeStatus{Exchange: "Binance", SourceType: model.SourceStreaming, IsOnline: true, UpdatedAt: time.Now().UTC()}
	if err := repo.Upsert(context.Background(), status); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.Get(context.Background(), "Binance", model.SourceStreaming)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsOnline {
		t.Error("expected online status")
	}

	status.IsOnline = false
	status.LastError = "disconnected"
	if err := repo.Upsert(context.Background(), status); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = repo.Get(context.Background(), "Binance", model.SourceStreaming)
	if err != nil {
		t.Fatalf("re-get: %v", err)
	}
	if got.IsOnline || got.LastError != "disconnected" {
		t.Errorf("expected updated offline status, got %+v", got)
	}
}
