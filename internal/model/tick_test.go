package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalize_UppercasesSymbolAndForcesUTC(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	raw := RawTick{
		Exchange:   "Binance",
		SourceType: SourceStreaming,
		Symbol:     "btcusdt",
		Price:      decimal.NewFromInt(50000),
		Volume:     decimal.NewFromFloat(1.5),
		EventTS:    time.Date(2024, 1, 1, 17, 30, 0, 0, loc),
		ReceivedAt: time.Date(2024, 1, 1, 17, 30, 1, 0, loc),
	}

	got := raw.Normalize()

	if got.Symbol != "BTCUSDT" {
		t.Errorf("expected upper-cased symbol, got %q", got.Symbol)
	}
	if got.EventTS.Location() != time.UTC {
		t.Errorf("expected UTC event timestamp, got %v", got.EventTS.Location())
	}
	if got.ReceivedAt.Location() != time.UTC {
		t.Errorf("expected UTC received timestamp, got %v", got.ReceivedAt.Location())
	}
}

func TestDedupKey_CollapsesAcrossSourceType(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a := RawTick{
		Exchange: "Binance", SourceType: SourceStreaming, Symbol: "btcusdt",
		Price: decimal.NewFromInt(50000), Volume: decimal.NewFromFloat(1.5),
		EventTS: ts, ReceivedAt: ts,
	}.Normalize()

	b := RawTick{
		Exchange: "Binance", SourceType: SourcePolled, Symbol: "BTCUSDT",
		Price: decimal.NewFromInt(50000), Volume: decimal.NewFromFloat(1.5),
		EventTS: ts, ReceivedAt: ts.Add(3 * time.Second),
	}.Normalize()

	if a.DedupKey() != b.DedupKey() {
		t.Errorf("expected equal dedup keys across source types, got %q vs %q", a.DedupKey(), b.DedupKey())
	}
}

func TestDedupKey_DistinctOnPriceDifference(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a := NormalizedTick{Exchange: "Binance", Symbol: "BTCUSDT", Price: decimal.NewFromInt(50000), Volume: decimal.NewFromFloat(1.5), EventTS: ts}
	b := NormalizedTick{Exchange: "Binance", Symbol: "BTCUSDT", Price: decimal.NewFromInt(50001), Volume: decimal.NewFromFloat(1.5), EventTS: ts}

	if a.DedupKey() == b.DedupKey() {
		t.Error("expected distinct dedup keys for differing price")
	}
}
