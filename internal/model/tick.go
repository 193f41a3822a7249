package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SourceType distinguishes how a tick reached the pipeline.
type SourceType string

const (
	SourceStreaming SourceType = "streaming"
	SourcePolled    SourceType = "polled"
)

// RawTick is a trade event as reported by an exchange adapter, before
// normalization. Symbol casing is whatever the exchange sent.
type RawTick struct {
	Exchange   string
	SourceType SourceType
	Symbol     string
	Price      decimal.Decimal
	Volume     decimal.Decimal
	EventTS    time.Time // exchange-provided trade time
	ReceivedAt time.Time // assigned on ingress
}

// NormalizedTick is a RawTick with symbol canonicalized to upper-case
// invariant and timestamps forced to UTC. Immutable after creation.
type NormalizedTick struct {
	Exchange   string
	SourceType SourceType
	Symbol     string
	Price      decimal.Decimal
	Volume     decimal.Decimal
	EventTS    time.Time
	ReceivedAt time.Time
}

// Normalize upper-cases the symbol and forces both timestamps to UTC.
func (t RawTick) Normalize() NormalizedTick {
	return NormalizedTick{
		Exchange:   t.Exchange,
		SourceType: t.SourceType,
		Symbol:     strings.ToUpper(t.Symbol),
		Price:      t.Price,
		Volume:     t.Volume,
		EventTS:    t.EventTS.UTC(),
		ReceivedAt: t.ReceivedAt.UTC(),
	}
}

// DedupKey returns the canonical deduplication identity for this tick.
// SourceType and ReceivedAt are deliberately excluded: the same trade
// reported by the streaming and polled source of the same exchange must
// collapse to the same key.
func (t NormalizedTick) DedupKey() string {
	var b strings.Builder
	b.Grow(len(t.Exchange) + len(t.Symbol) + 48)
	b.WriteString(t.Exchange)
	b.WriteByte(':')
	b.WriteString(t.Symbol)
	b.WriteByte(':')
	b.WriteString(t.Price.String())
	b.WriteByte(':')
	b.WriteString(t.Volume.String())
	b.WriteByte(':')
	b.WriteString(t.EventTS.Format(time.RFC3339Nano))
	return b.String()
}

// InstrumentKey returns the (symbol, exchange) identity used to look up
// or create an Instrument.
func (t NormalizedTick) InstrumentKey() (symbol, exchange string) {
	return t.Symbol, t.Exchange
}
