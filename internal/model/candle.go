package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Interval is the canonical short form of an aggregation window, as used
// on the wire and in persistence (e.g. "1m", "5m", "1h").
type Interval string

const (
	OneMinute   Interval = "1m"
	FiveMinutes Interval = "5m"
	OneHour     Interval = "1h"
)

// Duration returns the time.Duration this interval represents.
// Returns 0 for an unrecognized interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case OneMinute:
		return time.Minute
	case FiveMinutes:
		return 5 * time.Minute
	case OneHour:
		return time.Hour
	default:
		return 0
	}
}

// OpenTime truncates ts down to the start of the bucket this interval
// would assign it to: floor(ts / interval) * interval.
func (i Interval) OpenTime(ts time.Time) time.Time {
	d := i.Duration()
	if d <= 0 {
		return ts.UTC()
	}
	return ts.UTC().Truncate(d)
}

// DefaultIntervals is the spec default candle interval set.
func DefaultIntervals() []Interval {
	return []Interval{OneMinute, FiveMinutes, OneHour}
}

// Candle is the OHLCV aggregate for one instrument over one interval
// bucket. Composite identity is (InstrumentID, Interval, OpenTime).
type Candle struct {
	InstrumentID int64
	Interval     Interval
	OpenTime     time.Time
	CloseTime    time.Time
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       decimal.Decimal
	TradesCount  int
}

// NewCandle creates an empty candle shell for the given bucket; fields are
// populated by the first ApplyTick call.
func NewCandle(instrumentID int64, interval Interval, openTime time.Time) Candle {
	return Candle{
		InstrumentID: instrumentID,
		Interval:     interval,
		OpenTime:     openTime,
		CloseTime:    openTime.Add(interval.Duration()),
		Low:          decimal.Zero,
	}
}

// ApplyTick folds a single trade into the candle. Not safe for concurrent
// use on the same Candle value — callers serialize per (instrument,
// interval, open_time) key.
func (c *Candle) ApplyTick(price, volume decimal.Decimal) {
	if c.TradesCount == 0 {
		c.Open = price
		c.High = price
		c.Low = price
	} else {
		if price.GreaterThan(c.High) {
			c.High = price
		}
		if c.Low.IsZero() || price.LessThan(c.Low) {
			c.Low = price
		}
	}
	c.Close = price
	c.Volume = c.Volume.Add(volume)
	c.TradesCount++
}

// Key returns the composite map key (instrument_id, interval, open_time).
func (c *Candle) Key() string {
	return itoa64(c.InstrumentID) + ":" + string(c.Interval) + ":" + c.OpenTime.Format(time.RFC3339)
}
