package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleKind identifies which evaluator a rule dispatches to.
type RuleKind string

const (
	RulePriceAbove         RuleKind = "PriceAbove"
	RulePriceBelow         RuleKind = "PriceBelow"
	RulePriceChangePercent RuleKind = "PriceChangePercent"
	RuleVolumeSpike        RuleKind = "VolumeSpike"
	RuleVolatility         RuleKind = "Volatility"
)

// DefaultPeriodMinutes is used for rolling-window rule kinds when PeriodMinutes
// is unset.
const DefaultPeriodMinutes = 5

// AlertRule is a user-defined condition evaluated against every tick for
// its target instrument.
type AlertRule struct {
	ID            int64
	Name          string
	InstrumentID  int64
	Kind          RuleKind
	Threshold     decimal.Decimal
	PeriodMinutes int
	Active        bool
	CreatedAt     time.Time
}

// Period returns the rolling window duration for this rule, applying the
// default of 5 minutes when unset.
func (r AlertRule) Period() time.Duration {
	m := r.PeriodMinutes
	if m <= 0 {
		m = DefaultPeriodMinutes
	}
	return time.Duration(m) * time.Minute
}

// AlertHistory is an immutable record of a fired notification.
type AlertHistory struct {
	ID           int64
	RuleID       int64
	InstrumentID int64
	Message      string
	TriggeredAt  time.Time
}
