package alert

import (
	"fmt"
	"sync"
	"time"

	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

type priceChangeBaseline struct {
	mu          sync.Mutex
	firstPrice  decimal.Decimal
	periodStart time.Time
}

// PriceChangePercentEvaluator tracks a (first_price, period_start)
// baseline per rule, keyed by rule id since the rolling period length
// is itself per-rule configuration (§4.5, §8 invariant 6).
type PriceChangePercentEvaluator struct {
	state sync.Map // ruleID -> *priceChangeBaseline
}

func (e *PriceChangePercentEvaluator) CanEvaluate(rule model.AlertRule) bool {
	return rule.Kind == model.RulePriceChangePercent
}

func (e *PriceChangePercentEvaluator) Evaluate(rule model.AlertRule, tick model.NormalizedTick) (bool, string) {
	v, _ := e.state.LoadOrStore(rule.ID, &priceChangeBaseline{})
	b := v.(*priceChangeBaseline)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.periodStart.IsZero() {
		b.firstPrice = tick.Price
		b.periodStart = tick.EventTS
		return false, ""
	}

	if tick.EventTS.Sub(b.periodStart) > rule.Period() {
		b.firstPrice = tick.Price
		b.periodStart = tick.EventTS
		return false, ""
	}

	if b.firstPrice.IsZero() {
		return false, ""
	}

	change := tick.Price.Sub(b.firstPrice).Div(b.firstPrice).Mul(decimal.NewFromInt(100))
	if change.Abs().GreaterThan(rule.Threshold) {
		return true, fmt.Sprintf("%s price changed %s%% over %s (from %s to %s)", tick.Symbol, change.StringFixed(2), rule.Period(), b.firstPrice, tick.Price)
	}
	return false, ""
}
