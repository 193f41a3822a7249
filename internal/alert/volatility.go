package alert

import (
	"fmt"
	"math"
	"sync"
	"time"

	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

type priceSample struct {
	at    time.Time
	price decimal.Decimal
}

type volatilityWindow struct {
	mu      sync.Mutex
	samples []priceSample
}

// VolatilityEvaluator holds a per-rule FIFO of recent (timestamp,
// price) samples and triggers on the population standard deviation of
// percent returns between consecutive samples.
type VolatilityEvaluator struct {
	windows sync.Map // ruleID -> *volatilityWindow
}

func (e *VolatilityEvaluator) CanEvaluate(rule model.AlertRule) bool {
	return rule.Kind == model.RuleVolatility
}

func (e *VolatilityEvaluator) Evaluate(rule model.AlertRule, tick model.NormalizedTick) (bool, string) {
	v, _ := e.windows.LoadOrStore(rule.ID, &volatilityWindow{})
	w := v.(*volatilityWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, priceSample{at: tick.EventTS, price: tick.Price})
	cutoff := tick.EventTS.Add(-rule.Period())
	kept := w.samples[:0]
	for _, s := range w.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.samples = kept

	if len(w.samples) < 3 {
		return false, ""
	}

	var returns []float64
	for i := 1; i < len(w.samples); i++ {
		prev := w.samples[i-1].price
		if prev.IsZero() {
			continue
		}
		ret, _ := w.samples[i].price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Float64()
		returns = append(returns, ret)
	}
	if len(returns) == 0 {
		return false, ""
	}

	vol := populationStdDev(returns)
	thresholdF, _ := rule.Threshold.Float64()
	if vol > thresholdF {
		return true, fmt.Sprintf("%s volatility %.4f%% exceeds threshold %.4f%% over %s", tick.Symbol, vol, thresholdF, rule.Period())
	}
	return false, ""
}

func populationStdDev(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	variance := 0.0
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))

	return math.Sqrt(variance)
}
