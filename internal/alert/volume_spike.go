package alert

import (
	"fmt"
	"sync"
	"time"

	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

type volumeSample struct {
	at     time.Time
	volume decimal.Decimal
}

type volumeWindow struct {
	mu      sync.Mutex
	samples []volumeSample
}

// VolumeSpikeEvaluator holds a per-rule FIFO of recent (timestamp,
// volume) samples and compares the latest against the trailing average
// of the rest of the window.
type VolumeSpikeEvaluator struct {
	windows sync.Map // ruleID -> *volumeWindow
}

func (e *VolumeSpikeEvaluator) CanEvaluate(rule model.AlertRule) bool {
	return rule.Kind == model.RuleVolumeSpike
}

func (e *VolumeSpikeEvaluator) Evaluate(rule model.AlertRule, tick model.NormalizedTick) (bool, string) {
	v, _ := e.windows.LoadOrStore(rule.ID, &volumeWindow{})
	w := v.(*volumeWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, volumeSample{at: tick.EventTS, volume: tick.Volume})
	cutoff := tick.EventTS.Add(-rule.Period())
	kept := w.samples[:0]
	for _, s := range w.samples {
		if s.at.After(cutoff) {
			kept = append(kept, s)
		}
	}
	w.samples = kept

	if len(w.samples) < 2 {
		return false, ""
	}

	sum := decimal.Zero
	for _, s := range w.samples[:len(w.samples)-1] {
		sum = sum.Add(s.volume)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(w.samples) - 1)))
	if avg.IsZero() {
		return false, ""
	}

	ratio := tick.Volume.Div(avg)
	if ratio.GreaterThan(rule.Threshold) {
		return true, fmt.Sprintf("%s volume %s is %sx the trailing average %s over %s", tick.Symbol, tick.Volume, ratio.StringFixed(2), avg.StringFixed(4), rule.Period())
	}
	return false, ""
}
