package alert

import (
	"fmt"

	"marketagg/internal/model"
)

// PriceThresholdEvaluator handles PriceAbove/PriceBelow. It is
// stateless: every tick is judged independently against the rule's
// threshold.
type PriceThresholdEvaluator struct{}

func (PriceThresholdEvaluator) CanEvaluate(rule model.AlertRule) bool {
	return rule.Kind == model.RulePriceAbove || rule.Kind == model.RulePriceBelow
}

func (PriceThresholdEvaluator) Evaluate(rule model.AlertRule, tick model.NormalizedTick) (bool, string) {
	switch rule.Kind {
	case model.RulePriceAbove:
		if tick.Price.GreaterThan(rule.Threshold) {
			return true, fmt.Sprintf("%s price %s rose above threshold %s", tick.Symbol, tick.Price, rule.Threshold)
		}
	case model.RulePriceBelow:
		if tick.Price.LessThan(rule.Threshold) {
			return true, fmt.Sprintf("%s price %s fell below threshold %s", tick.Symbol, tick.Price, rule.Threshold)
		}
	}
	return false, ""
}
