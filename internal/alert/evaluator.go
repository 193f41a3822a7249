// Package alert implements the stateful per-rule evaluators and the
// alert engine tick handler that dispatches to them.
package alert

import (
	"marketagg/internal/model"
)

// Evaluator is one rule-kind's stateful evaluation strategy. The engine
// dispatches each rule to the first evaluator whose CanEvaluate returns
// true, mirroring the teacher's Indicator interface
// (Name/Update/Value/Ready) generalized to a predicate-dispatch shape.
type Evaluator interface {
	CanEvaluate(rule model.AlertRule) bool
	// Evaluate folds tick into the evaluator's state for rule (stateful
	// evaluators key their windows by rule id) and reports whether the
	// rule fired, plus a human message.
	Evaluate(rule model.AlertRule, tick model.NormalizedTick) (triggered bool, message string)
}
