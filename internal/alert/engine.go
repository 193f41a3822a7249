package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"marketagg/internal/metrics"
	"marketagg/internal/model"
	"marketagg/internal/notification"
)

// Engine is the alert engine tick handler described in §4.5: per-tick
// rule scan, evaluator dispatch, cooldown gating, concurrent notify
// fan-out, and history append.
type Engine struct {
	ruleRepo    model.AlertRuleRepository
	historyRepo model.AlertHistoryRepository
	instruments model.InstrumentRepository
	channels    []notification.Channel
	metrics     *metrics.Registry

	evaluators []Evaluator

	cooldown sync.Map // ruleID -> time.Time (last triggered, atomic via map ops)

	cooldownWindow    time.Duration
	maxConcurrentSend int

	ruleCacheMu   sync.RWMutex
	ruleCache     []model.AlertRule
	ruleCacheAt   time.Time
	ruleCacheTTL  time.Duration
}

// NewEngine wires the four standard evaluators in dispatch order.
func NewEngine(ruleRepo model.AlertRuleRepository, historyRepo model.AlertHistoryRepository, instruments model.InstrumentRepository, channels []notification.Channel, reg *metrics.Registry, cooldownSeconds, maxConcurrentNotifications int) *Engine {
	if cooldownSeconds <= 0 {
		cooldownSeconds = 300
	}
	if maxConcurrentNotifications <= 0 {
		maxConcurrentNotifications = 10
	}
	return &Engine{
		ruleRepo:    ruleRepo,
		historyRepo: historyRepo,
		instruments: instruments,
		channels:    channels,
		metrics:     reg,
		evaluators: []Evaluator{
			PriceThresholdEvaluator{},
			&PriceChangePercentEvaluator{},
			&VolumeSpikeEvaluator{},
			&VolatilityEvaluator{},
		},
		cooldownWindow:    time.Duration(cooldownSeconds) * time.Second,
		maxConcurrentSend: maxConcurrentNotifications,
		ruleCacheTTL:      5 * time.Second,
	}
}

func (e *Engine) Name() string { return "alert-engine" }

// Handle resolves the tick's instrument, scans active rules targeting
// it, evaluates each against its dispatched evaluator, and notifies on
// trigger outside of cooldown.
func (e *Engine) Handle(ctx context.Context, tick model.NormalizedTick) error {
	inst, err := e.instruments.GetOrCreate(ctx, tick.Symbol, tick.Exchange)
	if err != nil {
		return err
	}

	rules, err := e.activeRules(ctx)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if rule.InstrumentID != inst.ID {
			continue
		}
		e.evaluateRule(ctx, rule, tick)
	}
	return nil
}

// activeRules serves GetAllActive from a short-TTL cache so a high
// tick rate doesn't hit the repository on every single tick, per the
// spec's recommendation in §4.5 and the open question in §9.
func (e *Engine) activeRules(ctx context.Context) ([]model.AlertRule, error) {
	e.ruleCacheMu.RLock()
	if time.Since(e.ruleCacheAt) < e.ruleCacheTTL {
		cached := e.ruleCache
		e.ruleCacheMu.RUnlock()
		return cached, nil
	}
	e.ruleCacheMu.RUnlock()

	rules, err := e.ruleRepo.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	e.ruleCacheMu.Lock()
	e.ruleCache = rules
	e.ruleCacheAt = time.Now()
	e.ruleCacheMu.Unlock()
	return rules, nil
}

func (e *Engine) evaluateRule(ctx context.Context, rule model.AlertRule, tick model.NormalizedTick) {
	for _, ev := range e.evaluators {
		if !ev.CanEvaluate(rule) {
			continue
		}
		triggered, message := ev.Evaluate(rule, tick)
		if !triggered {
			return
		}
		e.fire(ctx, rule, message)
		return
	}
}

func (e *Engine) fire(ctx context.Context, rule model.AlertRule, message string) {
	now := time.Now()
	if v, ok := e.cooldown.Load(rule.ID); ok {
		if now.Sub(v.(time.Time)) < e.cooldownWindow {
			return
		}
	}
	e.cooldown.Store(rule.ID, now)

	history := model.AlertHistory{RuleID: rule.ID, InstrumentID: rule.InstrumentID, Message: message, TriggeredAt: now.UTC()}
	if err := e.historyRepo.Add(ctx, history); err != nil {
		log.Printf("[alert] history append failed for rule %d: %v", rule.ID, err)
	}

	e.notifyAll(ctx, message)
}

// notifyAll fans message out to every channel concurrently, bounded by
// maxConcurrentSend via a buffered-channel semaphore, the idiom the
// corpus uses for bounded parallelism absent a worker-pool library.
func (e *Engine) notifyAll(ctx context.Context, message string) {
	if len(e.channels) == 0 {
		return
	}
	sem := make(chan struct{}, e.maxConcurrentSend)
	var wg sync.WaitGroup
	for _, ch := range e.channels {
		ch := ch
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := ch.Send(ctx, message); err != nil {
				log.Printf("[alert] channel %q send failed: %v", ch.Name(), err)
			}
		}()
	}
	wg.Wait()
}
