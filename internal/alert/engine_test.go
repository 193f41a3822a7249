package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketagg/internal/model"
	"marketagg/internal/notification"

	"github.com/shopspring/decimal"
)

type fakeRuleRepo struct {
	rules []model.AlertRule
}

func (f *fakeRuleRepo) GetAllActive(ctx context.Context) ([]model.AlertRule, error) {
	return f.rules, nil
}
func (f *fakeRuleRepo) GetByID(ctx context.Context, id int64) (model.AlertRule, error) {
	for _, r := range f.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return model.AlertRule{}, nil
}
func (f *fakeRuleRepo) Create(ctx context.Context, rule model.AlertRule) (model.AlertRule, error) {
	f.rules = append(f.rules, rule)
	return rule, nil
}
func (f *fakeRuleRepo) Update(ctx context.Context, rule model.AlertRule) error { return nil }
func (f *fakeRuleRepo) Delete(ctx context.Context, id int64) error            { return nil }

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []model.AlertHistory
}

func (f *fakeHistoryRepo) Add(ctx context.Context, h model.AlertHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, h)
	return nil
}
func (f *fakeHistoryRepo) Get(ctx context.Context, from, to int64, limit int) ([]model.AlertHistory, error) {
	return f.entries, nil
}

type fakeInstrumentRepoE struct{}

func (fakeInstrumentRepoE) GetOrCreate(ctx context.Context, symbol, exchange string) (model.Instrument, error) {
	return model.Instrument{ID: 1, Symbol: symbol, Exchange: exchange}, nil
}

type recordingChannel struct {
	mu   sync.Mutex
	name string
	got  []string
}

func (c *recordingChannel) Name() string { return c.name }
func (c *recordingChannel) Send(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, message)
	return nil
}

func TestEngine_TriggersAndAppendsHistoryAndNotifiesAllChannels(t *testing.T) {
	rules := &fakeRuleRepo{rules: []model.AlertRule{
		{ID: 1, InstrumentID: 1, Kind: model.RulePriceAbove, Threshold: decimal.RequireFromString("50000"), Active: true},
	}}
	history := &fakeHistoryRepo{}
	ch1 := &recordingChannel{name: "console"}
	ch2 := &recordingChannel{name: "file"}

	e := NewEngine(rules, history, fakeInstrumentRepoE{}, []notification.Channel{ch1, ch2}, nil, 300, 10)

	tick := model.NormalizedTick{Symbol: "BTCUSDT", Exchange: "Binance", Price: decimal.RequireFromString("50001"), Volume: decimal.RequireFromString("1"), EventTS: time.Now()}
	if err := e.Handle(context.Background(), tick); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(history.entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history.entries))
	}
	if len(ch1.got) != 1 || len(ch2.got) != 1 {
		t.Fatalf("expected both channels notified once, got %d and %d", len(ch1.got), len(ch2.got))
	}
}

func TestEngine_CooldownSuppressesRepeatTrigger(t *testing.T) {
	rules := &fakeRuleRepo{rules: []model.AlertRule{
		{ID: 1, InstrumentID: 1, Kind: model.RulePriceAbove, Threshold: decimal.RequireFromString("50000"), Active: true},
	}}
	history := &fakeHistoryRepo{}
	ch := &recordingChannel{name: "console"}

	e := NewEngine(rules, history, fakeInstrumentRepoE{}, []notification.Channel{ch}, nil, 300, 10)

	tick := model.NormalizedTick{Symbol: "BTCUSDT", Exchange: "Binance", Price: decimal.RequireFromString("50001"), Volume: decimal.RequireFromString("1"), EventTS: time.Now()}
	_ = e.Handle(context.Background(), tick)
	_ = e.Handle(context.Background(), tick)

	if len(history.entries) != 1 {
		t.Fatalf("expected cooldown to suppress second trigger, got %d history entries", len(history.entries))
	}
}

func TestEngine_RuleCacheIsReusedWithinTTL(t *testing.T) {
	rules := &fakeRuleRepo{rules: []model.AlertRule{
		{ID: 1, InstrumentID: 1, Kind: model.RulePriceAbove, Threshold: decimal.RequireFromString("50000"), Active: true},
	}}
	history := &fakeHistoryRepo{}
	e := NewEngine(rules, history, fakeInstrumentRepoE{}, nil, nil, 300, 10)

	ctx := context.Background()
	first, err := e.activeRules(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("unexpected activeRules result: %v %v", first, err)
	}

	rules.rules = append(rules.rules, model.AlertRule{ID: 2, InstrumentID: 1, Kind: model.RulePriceAbove, Active: true})
	second, _ := e.activeRules(ctx)
	if len(second) != 1 {
		t.Fatalf("expected cached result of length 1 within TTL, got %d", len(second))
	}
}
