package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"marketagg/internal/model"

	"github.com/shopspring/decimal"
)

// AlertRuleRepository manages alert rule definitions.
type AlertRuleRepository struct {
	db *sql.DB
}

func NewAlertRuleRepository(db *sql.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

func (r *AlertRuleRepository) GetAllActive(ctx context.Context) ([]model.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, instrument_id, kind, threshold, period_minutes, active, created_at
		 FROM alert_rules WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query active rules: %w", err)
	}
	defer rows.Close()
	return scanRules(rows)
}

func (r *AlertRuleRepository) GetByID(ctx context.Context, id int64) (model.AlertRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, instrument_id, kind, threshold, period_minutes, active, created_at
		 FROM alert_rules WHERE id = ?`, id)
	return scanRule(row)
}

func (r *AlertRuleRepository) Create(ctx context.Context, rule model.AlertRule) (model.AlertRule, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_rules (name, instrument_id, kind, threshold, period_minutes, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.InstrumentID, string(rule.Kind), rule.Threshold.String(), rule.PeriodMinutes, boolToInt(rule.Active), now.UnixMilli(),
	)
	if err != nil {
		return model.AlertRule{}, fmt.Errorf("sqlite: create rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.AlertRule{}, fmt.Errorf("sqlite: rule last insert id: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = now
	return rule, nil
}

func (r *AlertRuleRepository) Update(ctx context.Context, rule model.AlertRule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_rules SET name = ?, instrument_id = ?, kind = ?, threshold = ?, period_minutes = ?, active = ?
		 WHERE id = ?`,
		rule.Name, rule.InstrumentID, string(rule.Kind), rule.Threshold.String(), rule.PeriodMinutes, boolToInt(rule.Active), rule.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update rule: %w", err)
	}
	return nil
}

func (r *AlertRuleRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete rule: %w", err)
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]model.AlertRule, error) {
	var out []model.AlertRule
	for rows.Next() {
		rule, err := scanRuleRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which
// expose Scan with the same signature.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (model.AlertRule, error) {
	return scanRuleRow(row)
}

func scanRuleRow(row rowScanner) (model.AlertRule, error) {
	var (
		rule          model.AlertRule
		kind          string
		threshold     string
		active        int
		createdAtMs   int64
	)
	if err := row.Scan(&rule.ID, &rule.Name, &rule.InstrumentID, &kind, &threshold, &rule.PeriodMinutes, &active, &createdAtMs); err != nil {
		return model.AlertRule{}, fmt.Errorf("sqlite: scan rule: %w", err)
	}
	rule.Kind = model.RuleKind(kind)
	d, err := decimal.NewFromString(threshold)
	if err != nil {
		return model.AlertRule{}, fmt.Errorf("sqlite: parse rule threshold: %w", err)
	}
	rule.Threshold = d
	rule.Active = active != 0
	rule.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	return rule, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
