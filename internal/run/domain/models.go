// Package domain contains the calculation run ledger models: one run per
// engine invocation plus its audited result rows.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusPaid     Status = "paid"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusPaid:
		return true
	}
	return false
}

// CalculationRun records one engine invocation for a period. Rows are
// immutable after the run commits; only Status changes afterwards.
type CalculationRun struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	Period    string       `json:"period" gorm:"type:text;not null;index"`
	Status    Status       `json:"status" gorm:"type:text;not null;default:'draft'"`
	RunBy     string       `json:"run_by" gorm:"type:text;not null"`
	RunAt     time.Time    `json:"run_at" gorm:"not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CalculationRun) TableName() string { return "calculation_runs" }

// Outcome classifies how one (employee, rule) evaluation ended.
type Outcome string

const (
	// OutcomeComputed means the driving value was resolved and tier
	// matching ran, even if no tier matched and the payout is zero.
	OutcomeComputed Outcome = "computed"
	// OutcomeConditionNotMet means eligibility failed before the driving
	// indicator was computed.
	OutcomeConditionNotMet Outcome = "condition_not_met"
	// OutcomeNoData means the driving indicator could not be resolved for
	// this employee and period.
	OutcomeNoData Outcome = "no_data"
)

// ConditionAudit records one eligibility check as it was evaluated.
type ConditionAudit struct {
	IndicatorCode  string   `json:"indicator_code"`
	Operator       string   `json:"operator"`
	ReferenceValue float64  `json:"reference_value"`
	Observed       *float64 `json:"observed"`
	Satisfied      bool     `json:"satisfied"`
}

// TierAudit records the tier that matched, with the payout terms as they
// stood at run time.
type TierAudit struct {
	RangeMin    float64  `json:"range_min"`
	RangeMax    *float64 `json:"range_max"`
	PayoutKind  string   `json:"payout_kind"`
	PayoutValue float64  `json:"payout_value"`
}

// Detail is the structured audit blob attached to every result row. It
// carries enough to replay the decision without the source facts.
type Detail struct {
	Outcome          Outcome          `json:"outcome"`
	DrivingIndicator string           `json:"driving_indicator"`
	Attainment       bool             `json:"attainment"`
	Observed         *float64         `json:"observed"`
	Conditions       []ConditionAudit `json:"conditions,omitempty"`
	MatchedTier      *TierAudit       `json:"matched_tier,omitempty"`
	Reason           string           `json:"reason,omitempty"`
}

// ResultRow is one (employee, rule) outcome inside a run. Zero-payout rows
// are persisted too so every skip has a visible reason.
type ResultRow struct {
	ID             snowflake.ID               `json:"id" gorm:"primaryKey"`
	RunID          snowflake.ID               `json:"run_id" gorm:"not null;index"`
	EmployeeID     string                     `json:"employee_id" gorm:"type:text;not null;index"`
	EmployeeName   string                     `json:"employee_name" gorm:"type:text;not null"`
	RuleID         snowflake.ID               `json:"rule_id" gorm:"not null"`
	RuleName       string                     `json:"rule_name" gorm:"type:text;not null"`
	IndicatorValue *float64                   `json:"indicator_value"`
	PayoutValue    float64                    `json:"payout_value" gorm:"not null"`
	Detail         datatypes.JSONType[Detail] `json:"detail"`
	CreatedAt      time.Time                  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ResultRow) TableName() string { return "calculation_results" }
