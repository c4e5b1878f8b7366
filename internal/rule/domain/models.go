// Package domain contains the payout rule aggregate: rules, their ordered
// tiers and their eligibility conditions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/pkg/period"
)

// PayoutKind declares how a tier's payout value is meant to be read.
// The engine pays the fixed numeric value either way; translating
// percent_of_indicator into money is layered on top by the payroll side.
type PayoutKind string

const (
	PayoutFixedAmount        PayoutKind = "fixed_amount"
	PayoutPercentOfIndicator PayoutKind = "percent_of_indicator"
)

// Valid reports whether the payout kind is a known value.
func (k PayoutKind) Valid() bool {
	switch k {
	case PayoutFixedAmount, PayoutPercentOfIndicator:
		return true
	default:
		return false
	}
}

// Operator is a comparison used by eligibility conditions.
type Operator string

const (
	OpGTE Operator = ">="
	OpLTE Operator = "<="
	OpGT  Operator = ">"
	OpLT  Operator = "<"
	OpEQ  Operator = "=="
	OpNEQ Operator = "!="
)

// Valid reports whether the operator is a known value.
func (o Operator) Valid() bool {
	switch o {
	case OpGTE, OpLTE, OpGT, OpLT, OpEQ, OpNEQ:
		return true
	default:
		return false
	}
}

// Compare applies the operator to an observed value and a reference value.
func (o Operator) Compare(observed, reference float64) bool {
	switch o {
	case OpGTE:
		return observed >= reference
	case OpLTE:
		return observed <= reference
	case OpGT:
		return observed > reference
	case OpLT:
		return observed < reference
	case OpEQ:
		return observed == reference
	case OpNEQ:
		return observed != reference
	default:
		return false
	}
}

// Rule is a named, time-bounded payout policy. Its tiers and conditions are
// written as one aggregate: a rule write replaces the full child set.
type Rule struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	ValidFrom   *string      `json:"valid_from,omitempty" gorm:"type:text"`
	ValidUntil  *string      `json:"valid_until,omitempty" gorm:"type:text"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Tiers      []Tier      `json:"tiers" gorm:"foreignKey:RuleID"`
	Conditions []Condition `json:"conditions" gorm:"foreignKey:RuleID"`
}

// TableName sets the database table name.
func (Rule) TableName() string { return "rules" }

// InForce reports whether the rule applies to the given period. Bounds are
// open-ended when nil.
func (r *Rule) InForce(p string) bool {
	return r.Active && period.Contains(p, r.ValidFrom, r.ValidUntil)
}

// Tier maps a driving-value range to a payout. Ranges are closed on both
// sides; a nil RangeMax is unbounded above. Tier order matters: the engine
// pays the first matching tier.
type Tier struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	RuleID      snowflake.ID `json:"rule_id" gorm:"not null;index"`
	IndicatorID snowflake.ID `json:"indicator_id" gorm:"not null;index"`
	RangeMin    float64      `json:"range_min" gorm:"not null"`
	RangeMax    *float64     `json:"range_max,omitempty"`
	PayoutValue float64      `json:"payout_value" gorm:"not null"`
	PayoutKind  PayoutKind   `json:"payout_kind" gorm:"type:text;not null"`
	Position    int          `json:"position" gorm:"not null"`
}

// TableName sets the database table name.
func (Tier) TableName() string { return "rule_tiers" }

// Matches reports whether value falls inside the tier's range.
func (t *Tier) Matches(value float64) bool {
	if value < t.RangeMin {
		return false
	}
	return t.RangeMax == nil || value <= *t.RangeMax
}

// Condition is an eligibility predicate over an indicator's value. All
// conditions of a rule must hold; an indicator with no data fails the
// condition.
type Condition struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	RuleID         snowflake.ID `json:"rule_id" gorm:"not null;index"`
	IndicatorID    snowflake.ID `json:"indicator_id" gorm:"not null;index"`
	Operator       Operator     `json:"operator" gorm:"type:text;not null"`
	ReferenceValue float64      `json:"reference_value" gorm:"not null"`
	Position       int          `json:"position" gorm:"not null"`
}

// TableName sets the database table name.
func (Condition) TableName() string { return "rule_conditions" }
