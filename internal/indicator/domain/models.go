// Package domain contains the indicator catalog models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind classifies how an indicator's value is computed.
type Kind string

const (
	KindPercentage Kind = "percentage"
	KindQuantity   Kind = "quantity"
	KindValue      Kind = "value"
	KindDerived    Kind = "derived"
)

// Valid reports whether the kind is a known value.
func (k Kind) Valid() bool {
	switch k {
	case KindPercentage, KindQuantity, KindValue, KindDerived:
		return true
	default:
		return false
	}
}

// Unit is the display unit of an indicator.
type Unit string

const (
	UnitPercent  Unit = "%"
	UnitCount    Unit = "unit"
	UnitCurrency Unit = "currency"
	UnitSeconds  Unit = "seconds"
)

// Valid reports whether the unit is a known value.
func (u Unit) Valid() bool {
	switch u {
	case UnitPercent, UnitCount, UnitCurrency, UnitSeconds:
		return true
	default:
		return false
	}
}

// TargetPrefix marks the paired target indicator of a quantity or value
// indicator; VENDAS pairs with META_VENDAS. The engine uses the pair to
// compute attainment.
const TargetPrefix = "META_"

// Indicator defines a KPI, either observed from facts (base kinds) or
// computed from an expression over base indicators (derived).
type Indicator struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Code        string       `json:"code" gorm:"type:text;not null;uniqueIndex:ux_indicators_code"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	Unit        Unit         `json:"unit" gorm:"type:text;not null"`
	Kind        Kind         `json:"kind" gorm:"type:text;not null"`
	Expression  *string      `json:"expression,omitempty" gorm:"type:text"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Indicator) TableName() string { return "indicators" }
