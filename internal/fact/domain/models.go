// Package domain contains persistence models for imported KPI facts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Fact stores one observed numerator/denominator pair for an indicator,
// employee and period. Facts are owned by the import boundary and are
// read-only for the calculation engine. The natural key is
// (period, employee_id, indicator_id); imports upsert on it.
type Fact struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	Period       string       `json:"period" gorm:"type:text;not null;uniqueIndex:ux_facts_natural,priority:1"`
	EmployeeID   string       `json:"employee_id" gorm:"type:text;not null;uniqueIndex:ux_facts_natural,priority:2"`
	EmployeeName string       `json:"employee_name" gorm:"type:text;not null"`
	IndicatorID  snowflake.ID `json:"indicator_id" gorm:"not null;index;uniqueIndex:ux_facts_natural,priority:3"`
	Numerator    float64      `json:"numerator" gorm:"not null"`
	Denominator  float64      `json:"denominator" gorm:"not null"`
	ImportID     string       `json:"import_id" gorm:"type:text;not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Fact) TableName() string { return "facts" }

// Employee identifies one employee observed in a period's facts, carrying
// the name snapshot supplied by the import.
type Employee struct {
	ID   string
	Name string
}
