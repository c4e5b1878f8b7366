package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Summary is the ledger list projection: one run joined with its result
// row aggregates.
type Summary struct {
	CalculationRun
	EmployeeCount int64   `json:"employee_count"`
	RowCount      int64   `json:"row_count"`
	TotalPayout   float64 `json:"total_payout"`
}

type Repository interface {
	InsertRun(ctx context.Context, db *gorm.DB, run *CalculationRun) error
	InsertRows(ctx context.Context, db *gorm.DB, rows []*ResultRow) error
	ListSummaries(ctx context.Context, db *gorm.DB) ([]Summary, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error
	DeleteRun(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
