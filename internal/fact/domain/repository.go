package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, facts []*Fact) error
	Find(ctx context.Context, db *gorm.DB, period, employeeID string, indicatorID snowflake.ID) (*Fact, error)
	ListByPeriod(ctx context.Context, db *gorm.DB, period string) ([]Fact, error)
	DistinctEmployees(ctx context.Context, db *gorm.DB, period string) ([]Employee, error)
	CountByPeriod(ctx context.Context, db *gorm.DB, period string) (int64, error)
	ReferencesIndicator(ctx context.Context, db *gorm.DB, indicatorID snowflake.ID) (bool, error)
}
