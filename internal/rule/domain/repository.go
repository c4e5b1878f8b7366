package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	UpdateHeader(ctx context.Context, db *gorm.DB, rule *Rule) error
	ReplaceChildren(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, tiers []Tier, conditions []Condition) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB) ([]Rule, error)
	ListInForce(ctx context.Context, db *gorm.DB, period string) ([]Rule, error)
	ReferencesIndicator(ctx context.Context, db *gorm.DB, indicatorID snowflake.ID) (bool, error)
}
