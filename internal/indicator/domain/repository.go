package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, indicator *Indicator) error
	Update(ctx context.Context, db *gorm.DB, indicator *Indicator) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Indicator, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Indicator, error)
	List(ctx context.Context, db *gorm.DB) ([]Indicator, error)
}
