// Package repository implements the indicator catalog persistence contract.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/indicator/domain"
	"gorm.io/gorm"
)

type repo struct{}

// New builds the gorm-backed indicator repository.
func New() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, indicator *domain.Indicator) error {
	return db.WithContext(ctx).Create(indicator).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, indicator *domain.Indicator) error {
	return db.WithContext(ctx).Save(indicator).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Indicator, error) {
	var row domain.Indicator
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Indicator, error) {
	var row domain.Indicator
	err := db.WithContext(ctx).Where("code = ?", code).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Indicator, error) {
	var rows []domain.Indicator
	err := db.WithContext(ctx).Order("code ASC").Find(&rows).Error
	return rows, err
}
