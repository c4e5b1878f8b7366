// Package repository implements the rule aggregate persistence contract.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/rule/domain"
	"gorm.io/gorm"
)

type repo struct{}

// New builds the gorm-backed rule repository.
func New() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Create(rule).Error
}

func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, rule *domain.Rule) error {
	return db.WithContext(ctx).Omit("Tiers", "Conditions").Save(rule).Error
}

func (r *repo) ReplaceChildren(ctx context.Context, db *gorm.DB, ruleID snowflake.ID, tiers []domain.Tier, conditions []domain.Condition) error {
	if err := db.WithContext(ctx).Where("rule_id = ?", ruleID).Delete(&domain.Tier{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("rule_id = ?", ruleID).Delete(&domain.Condition{}).Error; err != nil {
		return err
	}
	if len(tiers) > 0 {
		if err := db.WithContext(ctx).Create(&tiers).Error; err != nil {
			return err
		}
	}
	if len(conditions) > 0 {
		if err := db.WithContext(ctx).Create(&conditions).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Where("rule_id = ?", id).Delete(&domain.Tier{}).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("rule_id = ?", id).Delete(&domain.Condition{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Rule{}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rule, error) {
	var row domain.Rule
	err := db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Conditions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Rule, error) {
	var rows []domain.Rule
	err := db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Conditions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) ListInForce(ctx context.Context, db *gorm.DB, period string) ([]domain.Rule, error) {
	var rows []domain.Rule
	err := db.WithContext(ctx).
		Preload("Tiers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Conditions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", period).
		Where("valid_until IS NULL OR valid_until >= ?", period).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) ReferencesIndicator(ctx context.Context, db *gorm.DB, indicatorID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Tier{}).Where("indicator_id = ?", indicatorID).Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	err = db.WithContext(ctx).Model(&domain.Condition{}).Where("indicator_id = ?", indicatorID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
