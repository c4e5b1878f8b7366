// Package repository implements fact persistence and the period-scoped reads
// used by the calculation engine.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/fact/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

// New builds the gorm-backed fact repository.
func New() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, facts []*domain.Fact) error {
	if len(facts) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "period"},
			{Name: "employee_id"},
			{Name: "indicator_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"employee_name",
			"numerator",
			"denominator",
			"import_id",
			"updated_at",
		}),
	}).Create(facts).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, period, employeeID string, indicatorID snowflake.ID) (*domain.Fact, error) {
	var row domain.Fact
	err := db.WithContext(ctx).
		Where("period = ? AND employee_id = ? AND indicator_id = ?", period, employeeID, indicatorID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repo) ListByPeriod(ctx context.Context, db *gorm.DB, period string) ([]domain.Fact, error) {
	var rows []domain.Fact
	err := db.WithContext(ctx).
		Where("period = ?", period).
		Order("employee_id ASC, indicator_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repo) DistinctEmployees(ctx context.Context, db *gorm.DB, period string) ([]domain.Employee, error) {
	var rows []domain.Employee
	err := db.WithContext(ctx).Raw(
		`SELECT employee_id AS id, MAX(employee_name) AS name
		 FROM facts
		 WHERE period = ?
		 GROUP BY employee_id
		 ORDER BY employee_id`,
		period,
	).Scan(&rows).Error
	return rows, err
}

func (r *repo) CountByPeriod(ctx context.Context, db *gorm.DB, period string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Fact{}).Where("period = ?", period).Count(&count).Error
	return count, err
}

func (r *repo) ReferencesIndicator(ctx context.Context, db *gorm.DB, indicatorID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Fact{}).Where("indicator_id = ?", indicatorID).Count(&count).Error
	return count > 0, err
}
