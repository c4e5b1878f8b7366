package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/run/domain"
	"gorm.io/gorm"
)

type repo struct{}

func New() domain.Repository {
	return &repo{}
}

func (r *repo) InsertRun(ctx context.Context, db *gorm.DB, run *domain.CalculationRun) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) InsertRows(ctx context.Context, db *gorm.DB, rows []*domain.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(rows, 200).Error
}

func (r *repo) ListSummaries(ctx context.Context, db *gorm.DB) ([]domain.Summary, error) {
	var summaries []domain.Summary
	err := db.WithContext(ctx).Raw(`
		SELECT
			cr.*,
			COUNT(DISTINCT res.employee_id) AS employee_count,
			COUNT(res.id) AS row_count,
			COALESCE(SUM(res.payout_value), 0) AS total_payout
		FROM calculation_runs cr
		LEFT JOIN calculation_results res ON res.run_id = cr.id
		GROUP BY cr.id
		ORDER BY cr.run_at DESC
	`).Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return db.WithContext(ctx).
		Model(&domain.CalculationRun{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")}).Error
}

func (r *repo) DeleteRun(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Where("run_id = ?", id).Delete(&domain.ResultRow{}).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.CalculationRun{}).Error
}
