package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/run/domain"
	"github.com/kpiflow/incento/pkg/db/option"
	"github.com/kpiflow/incento/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
	runs repository.Repository[domain.CalculationRun]
	rows repository.Repository[domain.ResultRow]
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("run.service"),
		repo: p.Repo,
		runs: repository.ProvideStore[domain.CalculationRun](p.DB),
		rows: repository.ProvideStore[domain.ResultRow](p.DB),
	}
}

func (s *Service) List(ctx context.Context) ([]domain.SummaryResponse, error) {
	summaries, err := s.repo.ListSummaries(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.SummaryResponse, 0, len(summaries))
	for i := range summaries {
		resp = append(resp, toSummary(&summaries[i]))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.DetailResponse, error) {
	runID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	run, err := s.runs.FindOne(ctx, &domain.CalculationRun{ID: runID})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrNotFound
	}

	rows, err := s.rows.Find(ctx, &domain.ResultRow{RunID: runID},
		option.WithOrder("employee_id ASC, rule_id ASC"))
	if err != nil {
		return nil, err
	}

	detail := &domain.DetailResponse{
		SummaryResponse: domain.SummaryResponse{
			ID:     run.ID.String(),
			Period: run.Period,
			Status: string(run.Status),
			RunBy:  run.RunBy,
			RunAt:  run.RunAt,
		},
		Rows: make([]domain.RowResponse, 0, len(rows)),
	}

	employees := make(map[string]struct{})
	for _, row := range rows {
		employees[row.EmployeeID] = struct{}{}
		detail.TotalPayout += row.PayoutValue
		detail.Rows = append(detail.Rows, domain.RowResponse{
			ID:             row.ID.String(),
			EmployeeID:     row.EmployeeID,
			EmployeeName:   row.EmployeeName,
			RuleID:         row.RuleID.String(),
			RuleName:       row.RuleName,
			IndicatorValue: row.IndicatorValue,
			PayoutValue:    row.PayoutValue,
			Detail:         row.Detail.Data(),
		})
	}
	detail.RowCount = int64(len(rows))
	detail.EmployeeCount = int64(len(employees))
	return detail, nil
}

func (s *Service) SetStatus(ctx context.Context, id, status string) (*domain.SummaryResponse, error) {
	runID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	next := domain.Status(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	run, err := s.runs.FindOne(ctx, &domain.CalculationRun{ID: runID})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, domain.ErrNotFound
	}

	if err := s.repo.UpdateStatus(ctx, s.db, runID, next); err != nil {
		return nil, err
	}

	s.log.Info("run status updated",
		zap.String("run_id", run.ID.String()),
		zap.String("from", string(run.Status)),
		zap.String("to", string(next)),
	)

	run.Status = next
	resp := toSummary(&domain.Summary{CalculationRun: *run})
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	runID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidID
	}

	run, err := s.runs.FindOne(ctx, &domain.CalculationRun{ID: runID})
	if err != nil {
		return err
	}
	if run == nil {
		return domain.ErrNotFound
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.DeleteRun(ctx, tx, runID)
	})
	if err != nil {
		return err
	}

	s.log.Info("run deleted",
		zap.String("run_id", run.ID.String()),
		zap.String("period", run.Period),
	)
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}

func toSummary(s *domain.Summary) domain.SummaryResponse {
	return domain.SummaryResponse{
		ID:            s.ID.String(),
		Period:        s.Period,
		Status:        string(s.Status),
		RunBy:         s.RunBy,
		RunAt:         s.RunAt,
		EmployeeCount: s.EmployeeCount,
		RowCount:      s.RowCount,
		TotalPayout:   s.TotalPayout,
	}
}
