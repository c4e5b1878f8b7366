package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/kpiflow/incento/internal/fact/domain"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	"github.com/kpiflow/incento/internal/observability/metrics"
	"github.com/kpiflow/incento/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	indicatorRepo indicatordomain.Repository
	metrics       *metrics.Metrics
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	IndicatorRepo indicatordomain.Repository
	Metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("fact.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		indicatorRepo: p.IndicatorRepo,
		metrics:       p.Metrics,
	}
}

func (s *Service) Import(ctx context.Context, req domain.ImportRequest) (*domain.ImportResult, error) {
	p, err := period.Normalize(req.Period)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}
	if len(req.Rows) == 0 {
		return nil, domain.ErrEmptyImport
	}

	// Resolve every indicator code up front so a bad row rejects the whole
	// batch before any write.
	indicatorIDs := make(map[string]snowflake.ID)
	for _, row := range req.Rows {
		code := strings.ToUpper(strings.TrimSpace(row.IndicatorCode))
		if _, ok := indicatorIDs[code]; ok {
			continue
		}
		ind, err := s.indicatorRepo.FindByCode(ctx, s.db, code)
		if err != nil {
			return nil, err
		}
		if ind == nil {
			return nil, domain.ErrUnknownIndicator
		}
		indicatorIDs[code] = ind.ID
	}

	importID := uuid.NewString()
	now := time.Now().UTC()
	facts := make([]*domain.Fact, 0, len(req.Rows))
	for _, row := range req.Rows {
		employeeID := strings.TrimSpace(row.EmployeeID)
		if employeeID == "" {
			return nil, domain.ErrInvalidEmployee
		}
		facts = append(facts, &domain.Fact{
			ID:           s.genID.Generate(),
			Period:       p,
			EmployeeID:   employeeID,
			EmployeeName: strings.TrimSpace(row.EmployeeName),
			IndicatorID:  indicatorIDs[strings.ToUpper(strings.TrimSpace(row.IndicatorCode))],
			Numerator:    row.Numerator,
			Denominator:  row.Denominator,
			ImportID:     importID,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Upsert(ctx, tx, facts)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.FactsImported(ctx, p, len(facts))
	s.log.Info("facts imported",
		zap.String("import_id", importID),
		zap.String("period", p),
		zap.Int("rows", len(facts)),
	)
	return &domain.ImportResult{ImportID: importID, Period: p, Rows: len(facts)}, nil
}

func (s *Service) List(ctx context.Context, periodValue string) ([]domain.Response, error) {
	p, err := period.Normalize(periodValue)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	facts, err := s.repo.ListByPeriod(ctx, s.db, p)
	if err != nil {
		return nil, err
	}

	indicators, err := s.indicatorRepo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	codes := make(map[snowflake.ID]string, len(indicators))
	for i := range indicators {
		codes[indicators[i].ID] = indicators[i].Code
	}

	resp := make([]domain.Response, 0, len(facts))
	for i := range facts {
		f := &facts[i]
		resp = append(resp, domain.Response{
			ID:            f.ID.String(),
			Period:        f.Period,
			EmployeeID:    f.EmployeeID,
			EmployeeName:  f.EmployeeName,
			IndicatorCode: codes[f.IndicatorID],
			Numerator:     f.Numerator,
			Denominator:   f.Denominator,
			UpdatedAt:     f.UpdatedAt,
		})
	}
	return resp, nil
}
