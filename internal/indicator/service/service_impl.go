// Package service implements the indicator catalog: CRUD with derived
// expression validation and per-employee value resolution.
package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/expr"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	"github.com/kpiflow/incento/internal/indicator/domain"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	"github.com/kpiflow/incento/pkg/db"
	"github.com/kpiflow/incento/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	factRepo factdomain.Repository
	ruleRepo ruledomain.Repository
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	FactRepo factdomain.Repository
	RuleRepo ruledomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("indicator.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		factRepo: p.FactRepo,
		ruleRepo: p.RuleRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !codePattern.MatchString(code) {
		return nil, domain.ErrInvalidCode
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	unit := domain.Unit(strings.TrimSpace(req.Unit))
	if !unit.Valid() {
		return nil, domain.ErrInvalidUnit
	}

	kind := domain.Kind(strings.TrimSpace(req.Kind))
	if !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	expression, err := s.validateExpression(ctx, kind, req.Expression)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrCodeTaken
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	ind := &domain.Indicator{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Unit:        unit,
		Kind:        kind,
		Expression:  expression,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, ind); err != nil {
		// Concurrent creates race past the FindByCode check; the unique
		// index on code is the arbiter.
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeTaken
		}
		return nil, err
	}

	s.log.Info("indicator created",
		zap.String("indicator_id", ind.ID.String()),
		zap.String("code", ind.Code),
		zap.String("kind", string(ind.Kind)),
	)
	return toResponse(ind), nil
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Response, error) {
	indicatorID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	ind, err := s.repo.FindByID(ctx, s.db, indicatorID)
	if err != nil {
		return nil, err
	}
	if ind == nil {
		return nil, domain.ErrNotFound
	}
	return toResponse(ind), nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Response, error) {
	ind, err := s.repo.FindByCode(ctx, s.db, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if ind == nil {
		return nil, domain.ErrNotFound
	}
	return toResponse(ind), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	indicatorID, err := domain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	ind, err := s.repo.FindByID(ctx, s.db, indicatorID)
	if err != nil {
		return nil, err
	}
	if ind == nil {
		return nil, domain.ErrNotFound
	}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code != ind.Code {
			if !codePattern.MatchString(code) {
				return nil, domain.ErrInvalidCode
			}
			// Codes freeze as soon as facts or rules point at the indicator.
			referenced, err := s.referenced(ctx, indicatorID)
			if err != nil {
				return nil, err
			}
			if referenced {
				return nil, domain.ErrCodeImmutable
			}
			taken, err := s.repo.FindByCode(ctx, s.db, code)
			if err != nil {
				return nil, err
			}
			if taken != nil {
				return nil, domain.ErrCodeTaken
			}
			ind.Code = code
		}
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		ind.Name = name
	}
	if req.Description != nil {
		ind.Description = strings.TrimSpace(*req.Description)
	}
	if req.Unit != nil {
		unit := domain.Unit(strings.TrimSpace(*req.Unit))
		if !unit.Valid() {
			return nil, domain.ErrInvalidUnit
		}
		ind.Unit = unit
	}
	if req.Expression != nil {
		expression, err := s.validateExpression(ctx, ind.Kind, req.Expression)
		if err != nil {
			return nil, err
		}
		ind.Expression = expression
	}
	if req.Active != nil {
		ind.Active = *req.Active
	}

	ind.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, ind); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeTaken
		}
		return nil, err
	}
	return toResponse(ind), nil
}

// Deactivate soft-deletes an indicator. Rows are never hard-deleted: facts
// and historical result rows keep referencing them.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	indicatorID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	ind, err := s.repo.FindByID(ctx, s.db, indicatorID)
	if err != nil {
		return err
	}
	if ind == nil {
		return domain.ErrNotFound
	}

	ind.Active = false
	ind.UpdatedAt = time.Now().UTC()
	return s.repo.Update(ctx, s.db, ind)
}

func (s *Service) ResolveValue(ctx context.Context, periodValue, employeeID, code string) (*float64, error) {
	p, err := period.Normalize(periodValue)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	ind, err := s.repo.FindByCode(ctx, s.db, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, err
	}
	if ind == nil {
		return nil, domain.ErrNotFound
	}

	return s.resolve(ctx, s.db, ind, p, strings.TrimSpace(employeeID))
}

func (s *Service) TestExpression(ctx context.Context, req domain.TestExpressionRequest) (*domain.TestExpressionResponse, error) {
	_ = ctx

	refs, err := expr.ExtractRefs(req.Expression)
	if err != nil {
		return &domain.TestExpressionResponse{Valid: false, Error: err.Error()}, nil
	}

	compiled, err := expr.Compile(req.Expression)
	if err != nil {
		return &domain.TestExpressionResponse{
			Valid:                false,
			ReferencedIndicators: refs,
			Error:                err.Error(),
		}, nil
	}

	return &domain.TestExpressionResponse{
		Valid:                true,
		ReferencedIndicators: refs,
		SampleResult:         compiled(req.SampleValues),
	}, nil
}

// resolve computes an indicator's value from facts. Base kinds read the fact
// row directly; derived kinds resolve every referenced base indicator and
// run the compiled expression. Nil means not computable for this employee
// and period, including a zero denominator on a ratio.
func (s *Service) resolve(ctx context.Context, db *gorm.DB, ind *domain.Indicator, p, employeeID string) (*float64, error) {
	if ind.Kind != domain.KindDerived {
		return s.resolveBase(ctx, db, ind, p, employeeID)
	}

	if ind.Expression == nil {
		return nil, domain.ErrExpressionRequired
	}
	refs, err := expr.ExtractRefs(*ind.Expression)
	if err != nil {
		return nil, domain.ErrInvalidExpression
	}

	values := make(map[string]float64, len(refs))
	for _, ref := range refs {
		base, err := s.repo.FindByCode(ctx, db, ref)
		if err != nil {
			return nil, err
		}
		if base == nil {
			// Referenced indicator vanished after validation; the value is
			// simply not computable.
			return nil, nil
		}
		v, err := s.resolveBase(ctx, db, base, p, employeeID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, nil
		}
		values[ref] = *v
	}

	compiled, err := expr.Compile(*ind.Expression)
	if err != nil {
		return nil, domain.ErrInvalidExpression
	}
	return compiled(values), nil
}

func (s *Service) resolveBase(ctx context.Context, db *gorm.DB, ind *domain.Indicator, p, employeeID string) (*float64, error) {
	fact, err := s.factRepo.Find(ctx, db, p, employeeID, ind.ID)
	if err != nil {
		return nil, err
	}
	if fact == nil {
		return nil, nil
	}

	switch ind.Kind {
	case domain.KindPercentage:
		if fact.Denominator == 0 {
			return nil, nil
		}
		v := fact.Numerator / fact.Denominator * 100
		return &v, nil
	default:
		v := fact.Numerator
		return &v, nil
	}
}

// validateExpression enforces the derived-indicator contract: derived kinds
// require a compilable expression whose references are existing base
// indicators. Referencing another derived indicator is rejected here, at
// definition time, which is what keeps evaluation cycle-free.
func (s *Service) validateExpression(ctx context.Context, kind domain.Kind, expression *string) (*string, error) {
	if kind != domain.KindDerived {
		if expression != nil && strings.TrimSpace(*expression) != "" {
			return nil, domain.ErrExpressionForbidden
		}
		return nil, nil
	}

	if expression == nil || strings.TrimSpace(*expression) == "" {
		return nil, domain.ErrExpressionRequired
	}
	trimmed := strings.TrimSpace(*expression)

	if _, err := expr.Compile(trimmed); err != nil {
		return nil, domain.ErrInvalidExpression
	}
	refs, err := expr.ExtractRefs(trimmed)
	if err != nil {
		return nil, domain.ErrInvalidExpression
	}
	for _, ref := range refs {
		referenced, err := s.repo.FindByCode(ctx, s.db, ref)
		if err != nil {
			return nil, err
		}
		if referenced == nil {
			return nil, domain.ErrUnknownReference
		}
		if referenced.Kind == domain.KindDerived {
			return nil, domain.ErrDerivedReference
		}
	}
	return &trimmed, nil
}

func (s *Service) referenced(ctx context.Context, indicatorID snowflake.ID) (bool, error) {
	byFacts, err := s.factRepo.ReferencesIndicator(ctx, s.db, indicatorID)
	if err != nil {
		return false, err
	}
	if byFacts {
		return true, nil
	}
	return s.ruleRepo.ReferencesIndicator(ctx, s.db, indicatorID)
}

func toResponse(ind *domain.Indicator) *domain.Response {
	return &domain.Response{
		ID:          ind.ID.String(),
		Code:        ind.Code,
		Name:        ind.Name,
		Description: ind.Description,
		Unit:        string(ind.Unit),
		Kind:        string(ind.Kind),
		Expression:  ind.Expression,
		Active:      ind.Active,
		CreatedAt:   ind.CreatedAt,
		UpdatedAt:   ind.UpdatedAt,
	}
}
