// Package service implements the rule catalog: aggregate validation and
// transactional writes of rules with their tiers and conditions.
package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	"github.com/kpiflow/incento/internal/rule/domain"
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
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	IndicatorRepo indicatordomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("rule.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		indicatorRepo: p.IndicatorRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.WriteRequest) (*domain.Response, error) {
	rule, codes, err := s.buildAggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	rule.ID = s.genID.Generate()
	for i := range rule.Tiers {
		rule.Tiers[i].ID = s.genID.Generate()
		rule.Tiers[i].RuleID = rule.ID
	}
	for i := range rule.Conditions {
		rule.Conditions[i].ID = s.genID.Generate()
		rule.Conditions[i].RuleID = rule.ID
	}

	if err := s.repo.Insert(ctx, s.db, rule); err != nil {
		return nil, err
	}

	s.log.Info("rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.Int("tiers", len(rule.Tiers)),
		zap.Int("conditions", len(rule.Conditions)),
	)
	return toResponse(rule, codes), nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.WriteRequest) (*domain.Response, error) {
	ruleID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}

	rule, codes, err := s.buildAggregate(ctx, req)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID
	rule.CreatedAt = existing.CreatedAt
	for i := range rule.Tiers {
		rule.Tiers[i].ID = s.genID.Generate()
		rule.Tiers[i].RuleID = ruleID
	}
	for i := range rule.Conditions {
		rule.Conditions[i].ID = s.genID.Generate()
		rule.Conditions[i].RuleID = ruleID
	}

	// A rule write replaces the full aggregate in one transaction.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateHeader(ctx, tx, rule); err != nil {
			return err
		}
		return s.repo.ReplaceChildren(ctx, tx, ruleID, rule.Tiers, rule.Conditions)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rule updated", zap.String("rule_id", ruleID.String()))
	return toResponse(rule, codes), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	ruleID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return domain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, ruleID)
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	ruleID, err := domain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	rule, err := s.repo.FindByID(ctx, s.db, ruleID)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, domain.ErrNotFound
	}

	codes, err := s.codesFor(ctx, rule)
	if err != nil {
		return nil, err
	}
	return toResponse(rule, codes), nil
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	rules, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return s.toResponses(ctx, rules)
}

func (s *Service) ListInForce(ctx context.Context, periodValue string) ([]domain.Response, error) {
	p, err := period.Normalize(periodValue)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	rules, err := s.repo.ListInForce(ctx, s.db, p)
	if err != nil {
		return nil, err
	}
	return s.toResponses(ctx, rules)
}

// buildAggregate validates the request and maps indicator codes to catalog
// rows. Shape and numeric validation happens here, at the catalog boundary;
// the engine trusts stored aggregates.
func (s *Service) buildAggregate(ctx context.Context, req domain.WriteRequest) (*domain.Rule, map[snowflake.ID]string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, domain.ErrInvalidName
	}

	var validFrom, validUntil *string
	if req.ValidFrom != nil {
		p, err := period.Normalize(*req.ValidFrom)
		if err != nil {
			return nil, nil, domain.ErrInvalidPeriod
		}
		validFrom = &p
	}
	if req.ValidUntil != nil {
		p, err := period.Normalize(*req.ValidUntil)
		if err != nil {
			return nil, nil, domain.ErrInvalidPeriod
		}
		validUntil = &p
	}
	if validFrom != nil && validUntil != nil && *validFrom > *validUntil {
		return nil, nil, domain.ErrInvalidWindow
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	codes := make(map[snowflake.ID]string)
	resolve := func(code string) (snowflake.ID, error) {
		trimmed := strings.TrimSpace(code)
		ind, err := s.indicatorRepo.FindByCode(ctx, s.db, trimmed)
		if err != nil {
			return 0, err
		}
		if ind == nil {
			return 0, domain.ErrUnknownIndicator
		}
		codes[ind.ID] = ind.Code
		return ind.ID, nil
	}

	tiers := make([]domain.Tier, 0, len(req.Tiers))
	var drivingCode string
	for i, tr := range req.Tiers {
		kind := domain.PayoutKind(strings.TrimSpace(tr.PayoutKind))
		if !kind.Valid() {
			return nil, nil, domain.ErrInvalidPayoutKind
		}
		if tr.RangeMax != nil && *tr.RangeMax < tr.RangeMin {
			return nil, nil, domain.ErrInvalidTierRange
		}
		code := strings.TrimSpace(tr.IndicatorCode)
		if i == 0 {
			drivingCode = code
		} else if code != drivingCode {
			// All tiers of a rule share one driving indicator.
			return nil, nil, domain.ErrMixedTierIndicator
		}
		indicatorID, err := resolve(code)
		if err != nil {
			return nil, nil, err
		}
		tiers = append(tiers, domain.Tier{
			IndicatorID: indicatorID,
			RangeMin:    tr.RangeMin,
			RangeMax:    tr.RangeMax,
			PayoutValue: tr.PayoutValue,
			PayoutKind:  kind,
			Position:    i,
		})
	}

	conditions := make([]domain.Condition, 0, len(req.Conditions))
	for i, cr := range req.Conditions {
		op := domain.Operator(strings.TrimSpace(cr.Operator))
		if !op.Valid() {
			return nil, nil, domain.ErrInvalidOperator
		}
		indicatorID, err := resolve(cr.IndicatorCode)
		if err != nil {
			return nil, nil, err
		}
		conditions = append(conditions, domain.Condition{
			IndicatorID:    indicatorID,
			Operator:       op,
			ReferenceValue: cr.ReferenceValue,
			Position:       i,
		})
	}

	return &domain.Rule{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		ValidFrom:   validFrom,
		ValidUntil:  validUntil,
		Active:      active,
		Tiers:       tiers,
		Conditions:  conditions,
	}, codes, nil
}

func (s *Service) toResponses(ctx context.Context, rules []domain.Rule) ([]domain.Response, error) {
	resp := make([]domain.Response, 0, len(rules))
	for i := range rules {
		codes, err := s.codesFor(ctx, &rules[i])
		if err != nil {
			return nil, err
		}
		resp = append(resp, *toResponse(&rules[i], codes))
	}
	return resp, nil
}

func (s *Service) codesFor(ctx context.Context, rule *domain.Rule) (map[snowflake.ID]string, error) {
	codes := make(map[snowflake.ID]string)
	lookup := func(id snowflake.ID) error {
		if _, ok := codes[id]; ok {
			return nil
		}
		ind, err := s.indicatorRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return err
		}
		if ind != nil {
			codes[id] = ind.Code
		}
		return nil
	}
	for i := range rule.Tiers {
		if err := lookup(rule.Tiers[i].IndicatorID); err != nil {
			return nil, err
		}
	}
	for i := range rule.Conditions {
		if err := lookup(rule.Conditions[i].IndicatorID); err != nil {
			return nil, err
		}
	}
	return codes, nil
}

func toResponse(rule *domain.Rule, codes map[snowflake.ID]string) *domain.Response {
	tiers := make([]domain.TierResponse, 0, len(rule.Tiers))
	for i := range rule.Tiers {
		t := &rule.Tiers[i]
		tiers = append(tiers, domain.TierResponse{
			ID:            t.ID.String(),
			IndicatorCode: codes[t.IndicatorID],
			RangeMin:      t.RangeMin,
			RangeMax:      t.RangeMax,
			PayoutValue:   t.PayoutValue,
			PayoutKind:    string(t.PayoutKind),
			Position:      t.Position,
		})
	}
	conditions := make([]domain.ConditionResponse, 0, len(rule.Conditions))
	for i := range rule.Conditions {
		c := &rule.Conditions[i]
		conditions = append(conditions, domain.ConditionResponse{
			ID:             c.ID.String(),
			IndicatorCode:  codes[c.IndicatorID],
			Operator:       string(c.Operator),
			ReferenceValue: c.ReferenceValue,
			Position:       c.Position,
		})
	}
	return &domain.Response{
		ID:          rule.ID.String(),
		Name:        rule.Name,
		Description: rule.Description,
		ValidFrom:   rule.ValidFrom,
		ValidUntil:  rule.ValidUntil,
		Active:      rule.Active,
		Tiers:       tiers,
		Conditions:  conditions,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}
