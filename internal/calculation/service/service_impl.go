// Package service implements the calculation engine: the per-period batch
// that turns facts plus in-force rules into an audited payout run.
package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/calculation/domain"
	"github.com/kpiflow/incento/internal/expr"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	"github.com/kpiflow/incento/internal/observability/metrics"
	rundomain "github.com/kpiflow/incento/internal/run/domain"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	"github.com/kpiflow/incento/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	factRepo      factdomain.Repository
	ruleRepo      ruledomain.Repository
	indicatorRepo indicatordomain.Repository
	runRepo       rundomain.Repository
	metrics       *metrics.Metrics
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	FactRepo      factdomain.Repository
	RuleRepo      ruledomain.Repository
	IndicatorRepo indicatordomain.Repository
	RunRepo       rundomain.Repository
	Metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("calculation.service"),
		genID:         p.GenID,
		factRepo:      p.FactRepo,
		ruleRepo:      p.RuleRepo,
		indicatorRepo: p.IndicatorRepo,
		runRepo:       p.RunRepo,
		metrics:       p.Metrics,
	}
}

// snapshot is the engine's read set for one run, loaded once inside the
// transaction so every cell evaluates against the same data.
type snapshot struct {
	employees  []factdomain.Employee
	rules      []ruledomain.Rule
	byID       map[snowflake.ID]*indicatordomain.Indicator
	byCode     map[string]*indicatordomain.Indicator
	facts      map[string]map[snowflake.ID]*factdomain.Fact
	expression map[snowflake.ID]expr.Expr
}

func (s *Service) Run(ctx context.Context, req domain.RunRequest) (*domain.RunReport, error) {
	p, err := period.Normalize(req.Period)
	if err != nil {
		return nil, domain.ErrInvalidPeriod
	}

	s.metrics.RunStarted(ctx, p)

	var report *domain.RunReport
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap, err := s.load(ctx, tx, p)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		run := &rundomain.CalculationRun{
			ID:        s.genID.Generate(),
			Period:    p,
			Status:    rundomain.StatusDraft,
			RunBy:     req.RunBy,
			RunAt:     now,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.runRepo.InsertRun(ctx, tx, run); err != nil {
			return err
		}

		rows := make([]*rundomain.ResultRow, 0, len(snap.employees)*len(snap.rules))
		for _, employee := range snap.employees {
			for i := range snap.rules {
				rule := &snap.rules[i]
				if len(rule.Tiers) == 0 {
					continue
				}
				row := s.evaluate(snap, run, employee, rule, now)
				rows = append(rows, row)
			}
		}
		if err := s.runRepo.InsertRows(ctx, tx, rows); err != nil {
			return err
		}

		report = buildReport(run, snap, rows)
		return nil
	})
	if err != nil {
		s.metrics.RunFailed(ctx, p)
		return nil, err
	}

	s.metrics.RunCompleted(ctx, p, len(report.Rows), report.TotalPayout)
	s.log.Info("calculation run completed",
		zap.String("run_id", report.RunID),
		zap.String("period", p),
		zap.Int("employees", report.TotalEmployees),
		zap.Int("rules", report.TotalRules),
		zap.Int("rows", len(report.Rows)),
		zap.Float64("total_payout", report.TotalPayout),
	)
	return report, nil
}

// load gathers the run's read set and enforces the run-level preconditions.
// Either precondition failing aborts before any write.
func (s *Service) load(ctx context.Context, tx *gorm.DB, p string) (*snapshot, error) {
	count, err := s.factRepo.CountByPeriod(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNoFacts
	}

	rules, err := s.ruleRepo.ListInForce(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, domain.ErrNoRulesInForce
	}

	employees, err := s.factRepo.DistinctEmployees(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	indicators, err := s.indicatorRepo.List(ctx, tx)
	if err != nil {
		return nil, err
	}

	facts, err := s.factRepo.ListByPeriod(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		employees:  employees,
		rules:      rules,
		byID:       make(map[snowflake.ID]*indicatordomain.Indicator, len(indicators)),
		byCode:     make(map[string]*indicatordomain.Indicator, len(indicators)),
		facts:      make(map[string]map[snowflake.ID]*factdomain.Fact),
		expression: make(map[snowflake.ID]expr.Expr),
	}
	for i := range indicators {
		ind := &indicators[i]
		snap.byID[ind.ID] = ind
		snap.byCode[ind.Code] = ind
		if ind.Kind == indicatordomain.KindDerived && ind.Expression != nil {
			// Catalog validation guarantees these compile; a stale bad
			// expression just resolves to no data.
			if compiled, err := expr.Compile(*ind.Expression); err == nil {
				snap.expression[ind.ID] = compiled
			}
		}
	}
	for i := range facts {
		f := &facts[i]
		byIndicator, ok := snap.facts[f.EmployeeID]
		if !ok {
			byIndicator = make(map[snowflake.ID]*factdomain.Fact)
			snap.facts[f.EmployeeID] = byIndicator
		}
		byIndicator[f.IndicatorID] = f
	}
	return snap, nil
}

// evaluate computes one (employee, rule) cell. Data gaps never fail the
// run; they produce a zero-payout row with the gap recorded in the detail.
func (s *Service) evaluate(snap *snapshot, run *rundomain.CalculationRun, employee factdomain.Employee, rule *ruledomain.Rule, now time.Time) *rundomain.ResultRow {
	drivingID := rule.Tiers[0].IndicatorID
	drivingCode := ""
	if ind, ok := snap.byID[drivingID]; ok {
		drivingCode = ind.Code
	}

	row := &rundomain.ResultRow{
		ID:           s.genID.Generate(),
		RunID:        run.ID,
		EmployeeID:   employee.ID,
		EmployeeName: employee.Name,
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		CreatedAt:    now,
	}

	audits, passed := s.checkConditions(snap, employee.ID, rule)
	if !passed {
		row.Detail = datatypes.NewJSONType(rundomain.Detail{
			Outcome:          rundomain.OutcomeConditionNotMet,
			DrivingIndicator: drivingCode,
			Conditions:       audits,
			Reason:           "condition not met",
		})
		return row
	}

	value, attainment := s.drivingValue(snap, employee.ID, drivingID)
	if value == nil {
		row.Detail = datatypes.NewJSONType(rundomain.Detail{
			Outcome:          rundomain.OutcomeNoData,
			DrivingIndicator: drivingCode,
			Conditions:       audits,
			Reason:           "no data for indicator in period",
		})
		return row
	}

	rounded := round2(*value)
	row.IndicatorValue = &rounded

	detail := rundomain.Detail{
		Outcome:          rundomain.OutcomeComputed,
		DrivingIndicator: drivingCode,
		Attainment:       attainment,
		Observed:         &rounded,
		Conditions:       audits,
	}
	for i := range rule.Tiers {
		tier := &rule.Tiers[i]
		if tier.Matches(rounded) {
			row.PayoutValue = tier.PayoutValue
			detail.MatchedTier = &rundomain.TierAudit{
				RangeMin:    tier.RangeMin,
				RangeMax:    tier.RangeMax,
				PayoutKind:  string(tier.PayoutKind),
				PayoutValue: tier.PayoutValue,
			}
			break
		}
	}
	if detail.MatchedTier == nil {
		detail.Reason = "no tier matched"
	}

	row.Detail = datatypes.NewJSONType(detail)
	return row
}

// checkConditions evaluates the rule's conditions in order, short-circuiting
// on the first failure. A condition whose indicator has no value fails.
func (s *Service) checkConditions(snap *snapshot, employeeID string, rule *ruledomain.Rule) ([]rundomain.ConditionAudit, bool) {
	audits := make([]rundomain.ConditionAudit, 0, len(rule.Conditions))
	for i := range rule.Conditions {
		cond := &rule.Conditions[i]
		code := ""
		if ind, ok := snap.byID[cond.IndicatorID]; ok {
			code = ind.Code
		}

		observed := s.resolve(snap, employeeID, cond.IndicatorID)
		satisfied := observed != nil && cond.Operator.Compare(*observed, cond.ReferenceValue)
		audits = append(audits, rundomain.ConditionAudit{
			IndicatorCode:  code,
			Operator:       string(cond.Operator),
			ReferenceValue: cond.ReferenceValue,
			Observed:       observed,
			Satisfied:      satisfied,
		})
		if !satisfied {
			return audits, false
		}
	}
	return audits, true
}

// drivingValue computes the value used for tier matching. Quantity and
// value indicators check for a paired META_ target: when the target fact
// has a positive numerator the driving value becomes attainment, achieved
// over target as a percentage. The second return reports whether
// attainment was applied.
func (s *Service) drivingValue(snap *snapshot, employeeID string, indicatorID snowflake.ID) (*float64, bool) {
	ind, ok := snap.byID[indicatorID]
	if !ok {
		return nil, false
	}

	switch ind.Kind {
	case indicatordomain.KindQuantity, indicatordomain.KindValue:
		fact := snap.fact(employeeID, indicatorID)
		if fact == nil {
			return nil, false
		}
		achieved := fact.Numerator
		if target, ok := snap.byCode[indicatordomain.TargetPrefix+ind.Code]; ok {
			if targetFact := snap.fact(employeeID, target.ID); targetFact != nil && targetFact.Numerator > 0 {
				v := achieved / targetFact.Numerator * 100
				return &v, true
			}
		}
		return &achieved, false
	default:
		return s.resolve(snap, employeeID, indicatorID), false
	}
}

// resolve returns an indicator's value for one employee from the snapshot,
// or nil when not computable. A zero denominator resolves to nil, the same
// null semantics the expression evaluator applies to division by zero.
func (s *Service) resolve(snap *snapshot, employeeID string, indicatorID snowflake.ID) *float64 {
	ind, ok := snap.byID[indicatorID]
	if !ok {
		return nil
	}

	if ind.Kind == indicatordomain.KindDerived {
		compiled, ok := snap.expression[ind.ID]
		if !ok {
			return nil
		}
		refs, err := expr.ExtractRefs(*ind.Expression)
		if err != nil {
			return nil
		}
		values := make(map[string]float64, len(refs))
		for _, ref := range refs {
			base, ok := snap.byCode[ref]
			if !ok {
				return nil
			}
			v := s.resolveBase(snap, employeeID, base)
			if v == nil {
				return nil
			}
			values[ref] = *v
		}
		return compiled(values)
	}
	return s.resolveBase(snap, employeeID, ind)
}

func (s *Service) resolveBase(snap *snapshot, employeeID string, ind *indicatordomain.Indicator) *float64 {
	fact := snap.fact(employeeID, ind.ID)
	if fact == nil {
		return nil
	}
	if ind.Kind == indicatordomain.KindPercentage {
		if fact.Denominator == 0 {
			return nil
		}
		v := fact.Numerator / fact.Denominator * 100
		return &v
	}
	v := fact.Numerator
	return &v
}

func (snap *snapshot) fact(employeeID string, indicatorID snowflake.ID) *factdomain.Fact {
	byIndicator, ok := snap.facts[employeeID]
	if !ok {
		return nil
	}
	return byIndicator[indicatorID]
}

func buildReport(run *rundomain.CalculationRun, snap *snapshot, rows []*rundomain.ResultRow) *domain.RunReport {
	report := &domain.RunReport{
		RunID:          run.ID.String(),
		Period:         run.Period,
		Status:         string(run.Status),
		RunBy:          run.RunBy,
		RunAt:          run.RunAt,
		TotalEmployees: len(snap.employees),
		TotalRules:     len(snap.rules),
		Rows:           make([]rundomain.RowResponse, 0, len(rows)),
	}
	for _, row := range rows {
		report.TotalPayout += row.PayoutValue
		report.Rows = append(report.Rows, rundomain.RowResponse{
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
	return report
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
