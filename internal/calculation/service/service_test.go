package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	calculationdomain "github.com/kpiflow/incento/internal/calculation/domain"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	factrepository "github.com/kpiflow/incento/internal/fact/repository"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	indicatorrepository "github.com/kpiflow/incento/internal/indicator/repository"
	rundomain "github.com/kpiflow/incento/internal/run/domain"
	runrepository "github.com/kpiflow/incento/internal/run/repository"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	rulerepository "github.com/kpiflow/incento/internal/rule/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type engineFixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  calculationdomain.Service
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&indicatordomain.Indicator{},
		&factdomain.Fact{},
		&ruledomain.Rule{},
		&ruledomain.Tier{},
		&ruledomain.Condition{},
		&rundomain.CalculationRun{},
		&rundomain.ResultRow{},
	)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		FactRepo:      factrepository.New(),
		RuleRepo:      rulerepository.New(),
		IndicatorRepo: indicatorrepository.New(),
		RunRepo:       runrepository.New(),
	})

	return &engineFixture{db: db, node: node, svc: svc}
}

func (f *engineFixture) indicator(t *testing.T, code string, kind indicatordomain.Kind, expression *string) *indicatordomain.Indicator {
	t.Helper()
	ind := &indicatordomain.Indicator{
		ID:         f.node.Generate(),
		Code:       code,
		Name:       code,
		Unit:       indicatordomain.UnitCount,
		Kind:       kind,
		Expression: expression,
		Active:     true,
	}
	require.NoError(t, f.db.Create(ind).Error)
	return ind
}

func (f *engineFixture) fact(t *testing.T, period, employeeID string, indicatorID snowflake.ID, numerator, denominator float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&factdomain.Fact{
		ID:          f.node.Generate(),
		Period:      period,
		EmployeeID:  employeeID,
		IndicatorID: indicatorID,
		Numerator:   numerator,
		Denominator: denominator,
	}).Error)
}

func (f *engineFixture) rule(t *testing.T, name string, tiers []ruledomain.Tier, conditions []ruledomain.Condition) *ruledomain.Rule {
	t.Helper()
	r := &ruledomain.Rule{
		ID:     f.node.Generate(),
		Name:   name,
		Active: true,
	}
	require.NoError(t, f.db.Create(r).Error)
	for i := range tiers {
		tiers[i].ID = f.node.Generate()
		tiers[i].RuleID = r.ID
		tiers[i].Position = i
		require.NoError(t, f.db.Create(&tiers[i]).Error)
	}
	for i := range conditions {
		conditions[i].ID = f.node.Generate()
		conditions[i].RuleID = r.ID
		conditions[i].Position = i
		require.NoError(t, f.db.Create(&conditions[i]).Error)
	}
	return r
}

func ptr(v float64) *float64 { return &v }

func TestRun_FirstMatchingTierWins(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.fact(t, "2025-01", "emp-1", vendas.ID, 45, 0)

	// Deliberately overlapping ranges: stored order decides.
	f.rule(t, "sales bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: ptr(50), PayoutValue: 10, PayoutKind: ruledomain.PayoutFixedAmount},
		{IndicatorID: vendas.ID, RangeMin: 40, RangeMax: ptr(100), PayoutValue: 20, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-01", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, 10.0, row.PayoutValue)
	require.NotNil(t, row.IndicatorValue)
	assert.Equal(t, 45.0, *row.IndicatorValue)
	require.NotNil(t, row.Detail.MatchedTier)
	assert.Equal(t, 0.0, row.Detail.MatchedTier.RangeMin)
	assert.Equal(t, 10.0, report.TotalPayout)
}

func TestRun_AttainmentAgainstTarget(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	meta := f.indicator(t, "META_VENDAS", indicatordomain.KindQuantity, nil)

	// emp-1 has a target, emp-2 does not.
	f.fact(t, "2025-02", "emp-1", vendas.ID, 120, 0)
	f.fact(t, "2025-02", "emp-1", meta.ID, 100, 0)
	f.fact(t, "2025-02", "emp-2", vendas.ID, 80, 0)

	f.rule(t, "quota", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 100, RangeMax: nil, PayoutValue: 500, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-02", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	byEmployee := make(map[string]rundomain.RowResponse)
	for _, row := range report.Rows {
		byEmployee[row.EmployeeID] = row
	}

	attained := byEmployee["emp-1"]
	require.NotNil(t, attained.IndicatorValue)
	assert.Equal(t, 120.0, *attained.IndicatorValue)
	assert.True(t, attained.Detail.Attainment)
	assert.Equal(t, 500.0, attained.PayoutValue)

	raw := byEmployee["emp-2"]
	require.NotNil(t, raw.IndicatorValue)
	assert.Equal(t, 80.0, *raw.IndicatorValue)
	assert.False(t, raw.Detail.Attainment)
	assert.Equal(t, 0.0, raw.PayoutValue)
}

func TestRun_ConditionWithMissingDataFails(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	csat := f.indicator(t, "CSAT", indicatordomain.KindPercentage, nil)

	// emp-1 has no CSAT fact, so the condition cannot pass.
	f.fact(t, "2025-03", "emp-1", vendas.ID, 90, 0)

	f.rule(t, "conditional bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 100, PayoutKind: ruledomain.PayoutFixedAmount},
	}, []ruledomain.Condition{
		{IndicatorID: csat.ID, Operator: ruledomain.OpGTE, ReferenceValue: 80},
	})

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-03", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Equal(t, 0.0, row.PayoutValue)
	assert.Nil(t, row.IndicatorValue)
	assert.Equal(t, rundomain.OutcomeConditionNotMet, row.Detail.Outcome)
	require.Len(t, row.Detail.Conditions, 1)
	assert.Nil(t, row.Detail.Conditions[0].Observed)
	assert.False(t, row.Detail.Conditions[0].Satisfied)
}

func TestRun_ConditionShortCircuits(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	csat := f.indicator(t, "CSAT", indicatordomain.KindPercentage, nil)
	absent := f.indicator(t, "ABSENT_HOURS", indicatordomain.KindQuantity, nil)

	f.fact(t, "2025-03", "emp-1", vendas.ID, 90, 0)
	f.fact(t, "2025-03", "emp-1", csat.ID, 50, 100)
	f.fact(t, "2025-03", "emp-1", absent.ID, 0, 0)

	f.rule(t, "strict bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 100, PayoutKind: ruledomain.PayoutFixedAmount},
	}, []ruledomain.Condition{
		{IndicatorID: csat.ID, Operator: ruledomain.OpGTE, ReferenceValue: 80},
		{IndicatorID: absent.ID, Operator: ruledomain.OpLTE, ReferenceValue: 2},
	})

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-03", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	// The first condition fails at 50%; the second is never evaluated.
	row := report.Rows[0]
	assert.Equal(t, rundomain.OutcomeConditionNotMet, row.Detail.Outcome)
	require.Len(t, row.Detail.Conditions, 1)
	assert.Equal(t, "CSAT", row.Detail.Conditions[0].IndicatorCode)
}

func TestRun_DerivedDrivingIndicator(t *testing.T) {
	f := newEngineFixture(t)
	sales := f.indicator(t, "SALES", indicatordomain.KindValue, nil)
	hours := f.indicator(t, "HOURS", indicatordomain.KindQuantity, nil)
	expression := "{SALES} / {HOURS}"
	perHour := f.indicator(t, "SALES_PER_HOUR", indicatordomain.KindDerived, &expression)

	f.fact(t, "2025-04", "emp-1", sales.ID, 1500, 0)
	f.fact(t, "2025-04", "emp-1", hours.ID, 10, 0)
	// emp-2 worked zero hours: the derived value is null, not infinity.
	f.fact(t, "2025-04", "emp-2", sales.ID, 900, 0)
	f.fact(t, "2025-04", "emp-2", hours.ID, 0, 0)

	f.rule(t, "efficiency", []ruledomain.Tier{
		{IndicatorID: perHour.ID, RangeMin: 100, RangeMax: nil, PayoutValue: 250, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-04", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	byEmployee := make(map[string]rundomain.RowResponse)
	for _, row := range report.Rows {
		byEmployee[row.EmployeeID] = row
	}

	computed := byEmployee["emp-1"]
	require.NotNil(t, computed.IndicatorValue)
	assert.Equal(t, 150.0, *computed.IndicatorValue)
	assert.Equal(t, 250.0, computed.PayoutValue)

	noData := byEmployee["emp-2"]
	assert.Nil(t, noData.IndicatorValue)
	assert.Equal(t, rundomain.OutcomeNoData, noData.Detail.Outcome)
	assert.Equal(t, 0.0, noData.PayoutValue)
}

func TestRun_PercentageZeroDenominatorIsNoData(t *testing.T) {
	f := newEngineFixture(t)
	csat := f.indicator(t, "CSAT", indicatordomain.KindPercentage, nil)
	f.fact(t, "2025-05", "emp-1", csat.ID, 10, 0)

	f.rule(t, "csat bonus", []ruledomain.Tier{
		{IndicatorID: csat.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 50, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-05", RunBy: "admin"})
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)

	row := report.Rows[0]
	assert.Nil(t, row.IndicatorValue)
	assert.Equal(t, rundomain.OutcomeNoData, row.Detail.Outcome)
	assert.Equal(t, 0.0, row.PayoutValue)
}

func TestRun_ZeroTierRulesAreSkipped(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.fact(t, "2025-06", "emp-1", vendas.ID, 10, 0)

	f.rule(t, "empty rule", nil, nil)
	f.rule(t, "real rule", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 5, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-06", RunBy: "admin"})
	require.NoError(t, err)
	assert.Len(t, report.Rows, 1)
	assert.Equal(t, "real rule", report.Rows[0].RuleName)
}

func TestRun_NoFactsAbortsBeforeAnyWrite(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.rule(t, "bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 5, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	_, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-07", RunBy: "admin"})
	assert.ErrorIs(t, err, calculationdomain.ErrNoFacts)

	var count int64
	require.NoError(t, f.db.Model(&rundomain.CalculationRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRun_NoRulesInForceAborts(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.fact(t, "2025-08", "emp-1", vendas.ID, 10, 0)

	// The only rule expired before the period.
	until := "2025-07"
	r := f.rule(t, "expired", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: nil, PayoutValue: 5, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)
	require.NoError(t, f.db.Model(r).Update("valid_until", until).Error)

	_, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-08", RunBy: "admin"})
	assert.ErrorIs(t, err, calculationdomain.ErrNoRulesInForce)

	var count int64
	require.NoError(t, f.db.Model(&rundomain.CalculationRun{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRun_TotalPayoutMatchesPersistedRows(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.fact(t, "2025-09", "emp-1", vendas.ID, 30, 0)
	f.fact(t, "2025-09", "emp-2", vendas.ID, 70, 0)

	f.rule(t, "bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 0, RangeMax: ptr(50), PayoutValue: 10, PayoutKind: ruledomain.PayoutFixedAmount},
		{IndicatorID: vendas.ID, RangeMin: 50, RangeMax: nil, PayoutValue: 30, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	report, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-09", RunBy: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 40.0, report.TotalPayout)

	var sum float64
	require.NoError(t, f.db.Model(&rundomain.ResultRow{}).
		Select("COALESCE(SUM(payout_value), 0)").
		Where("run_id = ?", report.RunID).
		Scan(&sum).Error)
	assert.Equal(t, report.TotalPayout, sum)
}

func TestRun_RerunProducesIdenticalNumbers(t *testing.T) {
	f := newEngineFixture(t)
	vendas := f.indicator(t, "VENDAS", indicatordomain.KindQuantity, nil)
	f.fact(t, "2025-10", "emp-1", vendas.ID, 55, 0)

	f.rule(t, "bonus", []ruledomain.Tier{
		{IndicatorID: vendas.ID, RangeMin: 50, RangeMax: nil, PayoutValue: 25, PayoutKind: ruledomain.PayoutFixedAmount},
	}, nil)

	first, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-10", RunBy: "admin"})
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), calculationdomain.RunRequest{Period: "2025-10", RunBy: "admin"})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.TotalPayout, second.TotalPayout)
	require.Len(t, second.Rows, len(first.Rows))
	assert.Equal(t, *first.Rows[0].IndicatorValue, *second.Rows[0].IndicatorValue)
}
