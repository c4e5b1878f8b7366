package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kpiflow/incento/internal/run/domain"
	"github.com/kpiflow/incento/internal/run/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&domain.CalculationRun{}, &domain.ResultRow{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: repository.New(),
	})
	return &ledgerFixture{db: db, node: node, svc: svc}
}

func (f *ledgerFixture) seedRun(t *testing.T, period string, payouts map[string]float64) *domain.CalculationRun {
	t.Helper()
	run := &domain.CalculationRun{
		ID:     f.node.Generate(),
		Period: period,
		Status: domain.StatusDraft,
		RunBy:  "admin",
		RunAt:  time.Now().UTC(),
	}
	require.NoError(t, f.db.Create(run).Error)
	for employeeID, payout := range payouts {
		value := payout
		require.NoError(t, f.db.Create(&domain.ResultRow{
			ID:             f.node.Generate(),
			RunID:          run.ID,
			EmployeeID:     employeeID,
			EmployeeName:   employeeID,
			RuleID:         f.node.Generate(),
			RuleName:       "bonus",
			IndicatorValue: &value,
			PayoutValue:    payout,
			Detail: datatypes.NewJSONType(domain.Detail{
				Outcome:          domain.OutcomeComputed,
				DrivingIndicator: "VENDAS",
				Observed:         &value,
			}),
		}).Error)
	}
	return run
}

func TestListRuns_Aggregates(t *testing.T) {
	f := newLedgerFixture(t)
	f.seedRun(t, "2025-01", map[string]float64{"emp-1": 100, "emp-2": 50})
	f.seedRun(t, "2025-02", nil)

	summaries, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byPeriod := make(map[string]domain.SummaryResponse)
	for _, s := range summaries {
		byPeriod[s.Period] = s
	}

	jan := byPeriod["2025-01"]
	assert.EqualValues(t, 2, jan.EmployeeCount)
	assert.EqualValues(t, 2, jan.RowCount)
	assert.Equal(t, 150.0, jan.TotalPayout)

	feb := byPeriod["2025-02"]
	assert.EqualValues(t, 0, feb.EmployeeCount)
	assert.Equal(t, 0.0, feb.TotalPayout)
}

func TestGetRun_WithRows(t *testing.T) {
	f := newLedgerFixture(t)
	run := f.seedRun(t, "2025-01", map[string]float64{"emp-1": 100, "emp-2": 50})

	detail, err := f.svc.Get(context.Background(), run.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "2025-01", detail.Period)
	assert.Equal(t, "draft", detail.Status)
	require.Len(t, detail.Rows, 2)
	assert.Equal(t, 150.0, detail.TotalPayout)
	assert.Equal(t, domain.OutcomeComputed, detail.Rows[0].Detail.Outcome)

	_, err = f.svc.Get(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestSetRunStatus(t *testing.T) {
	f := newLedgerFixture(t)
	run := f.seedRun(t, "2025-01", map[string]float64{"emp-1": 100})

	resp, err := f.svc.SetStatus(context.Background(), run.ID.String(), "approved")
	require.NoError(t, err)
	assert.Equal(t, "approved", resp.Status)

	var stored domain.CalculationRun
	require.NoError(t, f.db.First(&stored, "id = ?", run.ID).Error)
	assert.Equal(t, domain.StatusApproved, stored.Status)

	_, err = f.svc.SetStatus(context.Background(), run.ID.String(), "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.SetStatus(context.Background(), f.node.Generate().String(), "paid")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRun_CascadesRows(t *testing.T) {
	f := newLedgerFixture(t)
	run := f.seedRun(t, "2025-01", map[string]float64{"emp-1": 100, "emp-2": 50})
	other := f.seedRun(t, "2025-02", map[string]float64{"emp-3": 10})

	require.NoError(t, f.svc.Delete(context.Background(), run.ID.String()))

	var runCount, rowCount int64
	require.NoError(t, f.db.Model(&domain.CalculationRun{}).Count(&runCount).Error)
	require.NoError(t, f.db.Model(&domain.ResultRow{}).Count(&rowCount).Error)
	assert.EqualValues(t, 1, runCount)
	assert.EqualValues(t, 1, rowCount)

	// The other run is untouched.
	remaining, err := f.svc.Get(context.Background(), other.ID.String())
	require.NoError(t, err)
	assert.Len(t, remaining.Rows, 1)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), run.ID.String()), domain.ErrNotFound)
}
