package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/kpiflow/incento/internal/fact/domain"
	"github.com/kpiflow/incento/internal/fact/repository"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	indicatorrepository "github.com/kpiflow/incento/internal/indicator/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newFactFixture(t *testing.T) (*gorm.DB, *snowflake.Node, domain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&indicatordomain.Indicator{}, &domain.Fact{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.New(),
		IndicatorRepo: indicatorrepository.New(),
	})
	return db, node, svc
}

func seedIndicator(t *testing.T, db *gorm.DB, node *snowflake.Node, code string) {
	t.Helper()
	require.NoError(t, db.Create(&indicatordomain.Indicator{
		ID:     node.Generate(),
		Code:   code,
		Name:   code,
		Unit:   indicatordomain.UnitCount,
		Kind:   indicatordomain.KindQuantity,
		Active: true,
	}).Error)
}

func TestImportFacts_Validation(t *testing.T) {
	db, node, svc := newFactFixture(t)
	seedIndicator(t, db, node, "VENDAS")
	ctx := context.Background()

	row := domain.ImportRow{EmployeeID: "emp-1", EmployeeName: "Ana", IndicatorCode: "VENDAS", Numerator: 10}

	_, err := svc.Import(ctx, domain.ImportRequest{Period: "2025-1", Rows: []domain.ImportRow{row}})
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)

	_, err = svc.Import(ctx, domain.ImportRequest{Period: "2025-01"})
	assert.ErrorIs(t, err, domain.ErrEmptyImport)

	_, err = svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		{EmployeeID: " ", IndicatorCode: "VENDAS", Numerator: 1},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidEmployee)

	_, err = svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		{EmployeeID: "emp-1", IndicatorCode: "NOPE", Numerator: 1},
	}})
	assert.ErrorIs(t, err, domain.ErrUnknownIndicator)

	// One bad row rejects the whole batch before any write.
	_, err = svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		row,
		{EmployeeID: "emp-2", IndicatorCode: "NOPE", Numerator: 1},
	}})
	assert.ErrorIs(t, err, domain.ErrUnknownIndicator)

	var count int64
	require.NoError(t, db.Model(&domain.Fact{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportFacts_UpsertByNaturalKey(t *testing.T) {
	db, node, svc := newFactFixture(t)
	seedIndicator(t, db, node, "VENDAS")
	ctx := context.Background()

	first, err := svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		{EmployeeID: "emp-1", EmployeeName: "Ana", IndicatorCode: "VENDAS", Numerator: 10},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Rows)
	assert.NotEmpty(t, first.ImportID)

	second, err := svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		{EmployeeID: "emp-1", EmployeeName: "Ana Silva", IndicatorCode: "VENDAS", Numerator: 25},
	}})
	require.NoError(t, err)
	assert.NotEqual(t, first.ImportID, second.ImportID)

	var facts []domain.Fact
	require.NoError(t, db.Find(&facts).Error)
	require.Len(t, facts, 1)
	assert.Equal(t, 25.0, facts[0].Numerator)
	assert.Equal(t, "Ana Silva", facts[0].EmployeeName)
	assert.Equal(t, second.ImportID, facts[0].ImportID)
}

func TestListFacts(t *testing.T) {
	db, node, svc := newFactFixture(t)
	seedIndicator(t, db, node, "VENDAS")
	seedIndicator(t, db, node, "CSAT")
	ctx := context.Background()

	_, err := svc.Import(ctx, domain.ImportRequest{Period: "2025-01", Rows: []domain.ImportRow{
		{EmployeeID: "emp-1", EmployeeName: "Ana", IndicatorCode: "VENDAS", Numerator: 10},
		{EmployeeID: "emp-1", EmployeeName: "Ana", IndicatorCode: "CSAT", Numerator: 45, Denominator: 50},
	}})
	require.NoError(t, err)

	resp, err := svc.List(ctx, "2025-01")
	require.NoError(t, err)
	require.Len(t, resp, 2)

	codes := map[string]bool{}
	for _, r := range resp {
		codes[r.IndicatorCode] = true
		assert.Equal(t, "2025-01", r.Period)
		assert.Equal(t, "emp-1", r.EmployeeID)
	}
	assert.True(t, codes["VENDAS"])
	assert.True(t, codes["CSAT"])

	empty, err := svc.List(ctx, "2025-02")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.List(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidPeriod)
}
