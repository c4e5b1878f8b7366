package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/kpiflow/incento/internal/calculation"
	"github.com/kpiflow/incento/internal/config"
	"github.com/kpiflow/incento/internal/fact"
	"github.com/kpiflow/incento/internal/indicator"
	"github.com/kpiflow/incento/internal/migration"
	"github.com/kpiflow/incento/internal/observability"
	"github.com/kpiflow/incento/internal/rule"
	"github.com/kpiflow/incento/internal/run"
	"github.com/kpiflow/incento/internal/server"
	"github.com/kpiflow/incento/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		indicator.Module,
		fact.Module,
		rule.Module,
		calculation.Module,
		run.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
