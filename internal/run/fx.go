package run

import (
	"github.com/kpiflow/incento/internal/run/repository"
	"github.com/kpiflow/incento/internal/run/service"
	"go.uber.org/fx"
)

var Module = fx.Module("run",
	fx.Provide(
		repository.New,
		service.New,
	),
)
