package calculation

import (
	"github.com/kpiflow/incento/internal/calculation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("calculation",
	fx.Provide(
		service.New,
	),
)
