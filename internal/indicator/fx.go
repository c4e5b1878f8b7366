package indicator

import (
	"github.com/kpiflow/incento/internal/indicator/repository"
	"github.com/kpiflow/incento/internal/indicator/service"
	"go.uber.org/fx"
)

var Module = fx.Module("indicator",
	fx.Provide(
		repository.New,
		service.New,
	),
)
