package fact

import (
	"github.com/kpiflow/incento/internal/fact/repository"
	"github.com/kpiflow/incento/internal/fact/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fact",
	fx.Provide(
		repository.New,
		service.New,
	),
)
