package rule

import (
	"github.com/kpiflow/incento/internal/rule/repository"
	"github.com/kpiflow/incento/internal/rule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rule",
	fx.Provide(
		repository.New,
		service.New,
	),
)
