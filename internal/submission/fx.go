package submission

import (
	"github.com/smallbiznis/invois/internal/submission/repository"
	"github.com/smallbiznis/invois/internal/submission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("submission",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
