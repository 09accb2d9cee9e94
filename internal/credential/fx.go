package credential

import (
	"github.com/smallbiznis/invois/internal/credential/repository"
	"github.com/smallbiznis/invois/internal/credential/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credential",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
