package metrics

import (
	"github.com/smallbiznis/invois/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("observability.metrics",
	fx.Invoke(ensurePollerMetrics),
)

func ensurePollerMetrics(cfg config.Config) {
	PollerWithConfig(Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})
}
