package poller

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("poller",
	fx.Provide(New),
	fx.Invoke(Run),
)

func Run(lc fx.Lifecycle, p *Poller) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go p.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
