package binance_ws

import (
	"marketbot/internal/modules/binance_ws/service"
	"marketbot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("binance_ws",
		fx.Provide(
			func(cfg *config.Config) *service.Client {
				return service.NewClient(cfg.Exchange.StreamURL)
			},
		),
	)
}
