package main

import (
	"context"
	"log"

	"marketbot/internal/modules/binance_ws"
	"marketbot/internal/modules/bot"
	"marketbot/internal/modules/config"
	marketmod "marketbot/internal/modules/market"
	"marketbot/internal/modules/postgres"
	"marketbot/pkg/logger"

	"go.uber.org/fx"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		binance_ws.Module(),
		marketmod.Module(),
		bot.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
	if err := app.Stop(context.Background()); err != nil {
		log.Fatal(err)
	}
}
