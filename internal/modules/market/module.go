package market

import (
	"context"

	"marketbot/internal/market"
	"marketbot/internal/modules/binance_ws/service"
	"marketbot/internal/modules/config"
	"marketbot/internal/store"
	"marketbot/pkg/logger"

	"go.uber.org/fx"
)

// Module wires the tick stream into the aggregator and drains aggregator
// events into the price store. Ingestion is memory-only; the persistence
// drain runs on its own goroutine and may lose events without affecting
// the live window.
func Module() fx.Option {
	return fx.Module("market",
		fx.Provide(
			func(cfg *config.Config) *market.Aggregator {
				return market.NewAggregator(cfg.CandlePeriod, cfg.WindowCapacity)
			},
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			ctx context.Context,
			cfg *config.Config,
			ws *service.Client,
			agg *market.Aggregator,
			prices *store.Prices,
		) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go consumeTicks(ctx, ws, agg, cfg.TrackedSymbols)
					go drainEvents(ctx, agg, prices)
					return nil
				},
			})
		}),
	)
}

func consumeTicks(ctx context.Context, ws *service.Client, agg *market.Aggregator, symbols []string) {
	stream := ws.StreamTicks(ctx, symbols)
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-stream:
			if !ok {
				return
			}
			agg.OnTick(tick)
		}
	}
}

// drainEvents persists finalized candles. Failures are logged and the row
// is simply retried on the next boundary; the upsert is keyed by symbol.
func drainEvents(ctx context.Context, agg *market.Aggregator, prices *store.Prices) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-agg.Events():
			if !ok {
				return
			}
			if ev.Finalized == nil {
				continue
			}
			if err := prices.Upsert(ctx, *ev.Finalized); err != nil {
				logger.Warn("[MARKET] persist candle %s failed: %v", ev.Finalized.Symbol, err)
			}
		}
	}
}
