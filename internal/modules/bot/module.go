package bot

import (
	"context"

	"marketbot/internal/exchange"
	"marketbot/internal/market"
	"marketbot/internal/modules/config"
	"marketbot/internal/notify"
	"marketbot/internal/reconcile"
	"marketbot/internal/scheduler"
	"marketbot/internal/secrets"
	"marketbot/internal/store"
	"marketbot/internal/strategy"
	"marketbot/pkg/db"
	"marketbot/pkg/logger"
	"marketbot/pkg/tracing"

	"go.uber.org/fx"
)

// Module assembles the two engines and the scheduler that drives them.
func Module() fx.Option {
	return fx.Module("bot",
		fx.Provide(
			func(txm *db.PgTxManager) *store.Prices { return store.NewPrices(txm) },
			func(txm *db.PgTxManager) *store.Trades { return store.NewTrades(txm) },
			func(txm *db.PgTxManager) *store.Strategies { return store.NewStrategies(txm) },
			func(txm *db.PgTxManager) *store.PnL { return store.NewPnL(txm) },
			func(txm *db.PgTxManager) *store.Users { return store.NewUsers(txm) },

			func(cfg *config.Config) (secrets.Decrypter, error) {
				return secrets.NewAESGCM(cfg.SecretsKey)
			},

			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token == "" {
					return notify.NewStdout()
				}
				tg, err := notify.NewTelegram(cfg.Telegram.Token)
				if err != nil {
					logger.Warn("[BOT] telegram init failed, falling back to stdout: %v", err)
					return notify.NewStdout()
				}
				return tg
			},

			func(cfg *config.Config) *exchange.Client {
				return exchange.NewClient(cfg.Exchange.RestURL)
			},

			func(ex *exchange.Client, trades *store.Trades, pnl *store.PnL, dec secrets.Decrypter, n notify.Notifier, cfg *config.Config) *reconcile.Reconciler {
				return reconcile.New(ex, trades, pnl, dec, reconcile.Config{
					AllowedAssets:  cfg.AllowedAssets,
					TrackedSymbols: cfg.TrackedSymbols,
					PageSize:       cfg.TradePageSize,
					PageCap:        cfg.TradePageCap,
					Notifier:       n,
				})
			},

			func(agg *market.Aggregator, states *store.Strategies, n notify.Notifier) *strategy.Engine {
				return strategy.NewEngine(agg, states, strategy.NewMomentum(), n)
			},

			func(users *store.Users, states *store.Strategies, rec *reconcile.Reconciler, eng *strategy.Engine, cfg *config.Config) *scheduler.Scheduler {
				return scheduler.New(users, states, rec, eng, cfg.Bots,
					cfg.ReconcileInterval, cfg.DecisionInterval)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config, sched *scheduler.Scheduler) {
			var closeTracer func()
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					if cfg.Tracing.Host != "" {
						_, closer, err := tracing.InitTracer(tracing.Config{
							Host: cfg.Tracing.Host,
							Port: cfg.Tracing.Port,
						})
						if err != nil {
							logger.Warn("[BOT] tracer init failed: %v", err)
						} else {
							closeTracer = closer
						}
					}
					sched.Start(ctx)
					return nil
				},
				OnStop: func(_ context.Context) error {
					if closeTracer != nil {
						closeTracer()
					}
					return nil
				},
			})
		}),
	)
}
