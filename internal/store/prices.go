package store

import (
	"context"
	"fmt"

	"marketbot/internal/models"
	"marketbot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Prices persists the live candle row per symbol. One row per symbol,
// upserted on every flush, so a retried write is a no-op.
type Prices struct {
	db *db.PgTxManager
}

func NewPrices(txm *db.PgTxManager) *Prices {
	return &Prices{db: txm}
}

func (p *Prices) Upsert(ctx context.Context, c models.Candle) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Prices.Upsert: %w", err)
		}
	}()

	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO price_data (symbol, period_start, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol) DO UPDATE SET
				period_start = EXCLUDED.period_start,
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume`,
			c.Symbol, c.PeriodStart, c.Open, c.High, c.Low, c.Close, c.Volume)
		return err
	})
}
