package store

import (
	"context"
	"fmt"

	"marketbot/internal/models"
	"marketbot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

// PnL persists one snapshot row per user, replaced wholesale each
// reconciliation cycle. Readers get the last successfully persisted
// snapshot while a fresher one is being computed.
type PnL struct {
	db *db.PgTxManager
}

func NewPnL(txm *db.PgTxManager) *PnL {
	return &PnL{db: txm}
}

func (p *PnL) Upsert(ctx context.Context, snap *models.PnLSnapshot) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PnL.Upsert: %w", err)
		}
	}()

	var details []byte
	details, err = sonic.Marshal(snap.Balances)
	if err != nil {
		return err
	}

	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO user_pnl
				(user_id, total_balance_usd, balance_details, total_profit,
				 total_effective_cost, pnl_percent, computed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id) DO UPDATE SET
				total_balance_usd = EXCLUDED.total_balance_usd,
				balance_details = EXCLUDED.balance_details,
				total_profit = EXCLUDED.total_profit,
				total_effective_cost = EXCLUDED.total_effective_cost,
				pnl_percent = EXCLUDED.pnl_percent,
				computed_at = EXCLUDED.computed_at`,
			snap.UserID, snap.TotalBalanceUSD, details, snap.TotalProfit,
			snap.TotalEffectiveCost, snap.PnLPercent, snap.ComputedAt)
		return err
	})
}
