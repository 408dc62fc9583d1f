package store

import (
	"context"
	"fmt"

	"marketbot/internal/models"
	"marketbot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Trades is the append-only trade ledger. (user_id, trade_id) is the
// idempotence key: re-ingesting the same exchange history changes nothing.
type Trades struct {
	db *db.PgTxManager
}

func NewTrades(txm *db.PgTxManager) *Trades {
	return &Trades{db: txm}
}

// InsertIfAbsent writes one ledger row unless its tradeID is already
// present. Returns whether a row was actually inserted.
func (t *Trades) InsertIfAbsent(ctx context.Context, tr *models.Trade) (inserted bool, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.InsertIfAbsent: %w", err)
		}
	}()

	err = t.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctxTx, `
			INSERT INTO history_trades
				(trade_id, user_id, symbol, price, quantity, quote_quantity,
				 commission, commission_asset, is_buyer, ts, gain_loss)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, trade_id) DO NOTHING`,
			tr.TradeID, tr.UserID, tr.Symbol, tr.Price, tr.Quantity, tr.QuoteQuantity,
			tr.Commission, tr.CommissionAsset, tr.IsBuyer, tr.Timestamp, tr.RealizedGainLoss)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() > 0
		return nil
	})
	return inserted, err
}

// ListBySymbol returns all ledger rows for one user and symbol, ascending
// by trade ID. The PnL recompute reads the full set each cycle.
func (t *Trades) ListBySymbol(ctx context.Context, userID int64, symbol string) (out []models.Trade, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.ListBySymbol: %w", err)
		}
	}()

	err = t.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
			SELECT trade_id, user_id, symbol, price, quantity, quote_quantity,
			       commission, commission_asset, is_buyer, ts, gain_loss
			FROM history_trades
			WHERE user_id = $1 AND symbol = $2
			ORDER BY trade_id`,
			userID, symbol)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tr models.Trade
			if err := rows.Scan(&tr.TradeID, &tr.UserID, &tr.Symbol, &tr.Price,
				&tr.Quantity, &tr.QuoteQuantity, &tr.Commission, &tr.CommissionAsset,
				&tr.IsBuyer, &tr.Timestamp, &tr.RealizedGainLoss); err != nil {
				return err
			}
			out = append(out, tr)
		}
		return rows.Err()
	})
	return out, err
}

// MaxTradeID returns the highest ingested trade ID for one user and
// symbol, 0 when none. Pagination resumes from here instead of refetching
// the whole history every cycle.
func (t *Trades) MaxTradeID(ctx context.Context, userID int64, symbol string) (maxID int64, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Trades.MaxTradeID: %w", err)
		}
	}()

	err = t.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctxTx, `
			SELECT COALESCE(MAX(trade_id), 0)
			FROM history_trades
			WHERE user_id = $1 AND symbol = $2`,
			userID, symbol).Scan(&maxID)
	})
	return maxID, err
}
