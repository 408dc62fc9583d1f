package store

import (
	"context"
	"fmt"

	"marketbot/internal/models"
	"marketbot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Strategies reads and updates per-user strategy position state. Creation
// and deactivation belong to the setup collaborator; the decision engine
// only ever touches the position fields.
type Strategies struct {
	db *db.PgTxManager
}

func NewStrategies(txm *db.PgTxManager) *Strategies {
	return &Strategies{db: txm}
}

func (s *Strategies) ListActive(ctx context.Context) (out []*models.UserStrategyState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.ListActive: %w", err)
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
			SELECT id, user_id, strategy_config_id, active, in_position,
			       entry_price, units_held, cash_balance, initial_balance, last_action
			FROM user_strategies
			WHERE active`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			st := &models.UserStrategyState{}
			var lastAction string
			if err := rows.Scan(&st.ID, &st.UserID, &st.StrategyConfigID, &st.Active,
				&st.InPosition, &st.EntryPrice, &st.UnitsHeld, &st.CashBalance,
				&st.InitialBalance, &lastAction); err != nil {
				return err
			}
			st.LastAction = models.Side(lastAction)
			out = append(out, st)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Strategies) UpdatePosition(ctx context.Context, st *models.UserStrategyState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Strategies.UpdatePosition: %w", err)
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			UPDATE user_strategies SET
				in_position = $2,
				entry_price = $3,
				units_held = $4,
				cash_balance = $5,
				last_action = $6
			WHERE id = $1`,
			st.ID, st.InPosition, st.EntryPrice, st.UnitsHeld, st.CashBalance, string(st.LastAction))
		return err
	})
}
