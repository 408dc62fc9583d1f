package store

import (
	"context"
	"fmt"

	"marketbot/internal/models"
	"marketbot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Users reads account rows. Account creation and credential storage are
// handled by the profile service; this side only consumes them.
type Users struct {
	db *db.PgTxManager
}

func NewUsers(txm *db.PgTxManager) *Users {
	return &Users{db: txm}
}

func (u *Users) List(ctx context.Context) (out []*models.UserAccount, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Users.List: %w", err)
		}
	}()

	err = u.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
			SELECT id, api_key, api_secret, COALESCE(telegram_chat_id, 0)
			FROM users`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			acc := &models.UserAccount{}
			if err := rows.Scan(&acc.ID, &acc.APIKeyBlob, &acc.APISecretBlob, &acc.TelegramChatID); err != nil {
				return err
			}
			out = append(out, acc)
		}
		return rows.Err()
	})
	return out, err
}
