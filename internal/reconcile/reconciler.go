// Package reconcile pulls the exchange's authoritative balances and trade
// history into the local ledger and recomputes average-cost-basis PnL.
// Every per-asset and per-symbol failure is logged and skipped; only a
// credential failure aborts a user's cycle.
package reconcile

import (
	"context"
	"time"

	"marketbot/internal/exchange"
	"marketbot/internal/models"
	"marketbot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// ExchangeAPI is the slice of the REST client the reconciler uses.
type ExchangeAPI interface {
	Balances(ctx context.Context, creds models.Credentials) ([]exchange.Balance, error)
	Price(ctx context.Context, pair string) (float64, error)
	MyTrades(ctx context.Context, creds models.Credentials, symbol string, limit int, fromID int64) ([]exchange.TradeRow, error)
}

// TradeLedger is the idempotent trade store.
type TradeLedger interface {
	InsertIfAbsent(ctx context.Context, tr *models.Trade) (bool, error)
	ListBySymbol(ctx context.Context, userID int64, symbol string) ([]models.Trade, error)
	MaxTradeID(ctx context.Context, userID int64, symbol string) (int64, error)
}

// SnapshotStore persists the per-user PnL snapshot.
type SnapshotStore interface {
	Upsert(ctx context.Context, snap *models.PnLSnapshot) error
}

type Decrypter interface {
	Decrypt(blob string) (string, error)
}

type Notifier interface {
	Notifyf(chatID int64, format string, args ...any)
}

type Config struct {
	AllowedAssets  []string
	TrackedSymbols []string
	PageSize       int
	PageCap        int

	// Notifier, when set, receives a one-line summary after each
	// persisted snapshot.
	Notifier Notifier
}

type Reconciler struct {
	ex       ExchangeAPI
	ledger   TradeLedger
	pnl      SnapshotStore
	secrets  Decrypter
	notifier Notifier
	assets   []string
	symbols  []string
	pageSize int
	pageCap  int
}

func New(ex ExchangeAPI, ledger TradeLedger, pnl SnapshotStore, secrets Decrypter, cfg Config) *Reconciler {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.PageCap <= 0 {
		cfg.PageCap = 50
	}
	return &Reconciler{
		ex:       ex,
		ledger:   ledger,
		pnl:      pnl,
		secrets:  secrets,
		notifier: cfg.Notifier,
		assets:   cfg.AllowedAssets,
		symbols:  cfg.TrackedSymbols,
		pageSize: cfg.PageSize,
		pageCap:  cfg.PageCap,
	}
}

// Reconcile runs one full cycle for a user: balances, then trade
// ingestion, then the PnL recompute, strictly in that order. It returns an
// error only when the credential lookup itself fails.
func (r *Reconciler) Reconcile(ctx context.Context, user *models.UserAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconcile.user")
	span.SetTag("user_id", user.ID)
	defer span.Finish()

	creds, err := r.credentials(user)
	if err != nil {
		return errors.Wrapf(err, "credentials for user %d", user.ID)
	}

	total, details := r.fetchBalances(ctx, creds)

	for _, symbol := range r.symbols {
		if err := r.ingestTrades(ctx, user.ID, creds, symbol); err != nil {
			logger.Warn("[SYNC] user=%d %s trade ingestion failed: %v", user.ID, symbol, err)
		}
	}

	if details == nil {
		// balance step failed outright; keep the last good snapshot
		logger.Warn("[SYNC] user=%d skipping PnL recompute, no balance data this cycle", user.ID)
		return nil
	}

	snap := r.computePnL(ctx, user.ID, details)
	snap.TotalBalanceUSD = total
	snap.Balances = details
	snap.ComputedAt = time.Now()

	if err := r.pnl.Upsert(ctx, snap); err != nil {
		logger.Error("[SYNC] user=%d persist PnL snapshot failed: %v", user.ID, err)
		return nil
	}

	if r.notifier != nil && user.TelegramChatID != 0 {
		r.notifier.Notifyf(user.TelegramChatID,
			"Account synced: balance %.2f USD, profit %.2f USD (%.2f%%)",
			snap.TotalBalanceUSD, snap.TotalProfit, snap.PnLPercent)
	}
	return nil
}

func (r *Reconciler) credentials(user *models.UserAccount) (models.Credentials, error) {
	apiKey, err := r.secrets.Decrypt(user.APIKeyBlob)
	if err != nil {
		return models.Credentials{}, err
	}
	apiSecret, err := r.secrets.Decrypt(user.APISecretBlob)
	if err != nil {
		return models.Credentials{}, err
	}
	return models.Credentials{APIKey: apiKey, APISecret: apiSecret}, nil
}

// fetchBalances values every allow-listed asset in USD. A failed price
// lookup drops that asset from the detail, never the whole cycle. A nil
// detail slice means the balance fetch itself failed.
func (r *Reconciler) fetchBalances(ctx context.Context, creds models.Credentials) (float64, []models.AssetBalance) {
	rows, err := r.ex.Balances(ctx, creds)
	if err != nil {
		logger.Warn("[SYNC] balance fetch failed: %v", err)
		return 0, nil
	}

	allowed := make(map[string]bool, len(r.assets))
	for _, a := range r.assets {
		allowed[a] = true
	}

	total := 0.0
	details := make([]models.AssetBalance, 0, len(r.assets))
	for _, row := range rows {
		if !allowed[row.Asset] || row.Total <= 0 {
			continue
		}

		pair := row.Asset + "USDT"
		price, err := r.ex.Price(ctx, pair)
		if err != nil {
			logger.Warn("[SYNC] price lookup failed for %s: %v", pair, err)
			continue
		}

		value := row.Total * price
		total += value
		details = append(details, models.AssetBalance{
			Asset:    row.Asset,
			Amount:   row.Total,
			PriceUSD: price,
			ValueUSD: value,
		})
	}
	return total, details
}

// ingestTrades pages through the symbol's trade history from the last
// ingested ID and appends new ledger rows. The cursor advances to
// lastTradeID+1 after every full page; a short page ends the loop. The
// page cap bounds a misbehaving exchange that never returns a short page.
func (r *Reconciler) ingestTrades(ctx context.Context, userID int64, creds models.Credentials, symbol string) error {
	currentPrice, err := r.ex.Price(ctx, symbol)
	if err != nil {
		return errors.Wrapf(err, "current price %s", symbol)
	}

	fromID, err := r.ledger.MaxTradeID(ctx, userID, symbol)
	if err != nil {
		return err
	}
	if fromID > 0 {
		fromID++
	}

	for page := 0; ; page++ {
		if page >= r.pageCap {
			logger.Error("[SYNC] user=%d %s pagination cap (%d pages) hit, giving up this cycle", userID, symbol, r.pageCap)
			return nil
		}

		rows, err := r.ex.MyTrades(ctx, creds, symbol, r.pageSize, fromID)
		if err != nil {
			return err
		}

		for i := range rows {
			tr := tradeFromRow(userID, symbol, rows[i], currentPrice)
			if _, err := r.ledger.InsertIfAbsent(ctx, tr); err != nil {
				logger.Warn("[SYNC] user=%d %s insert trade %d failed: %v", userID, symbol, tr.TradeID, err)
			}
		}

		if len(rows) < r.pageSize {
			return nil
		}
		fromID = rows[len(rows)-1].ID + 1
	}
}

func tradeFromRow(userID int64, symbol string, row exchange.TradeRow, currentPrice float64) *models.Trade {
	price := parseF(row.Price)
	qty := parseF(row.Qty)

	direction := -1.0
	if row.IsBuyer {
		direction = 1.0
	}

	return &models.Trade{
		TradeID:          row.ID,
		UserID:           userID,
		Symbol:           symbol,
		Price:            price,
		Quantity:         qty,
		QuoteQuantity:    parseF(row.QuoteQty),
		Commission:       parseF(row.Commission),
		CommissionAsset:  row.CommissionAsset,
		IsBuyer:          row.IsBuyer,
		Timestamp:        time.UnixMilli(row.Time),
		RealizedGainLoss: (currentPrice - price) * qty * direction,
	}
}
