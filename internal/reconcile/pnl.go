package reconcile

import (
	"context"
	"strconv"

	"marketbot/internal/models"
	"marketbot/pkg/logger"
)

// computePnL derives the global snapshot from the full ledger and the
// balances fetched this cycle. Assets that have been fully exited
// (amountStillHeld <= 0) contribute nothing.
func (r *Reconciler) computePnL(ctx context.Context, userID int64, held []models.AssetBalance) *models.PnLSnapshot {
	snap := &models.PnLSnapshot{UserID: userID}

	for _, asset := range held {
		symbol := asset.Asset + "USDT"

		trades, err := r.ledger.ListBySymbol(ctx, userID, symbol)
		if err != nil {
			logger.Warn("[SYNC] user=%d %s ledger read failed: %v", userID, symbol, err)
			continue
		}

		var totalBought, costBought, totalSold float64
		for _, tr := range trades {
			commission := 0.0
			if tr.CommissionAsset == "USDT" {
				commission = tr.Commission
			}
			if tr.IsBuyer {
				totalBought += tr.Quantity
				costBought += tr.Quantity*tr.Price + commission
			} else {
				totalSold += tr.Quantity
			}
		}

		amountStillHeld := totalBought - totalSold
		if amountStillHeld <= 0 || totalBought == 0 {
			continue
		}

		averageBuyPrice := costBought / totalBought
		effectiveCost := averageBuyPrice * amountStillHeld
		profit := (asset.PriceUSD - averageBuyPrice) * asset.Amount

		snap.TotalProfit += profit
		snap.TotalEffectiveCost += effectiveCost
	}

	if snap.TotalEffectiveCost > 0 {
		snap.PnLPercent = 100 * snap.TotalProfit / snap.TotalEffectiveCost
	}
	return snap
}

func parseF(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
