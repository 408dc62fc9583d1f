package models

import "time"

// Trade is one immutable ledger row. TradeID is the exchange-assigned
// identifier and the idempotence key: a given tradeID is written at most
// once per user.
type Trade struct {
	TradeID          int64
	UserID           int64
	Symbol           string
	Price            float64
	Quantity         float64
	QuoteQuantity    float64
	Commission       float64
	CommissionAsset  string
	IsBuyer          bool
	Timestamp        time.Time
	RealizedGainLoss float64
}

// AssetBalance is one exchange balance row valued in USD.
type AssetBalance struct {
	Asset    string  `json:"asset"`
	Amount   float64 `json:"amount"`
	PriceUSD float64 `json:"price_usd"`
	ValueUSD float64 `json:"value_usd"`
}

// PnLSnapshot is the derived per-user result of one reconciliation cycle.
// Recomputed wholesale each cycle, never incrementally mutated.
type PnLSnapshot struct {
	UserID             int64
	TotalBalanceUSD    float64
	Balances           []AssetBalance
	TotalProfit        float64
	TotalEffectiveCost float64
	PnLPercent         float64
	ComputedAt         time.Time
}
