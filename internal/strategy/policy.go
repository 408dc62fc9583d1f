package strategy

import (
	"marketbot/internal/indicator"
	"marketbot/internal/models"
)

// Policy decides what to do with a position given the latest indicator
// snapshot. It is deliberately pluggable: the momentum-crossover default is
// a heuristic, not a proven strategy, and alternatives can be swapped in
// without touching the aggregation or window machinery.
type Policy interface {
	Name() string
	Evaluate(snap indicator.Snapshot, inPosition bool, cfg *models.StrategyConfig) models.Side
}

// Momentum is the stock crossover policy:
//
//	BUY  when flat   and maShort > maMid, histogram > 0, rsi < buy-below
//	SELL when holding and maShort < maMid, histogram < 0, rsi > sell-above
//
// Thresholds come from the strategy config, only on the most recent
// snapshot; there is no lookback beyond what the window already encodes.
type Momentum struct{}

func NewMomentum() *Momentum { return &Momentum{} }

func (*Momentum) Name() string { return "momentum-crossover" }

func (*Momentum) Evaluate(snap indicator.Snapshot, inPosition bool, cfg *models.StrategyConfig) models.Side {
	maS, maM := snap.MaShort.V, snap.MaMid.V
	hist, rsi := snap.MACDHistogram.V, snap.RSI.V

	if !inPosition && maS > maM && hist > 0 && rsi < cfg.RSIBuyBelow {
		return models.SideBuy
	}
	if inPosition && maS < maM && hist < 0 && rsi > cfg.RSISellAbove {
		return models.SideSell
	}
	return models.SideHold
}
