package strategy

import (
	"context"

	"marketbot/internal/indicator"
	"marketbot/internal/models"
	"marketbot/pkg/logger"
)

// MarketData is the slice of the aggregator the engine needs.
type MarketData interface {
	Closes(symbol string) (closes []float64, last float64, ok bool)
}

// StateStore persists mutated position state.
type StateStore interface {
	UpdatePosition(ctx context.Context, state *models.UserStrategyState) error
}

type Notifier interface {
	Notifyf(chatID int64, format string, args ...any)
}

// Engine runs one decision cycle per user strategy: confirm the window is
// warm, compute the snapshot, apply the policy, mutate and persist the
// position. All mutation of a UserStrategyState happens here and only
// here, one cycle at a time per user.
type Engine struct {
	market MarketData
	states StateStore
	policy Policy
	n      Notifier
}

func NewEngine(market MarketData, states StateStore, policy Policy, n Notifier) *Engine {
	return &Engine{market: market, states: states, policy: policy, n: n}
}

// RunCycle evaluates one strategy once. A skipped cycle (cold window,
// undefined indicators) returns SideNone and no error: insufficient data
// is a normal condition, not a failure.
func (e *Engine) RunCycle(ctx context.Context, state *models.UserStrategyState, cfg *models.StrategyConfig, chatID int64) (models.Side, error) {
	closes, lastClose, ok := e.market.Closes(cfg.Symbol)
	if !ok || len(closes) < cfg.MinSamples() {
		logger.Info("[BOT] %s user=%d insufficient data: have %d need %d",
			cfg.Symbol, state.UserID, len(closes), cfg.MinSamples())
		return models.SideNone, nil
	}

	snap := indicator.Compute(closes, cfg)
	if !snap.MaShort.Finite() || !snap.MaMid.Finite() || !snap.RSI.Finite() || !snap.MACDHistogram.Finite() {
		logger.Info("[BOT] %s user=%d indicator values incomplete, skipping", cfg.Symbol, state.UserID)
		return models.SideNone, nil
	}

	action := e.policy.Evaluate(snap, state.InPosition, cfg)

	switch action {
	case models.SideBuy:
		units := state.CashBalance / lastClose
		state.InPosition = true
		state.UnitsHeld = units
		state.EntryPrice = lastClose
		state.CashBalance = 0
		state.LastAction = models.SideBuy

	case models.SideSell:
		balance := state.UnitsHeld * lastClose
		state.InPosition = false
		state.UnitsHeld = 0
		state.EntryPrice = 0
		state.CashBalance = balance
		state.LastAction = models.SideSell

	default:
		logger.Info("[BOT] %s user=%d risk=%s action=HOLD close=%.4f maS=%.4f maM=%.4f rsi=%.2f hist=%.4f",
			cfg.Symbol, state.UserID, cfg.RiskLevel, lastClose,
			snap.MaShort.V, snap.MaMid.V, snap.RSI.V, snap.MACDHistogram.V)
		return models.SideHold, nil
	}

	if err := e.states.UpdatePosition(ctx, state); err != nil {
		return models.SideNone, err
	}

	logger.Info("[BOT] %s user=%d risk=%s action=%s close=%.4f units=%.8f cash=%.2f",
		cfg.Symbol, state.UserID, cfg.RiskLevel, action, lastClose, state.UnitsHeld, state.CashBalance)
	if e.n != nil && chatID != 0 {
		if action == models.SideBuy {
			e.n.Notifyf(chatID, "[%s] BUY %.8f @ %.4f", cfg.Symbol, state.UnitsHeld, lastClose)
		} else {
			e.n.Notifyf(chatID, "[%s] SELL @ %.4f, balance %.2f", cfg.Symbol, lastClose, state.CashBalance)
		}
	}
	return action, nil
}
