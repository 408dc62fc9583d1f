package models

import "fmt"

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideHold Side = "HOLD"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// StrategyConfig is one immutable per-risk-tier preset ("bot").
// Created at bootstrap from the yaml presets, read-only afterwards.
type StrategyConfig struct {
	ID               int64     `yaml:"-"`
	Symbol           string    `yaml:"symbol"`
	RiskLevel        RiskLevel `yaml:"risk_level"`
	MaShortPeriod    int       `yaml:"ma_short"`
	MaMidPeriod      int       `yaml:"ma_mid"`
	MaLongPeriod     int       `yaml:"ma_long"`
	RSIPeriod        int       `yaml:"rsi_period"`
	MacdFast         int       `yaml:"macd_fast"`
	MacdSlow         int       `yaml:"macd_slow"`
	MacdSignalPeriod int       `yaml:"macd_signal"`
	TimeInterval     string    `yaml:"time_interval"`

	// Guard thresholds. These are heuristic defaults (50/30), carried as
	// configuration so decisions stay reproducible rather than "correct".
	RSIBuyBelow  float64 `yaml:"rsi_buy_below"`
	RSISellAbove float64 `yaml:"rsi_sell_above"`
}

// Validate rejects period combinations the indicator engine cannot serve.
func (c *StrategyConfig) Validate(windowCap int) error {
	if c.Symbol == "" {
		return fmt.Errorf("strategy config: empty symbol")
	}
	if c.MaShortPeriod <= 0 || c.MaMidPeriod <= 0 || c.RSIPeriod <= 0 {
		return fmt.Errorf("strategy config %s: non-positive period", c.Symbol)
	}
	if c.MaShortPeriod >= c.MaMidPeriod {
		return fmt.Errorf("strategy config %s: ma_short must be < ma_mid", c.Symbol)
	}
	if c.MacdFast <= 0 || c.MacdSlow <= 0 || c.MacdSignalPeriod <= 0 {
		return fmt.Errorf("strategy config %s: non-positive macd period", c.Symbol)
	}
	if c.MacdFast >= c.MacdSlow {
		return fmt.Errorf("strategy config %s: macd_fast must be < macd_slow", c.Symbol)
	}
	if m := c.MinSamples(); windowCap > 0 && m > windowCap {
		return fmt.Errorf("strategy config %s: needs %d samples, window holds %d", c.Symbol, m, windowCap)
	}
	return nil
}

// MinSamples is how many window samples the guard indicators need before a
// decision cycle may run.
func (c *StrategyConfig) MinSamples() int {
	m := c.MaMidPeriod
	if c.RSIPeriod+1 > m {
		m = c.RSIPeriod + 1
	}
	if c.MacdSlow+c.MacdSignalPeriod > m {
		m = c.MacdSlow + c.MacdSignalPeriod
	}
	return m
}

// UserStrategyState is the per-user position ledger for one strategy.
// Mutated only by the decision engine; exactly one of cashBalance and
// unitsHeld carries the strategy's value at any time.
type UserStrategyState struct {
	ID               int64
	UserID           int64
	StrategyConfigID int64
	Active           bool
	InPosition       bool
	EntryPrice       float64
	UnitsHeld        float64
	CashBalance      float64
	InitialBalance   float64
	LastAction       Side
}
