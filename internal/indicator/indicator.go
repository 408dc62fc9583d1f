// Package indicator computes rolling technical indicators over a close
// sequence. Every function is pure: identical input always produces an
// identical snapshot, and a window shorter than an indicator's period
// leaves that value undefined rather than zero.
package indicator

import (
	"math"

	"marketbot/internal/models"
)

// Value is one indicator output. Defined is false when the window held
// fewer samples than the indicator needed; callers must treat that as
// "insufficient data, skip cycle", not as zero.
type Value struct {
	V       float64
	Defined bool
}

func defined(v float64) Value { return Value{V: v, Defined: true} }

// Finite reports whether the value is defined and a usable number.
func (v Value) Finite() bool {
	return v.Defined && !math.IsNaN(v.V) && !math.IsInf(v.V, 0)
}

// Snapshot is the full indicator set for one symbol at one instant.
// Derived from the window, recomputed each cycle, never mutated.
type Snapshot struct {
	MaShort       Value
	MaMid         Value
	MaLong        Value
	RSI           Value
	MACD          Value
	MACDSignal    Value
	MACDHistogram Value
}

// Compute derives the snapshot for one strategy's periods.
func Compute(closes []float64, cfg *models.StrategyConfig) Snapshot {
	macd, signal, hist := MACD(closes, cfg.MacdFast, cfg.MacdSlow, cfg.MacdSignalPeriod)
	return Snapshot{
		MaShort:       SMA(closes, cfg.MaShortPeriod),
		MaMid:         SMA(closes, cfg.MaMidPeriod),
		MaLong:        SMA(closes, cfg.MaLongPeriod),
		RSI:           RSI(closes, cfg.RSIPeriod),
		MACD:          macd,
		MACDSignal:    signal,
		MACDHistogram: hist,
	}
}

// SMA is the simple moving average of the last period closes.
func SMA(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period {
		return Value{}
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return defined(sum / float64(period))
}

// RSI uses Wilder smoothing: a seed average over the first period deltas,
// then avg = (avg*(period-1) + delta) / period for the rest.
func RSI(closes []float64, period int) Value {
	if period <= 0 || len(closes) < period+1 {
		return Value{}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return defined(100)
	}
	rs := avgGain / avgLoss
	return defined(100 - 100/(1+rs))
}

// MACD returns the MACD line (fast EMA minus slow EMA), its signal EMA,
// and the histogram (macd minus signal).
func MACD(closes []float64, fast, slow, signalPeriod int) (macd, signal, histogram Value) {
	if fast <= 0 || slow <= 0 || signalPeriod <= 0 || fast >= slow {
		return
	}
	if len(closes) < slow+signalPeriod {
		return
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// MACD line exists from index slow-1 onward; both EMA series are
	// aligned with closes.
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}

	signalSeries := emaSeries(line, signalPeriod)

	m := line[len(line)-1]
	s := signalSeries[len(signalSeries)-1]
	return defined(m), defined(s), defined(m - s)
}

// emaSeries computes the exponential moving average aligned with values.
// Entries before index period-1 are warm-up values seeded with an SMA.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if len(values) < period {
		// not enough for a seed; plain running EMA from the first value
		k := 2.0 / float64(period+1)
		out[0] = values[0]
		for i := 1; i < len(values); i++ {
			out[i] = values[i]*k + out[i-1]*(1-k)
		}
		return out
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	for i := 0; i < period; i++ {
		out[i] = seed
	}

	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
