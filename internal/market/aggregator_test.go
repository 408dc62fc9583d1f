package market

import (
	"math"
	"os"
	"testing"
	"time"

	"marketbot/internal/models"
	"marketbot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	os.Exit(m.Run())
}

func tickAt(symbol string, price float64, at time.Time) models.Tick {
	return models.Tick{
		Symbol:      symbol,
		LastPrice:   price,
		QuoteVolume: 10,
		Timestamp:   at,
	}
}

func TestAggregatorCandleOHLC(t *testing.T) {
	agg := NewAggregator(time.Second, 100)
	base := time.Unix(100, 0)

	for i, price := range []float64{10, 12, 9, 11} {
		agg.OnTick(tickAt("BTCUSDT", price, base.Add(time.Duration(i)*100*time.Millisecond)))
	}

	c, ok := agg.LiveCandle("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 10.0, c.Open)
	assert.Equal(t, 12.0, c.High)
	assert.Equal(t, 9.0, c.Low)
	assert.Equal(t, 11.0, c.Close)
}

func TestAggregatorPeriodRollover(t *testing.T) {
	agg := NewAggregator(time.Second, 100)
	base := time.Unix(100, 0)

	agg.OnTick(tickAt("BTCUSDT", 10, base))
	agg.OnTick(tickAt("BTCUSDT", 12, base.Add(500*time.Millisecond)))
	// next period
	agg.OnTick(tickAt("BTCUSDT", 20, base.Add(1200*time.Millisecond)))

	c, ok := agg.LiveCandle("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 20.0, c.Open)
	assert.Equal(t, 20.0, c.Close)
	assert.Equal(t, base.Add(time.Second), c.PeriodStart)

	// the finalized candle of the first period came out on the event stream
	var finalized *models.Candle
	for done := false; !done; {
		select {
		case ev := <-agg.Events():
			if ev.Finalized != nil {
				finalized = ev.Finalized
				done = true
			}
		default:
			done = true
		}
	}
	require.NotNil(t, finalized)
	assert.Equal(t, 10.0, finalized.Open)
	assert.Equal(t, 12.0, finalized.Close)

	// window holds one sample per period, latest close wins within a period
	closes, last, ok := agg.Closes("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, []float64{12, 20}, closes)
	assert.Equal(t, 20.0, last)
}

func TestAggregatorDropsMalformedTicks(t *testing.T) {
	agg := NewAggregator(time.Second, 100)
	base := time.Unix(100, 0)

	agg.OnTick(tickAt("BTCUSDT", math.NaN(), base))
	agg.OnTick(tickAt("BTCUSDT", math.Inf(1), base))
	agg.OnTick(tickAt("BTCUSDT", -5, base))
	agg.OnTick(tickAt("BTCUSDT", 0, base))

	_, _, ok := agg.Closes("BTCUSDT")
	assert.False(t, ok)

	agg.OnTick(tickAt("BTCUSDT", 42, base))
	closes, last, ok := agg.Closes("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, []float64{42}, closes)
	assert.Equal(t, 42.0, last)
}

func TestAggregatorSymbolsIndependent(t *testing.T) {
	agg := NewAggregator(time.Second, 100)
	base := time.Unix(100, 0)

	agg.OnTick(tickAt("BTCUSDT", 10, base))
	agg.OnTick(tickAt("ETHUSDT", 20, base))

	btc, _, ok := agg.Closes("BTCUSDT")
	require.True(t, ok)
	eth, _, ok := agg.Closes("ETHUSDT")
	require.True(t, ok)

	assert.Equal(t, []float64{10}, btc)
	assert.Equal(t, []float64{20}, eth)
}
