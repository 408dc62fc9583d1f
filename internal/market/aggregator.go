package market

import (
	"math"
	"sync"
	"time"

	"marketbot/internal/models"
	"marketbot/pkg/logger"
)

// Event is what the aggregator emits on every accepted tick: the raw
// ticker values plus the state of the live candle after the update. When
// the tick crossed a period boundary, Finalized carries the closed candle.
type Event struct {
	Tick      models.Tick
	Candle    models.Candle
	Finalized *models.Candle
}

type symbolState struct {
	window *Window
	live   *models.Candle
}

// Aggregator owns all per-symbol rolling state: one live candle and one
// rolling window per symbol, reachable only through its methods. The tick
// path is memory-only; persistence of emitted events is the consumer's
// problem and never blocks ingestion.
type Aggregator struct {
	period time.Duration
	winCap int

	mu    sync.Mutex
	state map[string]*symbolState

	events  chan Event
	dropped int64
}

func NewAggregator(period time.Duration, windowCapacity int) *Aggregator {
	if period <= 0 {
		period = time.Second
	}
	return &Aggregator{
		period: period,
		winCap: windowCapacity,
		state:  make(map[string]*symbolState),
		events: make(chan Event, 1024),
	}
}

// Events is the stream of per-tick updates. Consumers that fall behind
// lose events, not ticks: the live window stays correct regardless.
func (a *Aggregator) Events() <-chan Event { return a.events }

// OnTick folds one ticker message into the symbol's live candle and
// rolling window. Malformed ticks are dropped and logged, never fatal.
func (a *Aggregator) OnTick(t models.Tick) {
	if math.IsNaN(t.LastPrice) || math.IsInf(t.LastPrice, 0) || t.LastPrice <= 0 {
		logger.Warn("[MARKET] dropped malformed tick %s price=%v", t.Symbol, t.LastPrice)
		return
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}

	a.mu.Lock()
	st, ok := a.state[t.Symbol]
	if !ok {
		st = &symbolState{window: NewWindow(a.winCap)}
		a.state[t.Symbol] = st
	}

	periodStart := t.Timestamp.Truncate(a.period)

	var finalized *models.Candle
	if st.live == nil || periodStart.After(st.live.PeriodStart) {
		if st.live != nil {
			done := *st.live
			finalized = &done
		}
		st.live = &models.Candle{
			Symbol:      t.Symbol,
			PeriodStart: periodStart,
			Open:        t.LastPrice,
			High:        t.LastPrice,
			Low:         t.LastPrice,
			Close:       t.LastPrice,
			Volume:      t.QuoteVolume,
		}
	} else {
		c := st.live
		c.Close = t.LastPrice
		if t.LastPrice > c.High {
			c.High = t.LastPrice
		}
		if t.LastPrice < c.Low {
			c.Low = t.LastPrice
		}
		c.Volume = t.QuoteVolume
	}

	st.window.Append(models.Sample{
		Timestamp: periodStart,
		Close:     t.LastPrice,
		Volume:    t.QuoteVolume,
	})

	ev := Event{Tick: t, Candle: *st.live, Finalized: finalized}
	select {
	case a.events <- ev:
	default:
		a.dropped++
	}
	a.mu.Unlock()
}

// Closes returns the close sequence and last close for a symbol. ok is
// false when the symbol has produced no ticks yet.
func (a *Aggregator) Closes(symbol string) (closes []float64, last float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, found := a.state[symbol]
	if !found || st.window.Len() == 0 {
		return nil, 0, false
	}
	closes = st.window.Closes()
	return closes, closes[len(closes)-1], true
}

// LiveCandle returns a copy of the symbol's open candle.
func (a *Aggregator) LiveCandle(symbol string) (models.Candle, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st, found := a.state[symbol]
	if !found || st.live == nil {
		return models.Candle{}, false
	}
	return *st.live, true
}
