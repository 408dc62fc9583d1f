package models

import "time"

// Tick is one message from the market ticker stream.
type Tick struct {
	Symbol        string
	LastPrice     float64
	PercentChange float64
	QuoteVolume   float64
	Timestamp     time.Time
}

// Candle is one OHLC record. It is mutated in place while its period is
// open and becomes immutable once the period boundary passes.
type Candle struct {
	Symbol      string
	PeriodStart time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
}

// Sample is one rolling-window entry.
type Sample struct {
	Timestamp time.Time
	Close     float64
	Volume    float64
}
