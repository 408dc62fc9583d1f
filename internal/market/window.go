package market

import "marketbot/internal/models"

// Window is a fixed-capacity sequence of price/volume samples for one
// symbol, ordered by increasing timestamp. Appending at capacity evicts
// the oldest sample; a sample with the timestamp of the newest entry
// overwrites it instead of appending.
type Window struct {
	cap     int
	samples []models.Sample
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 100
	}
	return &Window{
		cap:     capacity,
		samples: make([]models.Sample, 0, capacity),
	}
}

func (w *Window) Append(s models.Sample) {
	n := len(w.samples)
	if n > 0 {
		last := &w.samples[n-1]
		if !s.Timestamp.After(last.Timestamp) {
			// same aggregation instant (or clock went backwards): keep
			// the window ordered and duplicate-free by replacing in place
			last.Close = s.Close
			last.Volume = s.Volume
			return
		}
	}
	if n == w.cap {
		copy(w.samples, w.samples[1:])
		w.samples[n-1] = s
		return
	}
	w.samples = append(w.samples, s)
}

func (w *Window) Len() int { return len(w.samples) }

func (w *Window) Capacity() int { return w.cap }

// Closes returns the close sequence, oldest first. The slice is a copy, so
// indicator math never races with the tick-consumption path.
func (w *Window) Closes() []float64 {
	out := make([]float64, len(w.samples))
	for i, s := range w.samples {
		out[i] = s.Close
	}
	return out
}

// Samples returns a copy of the window contents, oldest first.
func (w *Window) Samples() []models.Sample {
	out := make([]models.Sample, len(w.samples))
	copy(out, w.samples)
	return out
}
