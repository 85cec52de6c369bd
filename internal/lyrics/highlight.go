package lyrics

import (
	"math"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// WordProgress returns the fill percentage [0,100] for one word at time
// t. The fill window opens leadTime seconds before the word's nominal
// onset and saturates at the word's end. Vocal energy eases the curve so
// louder syllables fill faster early in their window.
func WordProgress(w song.Word, t, leadTime float64) float64 {
	start := w.StartTime - leadTime
	if t <= start {
		return 0
	}
	if t >= w.EndTime {
		return 100
	}
	span := w.EndTime - start
	if span <= 0 {
		return 100
	}
	ratio := (t - start) / span
	exponent := 1.0 / (0.5 + w.EnergyOrDefault())
	return 100 * math.Pow(ratio, exponent)
}

// LineProgress returns a single linear fill percentage [0,100] across a
// whole line span, used when no word-level timing exists.
func LineProgress(l song.Line, t float64) float64 {
	if t <= l.StartTime {
		return 0
	}
	if t >= l.EndTime {
		return 100
	}
	span := l.EndTime - l.StartTime
	if span <= 0 {
		return 100
	}
	return 100 * (t - l.StartTime) / span
}

// WordProgresses fills a percentage per word of the line at time t. The
// returned slice is freshly allocated each call.
func WordProgresses(l song.Line, t, leadTime float64) []float64 {
	if !l.HasWords() {
		return nil
	}
	out := make([]float64, len(l.Words))
	for i, w := range l.Words {
		out[i] = WordProgress(w, t, leadTime)
	}
	return out
}
