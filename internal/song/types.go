package song

import (
	"math"
	"strconv"
)

// DefaultWordEnergy is assumed for words whose vocal energy the worker
// could not measure. The worker writes the same value on extraction
// failure, so both sides agree on the fallback.
const DefaultWordEnergy = 0.5

// Word is a single aligned lyric word with optional vocal features.
// Times are seconds relative to track start.
type Word struct {
	StartTime   float64   `json:"startTime"`
	EndTime     float64   `json:"endTime"`
	Text        string    `json:"text"`
	Energy      *float64  `json:"energy,omitempty"`
	EnergyCurve []float64 `json:"energyCurve,omitempty"`
	Pitch       *float64  `json:"pitch,omitempty"`
	Note        string    `json:"note,omitempty"`
	Midi        *int      `json:"midi,omitempty"`
}

// EnergyOrDefault returns the word's energy, clamped to [0,1], or
// DefaultWordEnergy when the worker supplied none.
func (w Word) EnergyOrDefault() float64 {
	if w.Energy == nil {
		return DefaultWordEnergy
	}
	e := *w.Energy
	if e < 0 {
		return 0
	}
	if e > 1 {
		return 1
	}
	return e
}

// Duration returns the word's window length in seconds.
func (w Word) Duration() float64 {
	return w.EndTime - w.StartTime
}

// Line is one lyric line. Words, when present, are contiguous and fall
// within [StartTime, EndTime]. A song's lines are sorted ascending by
// StartTime and never overlap.
type Line struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
	Words     []Word  `json:"words,omitempty"`
}

// HasWords reports whether word-level timing data is available.
func (l Line) HasWords() bool {
	return len(l.Words) > 0
}

// Duration returns the line's span in seconds.
func (l Line) Duration() float64 {
	return l.EndTime - l.StartTime
}

// PitchPoint is one confidence-filtered pitch sample from the analysis
// worker.
type PitchPoint struct {
	Time       float64 `json:"time"`
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
	Note       string  `json:"note"`
	Midi       int     `json:"midi"`
}

// Song is the immutable per-selection payload the engine plays against.
// It is fetched once and treated as read-only for the session.
type Song struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Artist          string       `json:"artist"`
	Duration        float64      `json:"duration"`
	AudioURL        string       `json:"audioUrl"`
	InstrumentalURL string       `json:"instrumentalUrl,omitempty"`
	VocalURL        string       `json:"vocalUrl,omitempty"`
	Lyrics          []Line       `json:"lyrics"`
	Pitch           []PitchPoint `json:"pitch,omitempty"`
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// MidiFromFrequency converts a frequency in Hz to the nearest MIDI note
// number. Non-positive frequencies map to 0.
func MidiFromFrequency(freq float64) int {
	if freq <= 0 {
		return 0
	}
	return int(math.Round(69 + 12*math.Log2(freq/440.0)))
}

// NoteFromFrequency converts a frequency in Hz to a note name with
// octave, e.g. "A4". Non-positive frequencies map to "".
func NoteFromFrequency(freq float64) string {
	if freq <= 0 {
		return ""
	}
	midi := MidiFromFrequency(freq)
	return noteNames[midi%12] + strconv.Itoa(midi/12-1)
}
