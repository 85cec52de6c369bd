package playback

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Media is the authoritative playback position. The Clock is its only
// writer; every other component consumes positions through the values
// the Clock publishes.
type Media interface {
	// Position returns the current position in seconds.
	Position() float64
	// Seek force-sets the position.
	Seek(seconds float64)
	// Play resumes advancing.
	Play()
	// Pause stops advancing, keeping the position.
	Pause()
}

// Transport is a linear Media implementation advanced by a wall (or
// fake) clock. It stands in for a host audio element when the engine
// runs headless.
type Transport struct {
	clock clockwork.Clock

	mu        sync.Mutex
	base      float64
	startedAt time.Time
	playing   bool
}

// NewTransport creates a paused transport at position 0.
func NewTransport(clock clockwork.Clock) *Transport {
	return &Transport{clock: clock}
}

// Position returns the current position in seconds.
func (t *Transport) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return t.base
	}
	return t.base + t.clock.Since(t.startedAt).Seconds()
}

// Seek force-sets the position, preserving the play state.
func (t *Transport) Seek(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.base = seconds
	t.startedAt = t.clock.Now()
}

// Play resumes advancing from the current position.
func (t *Transport) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.playing {
		return
	}
	t.playing = true
	t.startedAt = t.clock.Now()
}

// Playing reports whether the transport is advancing.
func (t *Transport) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// Pause freezes the position.
func (t *Transport) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.playing {
		return
	}
	t.base += t.clock.Since(t.startedAt).Seconds()
	t.playing = false
}
