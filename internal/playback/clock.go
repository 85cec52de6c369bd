package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/lyrics"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/scoring"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// ErrAlreadyRunning is returned when Start is called on a running clock.
var ErrAlreadyRunning = errors.New("playback clock already running")

// Config holds the loop frequencies.
type Config struct {
	// TickInterval is the frame pipeline rate.
	TickInterval time.Duration
	// PublishInterval bounds how often the shared time update fires, so
	// downstream consumers are not flooded at frame rate.
	PublishInterval time.Duration
}

// DefaultConfig runs the pipeline at ~60Hz and publishes time at 4Hz.
func DefaultConfig() Config {
	return Config{
		TickInterval:    16 * time.Millisecond,
		PublishInterval: 250 * time.Millisecond,
	}
}

// InputSource reports whether the performer's input channel (microphone)
// is live at this instant.
type InputSource interface {
	Active() bool
}

// InputFunc adapts a function to InputSource.
type InputFunc func() bool

// Active implements InputSource.
func (f InputFunc) Active() bool { return f() }

// Frame is the per-tick render state derived from the media position.
type Frame struct {
	Time float64
	// LineIndex is the active lyric line, or -1 during an interlude.
	LineIndex int
	// WordProgress has one fill percentage per word of the active line.
	WordProgress []float64
	// LineProgress is the whole-line fill used when the chart has no
	// word timings.
	LineProgress float64
	Awards       []scoring.Award
	Score        int
	Combo        int
	MaxStreak    int
	Multiplier   float64
}

// Clock drives the resolver → highlight → scoring pipeline from the
// authoritative media position. One Clock serves one song session.
type Clock struct {
	cfg      Config
	clock    clockwork.Clock
	media    Media
	lines    []song.Line
	resolver *lyrics.Resolver
	lyricCfg lyrics.Config
	engine   *scoring.Engine
	input    InputSource

	onFrame func(Frame)
	onTime  func(float64)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a clock for one song. onFrame fires every tick with the
// derived render state; onTime fires at the coarse publish interval.
// Either callback may be nil.
func New(cfg Config, clock clockwork.Clock, media Media, lines []song.Line, lyricCfg lyrics.Config, engine *scoring.Engine, input InputSource, onFrame func(Frame), onTime func(float64)) *Clock {
	return &Clock{
		cfg:      cfg,
		clock:    clock,
		media:    media,
		lines:    lines,
		resolver: lyrics.NewResolver(lyricCfg),
		lyricCfg: lyricCfg,
		engine:   engine,
		input:    input,
		onFrame:  onFrame,
		onTime:   onTime,
	}
}

// Start plays the media and begins the tick loop. It must be called on a
// transition into playing; a second Start without a Stop is refused.
func (c *Clock) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	c.media.Play()
	go c.run(loopCtx, done)

	log.Debug().Dur("tick", c.cfg.TickInterval).Msg("playback clock started")
	return nil
}

// Stop pauses the media and fully cancels the loop: when Stop returns no
// further callbacks will fire. Safe to call repeatedly and while stopped.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.media.Pause()
	log.Debug().Msg("playback clock stopped")
}

// Seek force-sets the media position. The next tick computes from the
// new value; the pipeline's pure functions carry no state that could
// disagree with it.
func (c *Clock) Seek(seconds float64) {
	c.media.Seek(seconds)
}

// Tick runs one pipeline step at position t and returns the frame. It is
// the same computation the loop performs, callable from any host loop or
// test harness.
func (c *Clock) Tick(t float64) Frame {
	frame := Frame{Time: t, LineIndex: -1, Multiplier: c.engine.Multiplier()}

	idx, ok := c.resolver.ActiveLine(c.lines, t)
	activeIdx := -1
	if ok {
		activeIdx = idx
		frame.LineIndex = idx
		line := c.lines[idx]
		if line.HasWords() {
			frame.WordProgress = lyrics.WordProgresses(line, t, c.lyricCfg.WordLeadTime)
		} else {
			frame.LineProgress = lyrics.LineProgress(line, t)
		}
	}

	frame.Awards = c.engine.Advance(t, c.lines, activeIdx, c.input.Active())
	frame.Score = c.engine.Score()
	frame.Combo = c.engine.Combo()
	frame.MaxStreak = c.engine.MaxStreak()
	frame.Multiplier = c.engine.Multiplier()
	return frame
}

func (c *Clock) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	var lastPublish time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			pos := c.media.Position()
			frame := c.Tick(pos)
			if c.onFrame != nil {
				c.onFrame(frame)
			}
			if c.onTime != nil {
				now := c.clock.Now()
				if lastPublish.IsZero() || now.Sub(lastPublish) >= c.cfg.PublishInterval {
					lastPublish = now
					c.onTime(pos)
				}
			}
		}
	}
}
