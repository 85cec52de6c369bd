package lyrics

import (
	"sort"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// Config holds the timing windows that shape line activation and word
// highlighting. All values are seconds.
type Config struct {
	// LeadIn shows the first line this long before it starts.
	LeadIn float64
	// HoldAfter keeps a finished line on screen for this long before the
	// next line (or an interlude) takes over.
	HoldAfter float64
	// InterludeGap is the minimum silence between two lines that counts
	// as an interlude. Shorter gaps flow straight into the next line.
	InterludeGap float64
	// PreviewLead shows the upcoming line this long before it starts when
	// coming out of an interlude.
	PreviewLead float64
	// LastLineHold keeps the final line on screen this long after it ends.
	LastLineHold float64
	// WordLeadTime starts a word's fill slightly before its nominal
	// onset. 0.3 gives a relaxed pre-fill, 0.03 a tight one.
	WordLeadTime float64
}

// DefaultConfig returns the stock timing windows.
func DefaultConfig() Config {
	return Config{
		LeadIn:       3.0,
		HoldAfter:    0.5,
		InterludeGap: 4.0,
		PreviewLead:  2.0,
		LastLineHold: 2.0,
		WordLeadTime: 0.3,
	}
}

// Resolver maps a playback time to the active lyric line. Resolution is
// a pure function of (time, lines); the cached index is only a search
// hint and never changes the result.
type Resolver struct {
	cfg  Config
	last int
}

// NewResolver creates a resolver with the given timing windows.
func NewResolver(cfg Config) *Resolver {
	return &Resolver{cfg: cfg, last: -1}
}

// ActiveLine returns the index of the line active at time t, or false
// during an interlude. Lines must be sorted ascending and non-overlapping.
func (r *Resolver) ActiveLine(lines []song.Line, t float64) (int, bool) {
	// Frame-to-frame resolution almost always lands on the cached line or
	// its successor, so try those before the full search.
	if r.last >= 0 && r.last < len(lines) {
		for _, i := range [2]int{r.last, r.last + 1} {
			if i >= len(lines) {
				continue
			}
			if windowStart(r.cfg, lines, i) <= t && t < windowEnd(r.cfg, lines, i) {
				r.last = i
				return i, true
			}
		}
	}

	idx, ok := ActiveLineAt(r.cfg, lines, t)
	if ok {
		r.last = idx
	}
	return idx, ok
}

// ActiveLineAt resolves the active line without any cache. It returns
// the active index and true, or -1 and false during an interlude.
func ActiveLineAt(cfg Config, lines []song.Line, t float64) (int, bool) {
	if len(lines) == 0 {
		return -1, false
	}

	// Window starts are strictly ordered, so the only candidate is the
	// last line whose window has opened by t.
	n := sort.Search(len(lines), func(i int) bool {
		return windowStart(cfg, lines, i) > t
	})
	if n == 0 {
		return -1, false
	}
	i := n - 1
	if t < windowEnd(cfg, lines, i) {
		return i, true
	}
	return -1, false
}

// windowStart returns the time at which line i becomes active: its start
// minus the lead-in for the first line, the end of the previous line's
// hold when the gap is short, or a preview lead out of an interlude.
func windowStart(cfg Config, lines []song.Line, i int) float64 {
	line := lines[i]
	if i == 0 {
		return line.StartTime - cfg.LeadIn
	}
	prevHold := holdEnd(cfg, lines, i-1)
	gap := line.StartTime - lines[i-1].EndTime
	if gap <= cfg.InterludeGap {
		return prevHold
	}
	start := line.StartTime - cfg.PreviewLead
	if start < prevHold {
		return prevHold
	}
	return start
}

// windowEnd returns the time at which line i stops being active.
func windowEnd(cfg Config, lines []song.Line, i int) float64 {
	if i+1 < len(lines) {
		gap := lines[i+1].StartTime - lines[i].EndTime
		if gap <= cfg.InterludeGap {
			// No interlude: the line yields exactly when the next window opens.
			return windowStart(cfg, lines, i+1)
		}
	}
	return holdEnd(cfg, lines, i)
}

// holdEnd returns when line i's grace hold expires, bounded by the next
// line's real start so an overlap-free handoff is preserved even for
// gaps shorter than the hold itself.
func holdEnd(cfg Config, lines []song.Line, i int) float64 {
	line := lines[i]
	if i == len(lines)-1 {
		return line.EndTime + cfg.LastLineHold
	}
	end := line.EndTime + cfg.HoldAfter
	if next := lines[i+1].StartTime; end > next {
		return next
	}
	return end
}
