package scoring

import (
	"math"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// Config holds the point formula constants. They are tuned values, not
// invariants, so they stay configurable.
type Config struct {
	// WordBase scales word points: base = WordBase × energy.
	WordBase float64
	// LineBase is the flat base for lines without word timings.
	LineBase float64
	// ComboStep is the multiplier gain per consecutive hit.
	ComboStep float64
	// MaxMultiplier caps the combo multiplier.
	MaxMultiplier float64
	// WordLeadTime widens each word's entry window to match the moment
	// its highlight fill begins.
	WordLeadTime float64
}

// DefaultConfig returns the stock scoring constants.
func DefaultConfig() Config {
	return Config{
		WordBase:      10,
		LineBase:      50,
		ComboStep:     0.1,
		MaxMultiplier: 2.0,
		WordLeadTime:  0.3,
	}
}

// Award records one scored unit: a word, or a whole line when the chart
// has no word timings (WordIndex -1).
type Award struct {
	LineIndex  int
	WordIndex  int
	Points     int
	Combo      int
	Multiplier float64
	Hit        bool
}

type visitKey struct {
	line int
	word int
}

// Engine awards points as playback enters word windows. It keeps a
// visited set per session so a unit scores at most once; replaying the
// same (time, input) sequence from a fresh engine is deterministic.
type Engine struct {
	cfg       Config
	visited   map[visitKey]struct{}
	score     int
	combo     int
	maxStreak int
}

// NewEngine creates a scoring engine with the given constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		visited: make(map[visitKey]struct{}),
	}
}

// Advance scores every unit of the active line whose window t has newly
// entered, in chart order. inputActive is the performer's input channel
// state at this instant: active at entry awards points and extends the
// combo, inactive awards nothing and resets it.
func (e *Engine) Advance(t float64, lines []song.Line, active int, inputActive bool) []Award {
	if active < 0 || active >= len(lines) {
		return nil
	}

	var awards []Award
	line := lines[active]
	if line.HasWords() {
		for wi, w := range line.Words {
			if t < w.StartTime-e.cfg.WordLeadTime || t > w.EndTime {
				continue
			}
			key := visitKey{line: active, word: wi}
			if _, seen := e.visited[key]; seen {
				continue
			}
			e.visited[key] = struct{}{}
			awards = append(awards, e.award(active, wi, e.cfg.WordBase*w.EnergyOrDefault(), inputActive))
		}
		return awards
	}

	if t < line.StartTime || t > line.EndTime {
		return nil
	}
	key := visitKey{line: active, word: -1}
	if _, seen := e.visited[key]; seen {
		return nil
	}
	e.visited[key] = struct{}{}
	return append(awards, e.award(active, -1, e.cfg.LineBase, inputActive))
}

func (e *Engine) award(lineIdx, wordIdx int, base float64, hit bool) Award {
	if !hit {
		e.combo = 0
		return Award{LineIndex: lineIdx, WordIndex: wordIdx, Multiplier: 1}
	}
	mult := e.Multiplier()
	points := int(math.Round(base * mult))
	e.score += points
	e.combo++
	if e.combo > e.maxStreak {
		e.maxStreak = e.combo
	}
	return Award{
		LineIndex:  lineIdx,
		WordIndex:  wordIdx,
		Points:     points,
		Combo:      e.combo,
		Multiplier: mult,
		Hit:        true,
	}
}

// Multiplier returns the current combo multiplier, clamped to the cap.
func (e *Engine) Multiplier() float64 {
	mult := 1 + e.cfg.ComboStep*float64(e.combo)
	if mult > e.cfg.MaxMultiplier {
		return e.cfg.MaxMultiplier
	}
	return mult
}

// Score returns the accumulated points. It only decreases on Reset.
func (e *Engine) Score() int { return e.score }

// Combo returns the current run of consecutive hits.
func (e *Engine) Combo() int { return e.combo }

// MaxStreak returns the longest combo of the session.
func (e *Engine) MaxStreak() int { return e.maxStreak }

// Reset clears score, combo, streak and the visited set together, for an
// explicit restart.
func (e *Engine) Reset() {
	e.visited = make(map[visitKey]struct{})
	e.score = 0
	e.combo = 0
	e.maxStreak = 0
}
