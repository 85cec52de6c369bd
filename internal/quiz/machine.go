package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Phase is the round lifecycle state of the machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePresented Phase = "presented"
	PhaseSubmitted Phase = "submitted"
	PhaseTimedOut  Phase = "timed_out"
	PhaseRevealed  Phase = "revealed"
	PhaseFinished  Phase = "finished"
)

var (
	ErrNoQuestions     = errors.New("quiz: no questions loaded")
	ErrNoActiveRound   = errors.New("quiz: no round accepting answers")
	ErrAlreadyAnswered = errors.New("quiz: answer already submitted for this question")
	ErrIncompleteOrder = errors.New("quiz: ordering answer needs exactly 4 items")
)

// Generator produces a fresh question set, typically by calling the
// generation API for the current song.
type Generator interface {
	Generate(ctx context.Context) ([]Question, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context) ([]Question, error)

func (f GeneratorFunc) Generate(ctx context.Context) ([]Question, error) { return f(ctx) }

// Config tunes the machine and names the local participant so round
// results carry an identity.
type Config struct {
	RevealDuration  time.Duration
	ParticipantID   string
	ParticipantName string
}

// DefaultConfig returns the stock reveal timing.
func DefaultConfig() Config {
	return Config{RevealDuration: 3 * time.Second}
}

// Hooks are optional callbacks fired on machine transitions. They are
// invoked outside the machine lock, so they may call back into it.
type Hooks struct {
	OnPresent  func(index int, q Question)
	OnResolved func(index int, res RoundResult, q Question)
	OnFinished func(score, maxStreak int)
}

// Machine drives quiz rounds through
// idle -> presented -> {submitted | timed_out} -> revealed and then on to
// the next question or finished. One submission is accepted per question;
// duplicate submissions and late remote force-advance events for an
// already-resolved question are absorbed by the same guard.
type Machine struct {
	clock clockwork.Clock
	cfg   Config
	hooks Hooks

	mu        sync.Mutex
	questions []Question
	index     int
	phase     Phase
	answered  bool
	deadline  time.Time
	score     int
	streak    int
	maxStreak int
	// gen invalidates in-flight timer goroutines whenever a newer
	// transition supersedes them.
	gen       int
	timer     clockwork.Timer
	done      chan struct{}
	closed    bool
}

// NewMachine builds an idle machine. Load or Restart must run before
// Start.
func NewMachine(clock clockwork.Clock, cfg Config, hooks Hooks) *Machine {
	if cfg.RevealDuration <= 0 {
		cfg.RevealDuration = DefaultConfig().RevealDuration
	}
	return &Machine{
		clock: clock,
		cfg:   cfg,
		hooks: hooks,
		phase: PhaseIdle,
		done:  make(chan struct{}),
	}
}

// Load replaces the question set and resets score, streak, and index.
// The machine returns to idle; call Start to present the first question.
func (m *Machine) Load(questions []Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(questions)
}

// Restart regenerates the question set and atomically resets score,
// streak, and index, then presents the first question.
func (m *Machine) Restart(ctx context.Context, gen Generator) error {
	questions, err := gen.Generate(ctx)
	if err != nil {
		return fmt.Errorf("regenerate questions: %w", err)
	}
	m.mu.Lock()
	m.resetLocked(questions)
	fire, err := m.presentLocked(0)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	fire()
	return nil
}

// Start presents the first loaded question.
func (m *Machine) Start() error {
	m.mu.Lock()
	fire, err := m.presentLocked(m.index)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	fire()
	return nil
}

// Submit grades the local answer for the current question. Exactly one
// submission is accepted per question; later calls return
// ErrAlreadyAnswered. An ordering answer with the wrong item count is
// rejected without consuming the submission.
func (m *Machine) Submit(a Answer) (RoundResult, error) {
	m.mu.Lock()
	if m.phase != PhasePresented {
		m.mu.Unlock()
		return RoundResult{}, ErrNoActiveRound
	}
	if m.answered {
		m.mu.Unlock()
		return RoundResult{}, ErrAlreadyAnswered
	}
	q := m.questions[m.index]
	if q.Type == TypeLyricsOrder && len(a.Order) != OrderLength {
		m.mu.Unlock()
		return RoundResult{}, ErrIncompleteOrder
	}

	m.answered = true
	m.phase = PhaseSubmitted
	remaining := m.deadline.Sub(m.clock.Now()).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	res := RoundResult{
		ParticipantID:   m.cfg.ParticipantID,
		ParticipantName: m.cfg.ParticipantName,
		IsCorrect:       Grade(q, a),
		TimeLeft:        remaining,
	}
	if res.IsCorrect {
		res.Points = Points(remaining, q.EffectiveTimeLimit())
		m.score += res.Points
		m.streak++
		if m.streak > m.maxStreak {
			m.maxStreak = m.streak
		}
	} else {
		m.streak = 0
	}
	fire := m.revealLocked(res, true)
	m.mu.Unlock()
	fire()
	return res, nil
}

// HandleForceAdvance applies a remote resolution for questionIndex.
// Stale indexes and duplicates for an already-resolved round are
// ignored; an index ahead of the local one fast-forwards the machine so
// the question index stays monotonically increasing.
func (m *Machine) HandleForceAdvance(questionIndex int, remote RoundResult) {
	m.mu.Lock()
	switch {
	case m.phase == PhaseIdle || m.phase == PhaseFinished || len(m.questions) == 0:
		m.mu.Unlock()
		return
	case questionIndex < m.index:
		log.Debug().Int("question_index", questionIndex).Int("current_index", m.index).
			Msg("ignoring stale force-advance")
		m.mu.Unlock()
		return
	case questionIndex == m.index && m.phase != PhasePresented:
		// Already resolved locally; the submission guard absorbs the
		// duplicate.
		m.mu.Unlock()
		return
	}
	if questionIndex > m.index {
		if questionIndex >= len(m.questions) {
			questionIndex = len(m.questions) - 1
		}
		m.index = questionIndex
	}
	// The round was resolved remotely before a local submission; the
	// local streak is left alone since the player neither missed nor
	// timed out.
	m.answered = true
	fire := m.revealLocked(remote, false)
	m.mu.Unlock()
	fire()
}

// ApplySnapshot replaces the question set and index from an
// authoritative sync-state snapshot. It supersedes any in-flight round,
// including force-advance events that raced with it. Score and streak
// are local and survive the snapshot.
func (m *Machine) ApplySnapshot(questions []Question, index int) {
	m.mu.Lock()
	m.stopTimerLocked()
	m.gen++
	m.questions = questions
	if index < 0 {
		index = 0
	}
	if index >= len(questions) {
		m.index = len(questions)
		m.phase = PhaseFinished
		score, maxStreak := m.score, m.maxStreak
		m.mu.Unlock()
		if m.hooks.OnFinished != nil {
			m.hooks.OnFinished(score, maxStreak)
		}
		return
	}
	fire, err := m.presentLocked(index)
	m.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("snapshot with empty question set")
		return
	}
	fire()
}

// Close stops timers and invalidates pending transitions. The machine
// is unusable afterwards.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.stopTimerLocked()
	m.gen++
	close(m.done)
}

// Phase returns the current round phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Index returns the current question index.
func (m *Machine) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Score returns the accumulated quiz score.
func (m *Machine) Score() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.score
}

// Streak returns the current run of consecutive correct answers.
func (m *Machine) Streak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streak
}

// MaxStreak returns the best streak seen since the last reset.
func (m *Machine) MaxStreak() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxStreak
}

// CurrentQuestion returns the question being presented or revealed, if
// any.
func (m *Machine) CurrentQuestion() (Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index < 0 || m.index >= len(m.questions) {
		return Question{}, false
	}
	return m.questions[m.index], true
}

// Remaining reports how much of the current countdown is left.
func (m *Machine) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhasePresented {
		return 0
	}
	d := m.deadline.Sub(m.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (m *Machine) resetLocked(questions []Question) {
	m.stopTimerLocked()
	m.gen++
	m.questions = questions
	m.index = 0
	m.phase = PhaseIdle
	m.answered = false
	m.score = 0
	m.streak = 0
	m.maxStreak = 0
}

// presentLocked moves to the question at index and arms the countdown
// timer. The returned closure fires hooks and must be called after the
// lock is released.
func (m *Machine) presentLocked(index int) (func(), error) {
	if len(m.questions) == 0 {
		return nil, ErrNoQuestions
	}
	if index >= len(m.questions) {
		return m.finishLocked(), nil
	}
	m.stopTimerLocked()
	m.gen++
	gen := m.gen
	m.index = index
	m.phase = PhasePresented
	m.answered = false
	q := m.questions[index]
	limit := time.Duration(q.EffectiveTimeLimit() * float64(time.Second))
	m.deadline = m.clock.Now().Add(limit)

	timer := m.clock.NewTimer(limit)
	m.timer = timer
	go func() {
		select {
		case <-timer.Chan():
			m.timeout(gen)
		case <-m.done:
			stopAndDrainTimer(timer)
		}
	}()

	log.Debug().Int("question_index", index).Str("question_type", string(q.Type)).
		Float64("time_limit", q.EffectiveTimeLimit()).Msg("presenting question")
	return func() {
		if m.hooks.OnPresent != nil {
			m.hooks.OnPresent(index, q)
		}
	}, nil
}

// timeout resolves the round as unanswered when the countdown fires
// first. The generation guard drops firings superseded by a submit,
// snapshot, or restart.
func (m *Machine) timeout(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.phase != PhasePresented {
		m.mu.Unlock()
		return
	}
	m.answered = true
	m.phase = PhaseTimedOut
	m.streak = 0
	res := RoundResult{
		ParticipantID:   m.cfg.ParticipantID,
		ParticipantName: m.cfg.ParticipantName,
		IsCorrect:       false,
		Points:          0,
	}
	fire := m.revealLocked(res, true)
	m.mu.Unlock()
	fire()
}

// revealLocked transitions to revealed, schedules the advance timer,
// and returns the hook closure. withResult controls whether OnResolved
// fires with a locally meaningful result.
func (m *Machine) revealLocked(res RoundResult, withResult bool) func() {
	m.stopTimerLocked()
	m.phase = PhaseRevealed
	m.gen++
	gen := m.gen
	index := m.index
	q := m.questions[index]

	timer := m.clock.NewTimer(m.cfg.RevealDuration)
	m.timer = timer
	go func() {
		select {
		case <-timer.Chan():
			m.advance(gen)
		case <-m.done:
			stopAndDrainTimer(timer)
		}
	}()

	return func() {
		if withResult && m.hooks.OnResolved != nil {
			m.hooks.OnResolved(index, res, q)
		}
	}
}

// advance moves past the reveal to the next question or to finished.
func (m *Machine) advance(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.phase != PhaseRevealed {
		m.mu.Unlock()
		return
	}
	next := m.index + 1
	if next >= len(m.questions) {
		fire := m.finishLocked()
		m.mu.Unlock()
		fire()
		return
	}
	fire, err := m.presentLocked(next)
	m.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Int("question_index", next).Msg("advance failed")
		return
	}
	fire()
}

func (m *Machine) finishLocked() func() {
	m.stopTimerLocked()
	m.gen++
	m.index = len(m.questions)
	m.phase = PhaseFinished
	score, maxStreak := m.score, m.maxStreak
	log.Debug().Int("score", score).Int("max_streak", maxStreak).Msg("quiz finished")
	return func() {
		if m.hooks.OnFinished != nil {
			m.hooks.OnFinished(score, maxStreak)
		}
	}
}

func (m *Machine) stopTimerLocked() {
	if m.timer != nil {
		stopAndDrainTimer(m.timer)
		m.timer = nil
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel so a
// fired-but-unread tick cannot leak.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
