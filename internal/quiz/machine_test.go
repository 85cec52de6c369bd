package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type recorder struct {
	presented chan int
	resolved  chan RoundResult
	finished  chan int
}

func newRecorder() *recorder {
	return &recorder{
		presented: make(chan int, 16),
		resolved:  make(chan RoundResult, 16),
		finished:  make(chan int, 16),
	}
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnPresent:  func(i int, _ Question) { r.presented <- i },
		OnResolved: func(_ int, res RoundResult, _ Question) { r.resolved <- res },
		OnFinished: func(score, _ int) { r.finished <- score },
	}
}

func waitInt(t *testing.T, ch chan int, what string) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return 0
	}
}

func waitResult(t *testing.T, ch chan RoundResult) RoundResult {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for round result")
		return RoundResult{}
	}
}

func fourQuestions() []Question {
	return []Question{
		{ID: "q1", Type: TypeTitleGuess, Options: []string{"A", "B"}, CorrectIndex: intp(0), TimeLimit: 20},
		{ID: "q2", Type: TypeTrueFalse, CorrectAnswer: "true", TimeLimit: 10},
		{ID: "q3", Type: TypeLyricsOrder, CorrectOrder: []string{"a", "b", "c", "d"}, TimeLimit: 15},
		{ID: "q4", Type: TypeInitialGuess, CorrectAnswer: "Spring Day", TimeLimit: 20},
	}
}

func startedMachine(t *testing.T, fc clockwork.Clock, rec *recorder, questions []Question) *Machine {
	t.Helper()
	m := NewMachine(fc, Config{
		RevealDuration:  3 * time.Second,
		ParticipantID:   "p1",
		ParticipantName: "mia",
	}, rec.hooks())
	m.Load(questions)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := waitInt(t, rec.presented, "first question"); got != 0 {
		t.Fatalf("presented index = %d, want 0", got)
	}
	return m
}

func TestSubmitScoresByRemainingTime(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	// Half of the 20s countdown has elapsed when the answer lands.
	fc.Advance(10 * time.Second)
	res, err := m.Submit(ChoiceAnswer(0))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.IsCorrect || res.Points != 500 {
		t.Fatalf("result = %+v, want correct with 500 points", res)
	}
	if res.ParticipantID != "p1" || res.ParticipantName != "mia" {
		t.Fatalf("result identity = %q/%q", res.ParticipantID, res.ParticipantName)
	}
	if m.Score() != 500 || m.Streak() != 1 {
		t.Fatalf("score/streak = %d/%d, want 500/1", m.Score(), m.Streak())
	}
	if m.Phase() != PhaseRevealed {
		t.Fatalf("phase = %q, want revealed", m.Phase())
	}
	if got := waitResult(t, rec.resolved); got.Points != 500 {
		t.Fatalf("resolved hook points = %d, want 500", got.Points)
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	first, err := m.Submit(ChoiceAnswer(0))
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := m.Submit(ChoiceAnswer(1)); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second Submit err = %v, want ErrAlreadyAnswered", err)
	}
	if m.Score() != first.Points {
		t.Fatalf("score = %d, want the first submission's %d", m.Score(), first.Points)
	}
}

func TestTimeoutScoresZeroAndResetsStreak(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)
	fc.Advance(3 * time.Second)
	if got := waitInt(t, rec.presented, "second question"); got != 1 {
		t.Fatalf("presented index = %d, want 1", got)
	}

	// Let the 10s countdown on q2 expire unanswered.
	fc.Advance(10 * time.Second)
	res := waitResult(t, rec.resolved)
	if res.IsCorrect || res.Points != 0 {
		t.Fatalf("timeout result = %+v, want incorrect with 0 points", res)
	}
	if m.Streak() != 0 {
		t.Fatalf("streak = %d, want 0 after timeout", m.Streak())
	}
	if m.MaxStreak() != 1 {
		t.Fatalf("max streak = %d, want 1", m.MaxStreak())
	}
	if _, err := m.Submit(FlagAnswer(true)); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("Submit after timeout err = %v, want ErrNoActiveRound", err)
	}
}

func TestRevealAdvancesToFinished(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions()[:1])
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)
	fc.Advance(3 * time.Second)
	if score := waitInt(t, rec.finished, "finish"); score != 1000 {
		t.Fatalf("final score = %d, want 1000", score)
	}
	if m.Phase() != PhaseFinished {
		t.Fatalf("phase = %q, want finished", m.Phase())
	}
}

func TestOrderSubmissionRequiresFourItems(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	order := []Question{{ID: "q3", Type: TypeLyricsOrder, CorrectOrder: []string{"a", "b", "c", "d"}, TimeLimit: 15}}
	m := startedMachine(t, fc, rec, order)
	defer m.Close()

	if _, err := m.Submit(OrderAnswer("a", "b", "c")); !errors.Is(err, ErrIncompleteOrder) {
		t.Fatalf("short order err = %v, want ErrIncompleteOrder", err)
	}
	// The rejected attempt must not consume the one allowed submission.
	res, err := m.Submit(OrderAnswer("a", "b", "c", "d"))
	if err != nil {
		t.Fatalf("full order Submit: %v", err)
	}
	if !res.IsCorrect {
		t.Fatalf("result = %+v, want correct", res)
	}
}

func TestForceAdvanceDuplicateAbsorbed(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	first, err := m.Submit(ChoiceAnswer(0))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)

	m.HandleForceAdvance(0, RoundResult{ParticipantID: "p2", IsCorrect: true, Points: 900})
	if m.Score() != first.Points {
		t.Fatalf("score = %d, want %d untouched by duplicate", m.Score(), first.Points)
	}
	if m.Index() != 0 || m.Phase() != PhaseRevealed {
		t.Fatalf("index/phase = %d/%q, want 0/revealed", m.Index(), m.Phase())
	}
	select {
	case res := <-rec.resolved:
		t.Fatalf("unexpected second resolution %+v", res)
	default:
	}
}

func TestForceAdvanceStaleIndexIgnored(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)
	fc.Advance(3 * time.Second)
	waitInt(t, rec.presented, "second question")

	m.HandleForceAdvance(0, RoundResult{ParticipantID: "p2", IsCorrect: true, Points: 700})
	if m.Index() != 1 || m.Phase() != PhasePresented {
		t.Fatalf("index/phase = %d/%q, want 1/presented", m.Index(), m.Phase())
	}
}

func TestForceAdvanceResolvesUnansweredRound(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)
	fc.Advance(3 * time.Second)
	waitInt(t, rec.presented, "second question")

	// Another participant answers first; the local round resolves
	// without touching the local streak.
	m.HandleForceAdvance(1, RoundResult{ParticipantID: "p2", IsCorrect: true, Points: 800})
	if m.Phase() != PhaseRevealed {
		t.Fatalf("phase = %q, want revealed", m.Phase())
	}
	if m.Streak() != 1 {
		t.Fatalf("streak = %d, want 1 preserved", m.Streak())
	}
	if _, err := m.Submit(FlagAnswer(true)); !errors.Is(err, ErrNoActiveRound) {
		t.Fatalf("Submit err = %v, want ErrNoActiveRound", err)
	}
	fc.Advance(3 * time.Second)
	if got := waitInt(t, rec.presented, "third question"); got != 2 {
		t.Fatalf("presented index = %d, want 2", got)
	}
}

func TestForceAdvanceFastForwards(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	m.HandleForceAdvance(2, RoundResult{ParticipantID: "p2", IsCorrect: true, Points: 600})
	if m.Index() != 2 || m.Phase() != PhaseRevealed {
		t.Fatalf("index/phase = %d/%q, want 2/revealed", m.Index(), m.Phase())
	}
	fc.Advance(3 * time.Second)
	if got := waitInt(t, rec.presented, "fourth question"); got != 3 {
		t.Fatalf("presented index = %d, want 3", got)
	}
}

func TestSnapshotSupersedesStaleForceAdvance(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	first, err := m.Submit(ChoiceAnswer(0))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)

	fresh := []Question{
		{ID: "r1", Type: TypeTitleGuess, Options: []string{"X", "Y"}, CorrectIndex: intp(0), TimeLimit: 20},
		{ID: "r2", Type: TypeTrueFalse, CorrectAnswer: "false", TimeLimit: 10},
		{ID: "r3", Type: TypeInitialGuess, CorrectAnswer: "IU", TimeLimit: 20},
	}
	m.ApplySnapshot(fresh, 2)
	if got := waitInt(t, rec.presented, "snapshot question"); got != 2 {
		t.Fatalf("presented index = %d, want 2", got)
	}
	if q, ok := m.CurrentQuestion(); !ok || q.ID != "r3" {
		t.Fatalf("current question = %+v, want r3", q)
	}
	if m.Score() != first.Points {
		t.Fatalf("score = %d, want %d preserved across snapshot", m.Score(), first.Points)
	}

	// A force-advance that raced with the snapshot arrives late for an
	// older index and must not move the machine.
	m.HandleForceAdvance(0, RoundResult{ParticipantID: "p2", IsCorrect: true, Points: 400})
	if m.Index() != 2 || m.Phase() != PhasePresented {
		t.Fatalf("index/phase = %d/%q, want 2/presented", m.Index(), m.Phase())
	}
}

func TestRestartRegeneratesAndResets(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)

	gen := GeneratorFunc(func(context.Context) ([]Question, error) {
		return []Question{{ID: "n1", Type: TypeTrueFalse, CorrectAnswer: "true", TimeLimit: 10}}, nil
	})
	if err := m.Restart(context.Background(), gen); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if got := waitInt(t, rec.presented, "restarted question"); got != 0 {
		t.Fatalf("presented index = %d, want 0", got)
	}
	if m.Score() != 0 || m.Streak() != 0 || m.MaxStreak() != 0 {
		t.Fatalf("score/streak/max = %d/%d/%d, want all 0", m.Score(), m.Streak(), m.MaxStreak())
	}
	if q, ok := m.CurrentQuestion(); !ok || q.ID != "n1" {
		t.Fatalf("current question = %+v, want n1", q)
	}
}

func TestRestartGeneratorErrorLeavesStateAlone(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())
	defer m.Close()

	if _, err := m.Submit(ChoiceAnswer(0)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitResult(t, rec.resolved)
	before := m.Score()

	gen := GeneratorFunc(func(context.Context) ([]Question, error) {
		return nil, errors.New("generator unavailable")
	})
	if err := m.Restart(context.Background(), gen); err == nil {
		t.Fatal("expected Restart to propagate the generator error")
	}
	if m.Score() != before || m.Index() != 0 || m.Phase() != PhaseRevealed {
		t.Fatalf("state changed on failed restart: score=%d index=%d phase=%q",
			m.Score(), m.Index(), m.Phase())
	}
}

func TestCloseStopsPendingCountdown(t *testing.T) {
	fc := clockwork.NewFakeClock()
	rec := newRecorder()
	m := startedMachine(t, fc, rec, fourQuestions())

	m.Close()
	m.Close()
	fc.Advance(30 * time.Second)
	if m.Phase() != PhasePresented {
		t.Fatalf("phase = %q, want presented frozen after Close", m.Phase())
	}
	select {
	case res := <-rec.resolved:
		t.Fatalf("unexpected resolution after Close: %+v", res)
	default:
	}
}
