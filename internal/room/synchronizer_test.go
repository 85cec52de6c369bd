package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
)

type fakeChannel struct {
	mu      sync.Mutex
	emitted []channel.Envelope
	events  chan channel.Envelope
	once    sync.Once
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan channel.Envelope, 32)}
}

func (f *fakeChannel) Emit(event string, payload any) error {
	env, err := channel.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, env)
	return nil
}

func (f *fakeChannel) Events() <-chan channel.Envelope { return f.events }

func (f *fakeChannel) Close() error {
	f.once.Do(func() { close(f.events) })
	return nil
}

func (f *fakeChannel) push(t *testing.T, event EventType, payload any) {
	t.Helper()
	env, err := channel.NewEnvelope(string(event), payload)
	if err != nil {
		t.Fatalf("NewEnvelope(%s): %v", event, err)
	}
	f.events <- env
}

func (f *fakeChannel) sent() []channel.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channel.Envelope(nil), f.emitted...)
}

type effectLog struct {
	mu      sync.Mutex
	effects []Effect
}

func (l *effectLog) sink(e Effect) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.effects = append(l.effects, e)
}

func (l *effectLog) all() []Effect {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Effect(nil), l.effects...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunJoinsAndAppliesEvents(t *testing.T) {
	ch := newFakeChannel()
	store := NewStore()
	syn := NewSynchronizer(ch, store, Config{RoomCode: "KERO42", UserID: "u1", Nickname: "mia"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- syn.Run(ctx) }()

	ch.push(t, EventRoomJoined, RoomJoinedPayload{
		SelfID: "p1",
		Room:   RoomState{Code: "KERO42", Participants: []Participant{{ID: "p1", Nickname: "mia"}}},
	})
	waitFor(t, "join to apply", func() bool { return store.State().Phase == PhaseJoined })

	sent := ch.sent()
	if len(sent) == 0 || sent[0].Event != string(IntentRoomJoin) {
		t.Fatalf("first emit = %+v, want room:join", sent)
	}
	var join JoinPayload
	if err := sent[0].Decode(&join); err != nil || join.RoomCode != "KERO42" || join.Nickname != "mia" {
		t.Fatalf("join payload = %+v (err %v)", join, err)
	}

	cancel()
	if err := <-runErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
}

func TestRunRedirectsWhenTransportDies(t *testing.T) {
	ch := newFakeChannel()
	store := NewStore()
	effects := &effectLog{}
	syn := NewSynchronizer(ch, store, Config{RoomCode: "KERO42", Nickname: "mia"}, effects.sink)

	runErr := make(chan error, 1)
	go func() { runErr <- syn.Run(context.Background()) }()

	ch.push(t, EventRoomJoined, RoomJoinedPayload{SelfID: "p1", Room: RoomState{Code: "KERO42"}})
	waitFor(t, "join to apply", func() bool { return store.State().Phase == PhaseJoined })

	ch.Close()
	if err := <-runErr; err != nil {
		t.Fatalf("Run returned %v, want nil on transport close", err)
	}
	all := effects.all()
	if len(all) != 1 {
		t.Fatalf("effects = %+v, want one redirect", all)
	}
	if redirect, ok := all[0].(RedirectEffect); !ok || redirect.Reason != "connection lost" {
		t.Fatalf("effect = %+v, want connection-lost redirect", all[0])
	}
}

func TestLeaveMakesLaterCloseStale(t *testing.T) {
	ch := newFakeChannel()
	store := NewStore()
	effects := &effectLog{}
	syn := NewSynchronizer(ch, store, Config{RoomCode: "KERO42", Nickname: "mia"}, effects.sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- syn.Run(ctx) }()

	ch.push(t, EventRoomJoined, RoomJoinedPayload{SelfID: "p1", Room: RoomState{Code: "KERO42"}})
	waitFor(t, "join to apply", func() bool { return store.State().Phase == PhaseJoined })

	if err := syn.Leave(); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	// The close raced with our departure; it must not redirect. The
	// trailing time update proves the loop got past it.
	ch.push(t, EventRoomClosed, RoomClosedPayload{Reason: "host ended the session"})
	ch.push(t, EventGameTimeUpdate, GameTimeUpdatePayload{CurrentTime: 5})
	waitFor(t, "time update to apply", func() bool { return store.State().Game.CurrentTime == 5 })

	for _, e := range effects.all() {
		if _, ok := e.(RedirectEffect); ok {
			t.Fatalf("stale close produced a redirect: %+v", e)
		}
	}
	if store.State().Phase != PhaseLeft {
		t.Fatalf("phase = %q, want left", store.State().Phase)
	}

	sent := ch.sent()
	if sent[len(sent)-1].Event != string(IntentRoomLeave) {
		t.Fatalf("last emit = %q, want room:leave", sent[len(sent)-1].Event)
	}
}

func TestIntentEmission(t *testing.T) {
	ch := newFakeChannel()
	syn := NewSynchronizer(ch, NewStore(), Config{RoomCode: "KERO42"}, nil)

	if err := syn.StartGame(ModeQuiz, "song-7"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := syn.SubmitAnswer(2, quiz.ChoiceAnswer(1), quiz.RoundResult{IsCorrect: true, Points: 500}, 10); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	sent := ch.sent()
	if len(sent) != 2 {
		t.Fatalf("emitted = %d envelopes, want 2", len(sent))
	}

	if sent[0].Event != string(IntentGameStart) {
		t.Fatalf("event = %q, want game:start", sent[0].Event)
	}
	var start StartGamePayload
	if err := sent[0].Decode(&start); err != nil || start.Mode != ModeQuiz || start.SongID != "song-7" {
		t.Fatalf("start payload = %+v (err %v)", start, err)
	}

	if sent[1].Event != string(IntentQuizSubmitAnswer) {
		t.Fatalf("event = %q, want quiz:submit-answer", sent[1].Event)
	}
	var submit SubmitAnswerPayload
	if err := sent[1].Decode(&submit); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if submit.QuestionIndex != 2 || !submit.IsCorrect || submit.Points != 500 || submit.TimeLeft != 10 {
		t.Fatalf("submit payload = %+v", submit)
	}
	if submit.Answer.Choice == nil || *submit.Answer.Choice != 1 {
		t.Fatalf("submit answer = %+v, want choice 1", submit.Answer)
	}
}
