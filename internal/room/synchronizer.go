package room

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
)

// Channel is the realtime transport the synchronizer drives. The
// concrete implementation is channel.Client.
type Channel interface {
	Emit(event string, payload any) error
	Events() <-chan channel.Envelope
	Close() error
}

// Config identifies the session being joined.
type Config struct {
	RoomCode string
	UserID   string
	Nickname string
}

// Synchronizer runs one room session: it announces the join, folds
// every inbound event into the store in arrival order, and hands the
// resulting effects to the host application.
type Synchronizer struct {
	ch    Channel
	store *Store
	cfg   Config
	sink  func(Effect)
}

// NewSynchronizer wires a transport and store together. sink receives
// effects in event order and may be nil.
func NewSynchronizer(ch Channel, store *Store, cfg Config, sink func(Effect)) *Synchronizer {
	return &Synchronizer{ch: ch, store: store, cfg: cfg, sink: sink}
}

// Store returns the store this synchronizer feeds.
func (s *Synchronizer) Store() *Store {
	return s.store
}

// Run joins the room and processes events until the context is
// cancelled or the transport dies. A dead transport on a live session
// surfaces as a redirect effect before Run returns.
func (s *Synchronizer) Run(ctx context.Context) error {
	s.store.BeginConnect()
	if err := s.ch.Emit(string(IntentRoomJoin), JoinPayload{
		RoomCode: s.cfg.RoomCode,
		UserID:   s.cfg.UserID,
		Nickname: s.cfg.Nickname,
	}); err != nil {
		return fmt.Errorf("join room %s: %w", s.cfg.RoomCode, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.ch.Events():
			if !ok {
				s.dispatch(s.store.ConnectionLost())
				return nil
			}
			effects, err := s.store.Apply(env)
			if err != nil {
				log.Warn().Err(err).Str("event", env.Event).Msg("dropping malformed event")
				continue
			}
			s.dispatch(effects)
		}
	}
}

// Leave announces a voluntary departure and marks the session left so
// later terminal events for this room are treated as stale.
func (s *Synchronizer) Leave() error {
	s.store.MarkLeft()
	if err := s.ch.Emit(string(IntentRoomLeave), LeavePayload{RoomCode: s.cfg.RoomCode}); err != nil {
		return fmt.Errorf("leave room %s: %w", s.cfg.RoomCode, err)
	}
	return nil
}

// StartGame asks the coordinator to start a game in the given mode.
func (s *Synchronizer) StartGame(mode GameMode, songID string) error {
	if err := s.ch.Emit(string(IntentGameStart), StartGamePayload{
		RoomCode: s.cfg.RoomCode,
		Mode:     mode,
		SongID:   songID,
	}); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	return nil
}

// SubmitAnswer reports a locally graded quiz submission.
func (s *Synchronizer) SubmitAnswer(questionIndex int, answer quiz.Answer, res quiz.RoundResult, timeLeft float64) error {
	if err := s.ch.Emit(string(IntentQuizSubmitAnswer), SubmitAnswerPayload{
		RoomCode:      s.cfg.RoomCode,
		QuestionIndex: questionIndex,
		Answer:        answer,
		IsCorrect:     res.IsCorrect,
		Points:        res.Points,
		TimeLeft:      timeLeft,
	}); err != nil {
		return fmt.Errorf("submit answer: %w", err)
	}
	return nil
}

func (s *Synchronizer) dispatch(effects []Effect) {
	if s.sink == nil {
		return
	}
	for _, effect := range effects {
		s.sink(effect)
	}
}
