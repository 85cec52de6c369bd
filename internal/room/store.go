package room

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// Effect is a side effect the reducer asks the host application to
// perform. The store itself only mutates local state; playback, quiz,
// and navigation live outside it.
type Effect interface{ isEffect() }

// RedirectEffect tells the UI to leave the room view.
type RedirectEffect struct {
	Reason string
}

// GameStartEffect starts the mode's engine with the resolved song.
type GameStartEffect struct {
	Mode        GameMode
	Song        *song.Song
	QueueItemID string
}

// PlaybackAction is a playback transport request.
type PlaybackAction string

const (
	PlaybackPause  PlaybackAction = "pause"
	PlaybackResume PlaybackAction = "resume"
	PlaybackFinish PlaybackAction = "finish"
)

// PlaybackEffect pauses, resumes, or finishes local playback.
type PlaybackEffect struct {
	Action PlaybackAction
}

// GameSyncEffect reconciles local playback with an authoritative
// snapshot, including the position to seek to.
type GameSyncEffect struct {
	Status      GameStatus
	Mode        GameMode
	Song        *song.Song
	CurrentTime float64
}

// QuizLoadEffect loads a fresh question set into the quiz machine.
type QuizLoadEffect struct {
	Questions []quiz.Question
}

// QuizSnapshotEffect replaces the quiz machine's set and index.
type QuizSnapshotEffect struct {
	Questions []quiz.Question
	Index     int
}

// QuizResolveEffect applies a remote round resolution.
type QuizResolveEffect struct {
	Payload QuizForceAdvancePayload
}

// PitchEffect surfaces another participant's pitch for visualization.
type PitchEffect struct {
	Payload GamePitchUpdatePayload
}

func (RedirectEffect) isEffect()     {}
func (GameStartEffect) isEffect()    {}
func (PlaybackEffect) isEffect()     {}
func (GameSyncEffect) isEffect()     {}
func (QuizLoadEffect) isEffect()     {}
func (QuizSnapshotEffect) isEffect() {}
func (QuizResolveEffect) isEffect()  {}
func (PitchEffect) isEffect()        {}

// Store owns the local mirror of one room session. All coordinator
// events flow through Apply in arrival order; reads get copies.
type Store struct {
	mu           sync.Mutex
	state        State
	selfID       string
	quizSettings *QuizSettings
}

// NewStore returns a disconnected store.
func NewStore() *Store {
	return &Store{state: State{Phase: PhaseDisconnected, Game: GameState{Status: GameWaiting}}}
}

// State returns a copy of the current view.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyStateLocked()
}

// SelfID returns the participant id assigned on join, if any.
func (s *Store) SelfID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

// QuizSettings returns the room's quiz settings, if announced.
func (s *Store) QuizSettings() *QuizSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quizSettings == nil {
		return nil
	}
	cp := *s.quizSettings
	return &cp
}

// BeginConnect marks the session as connecting.
func (s *Store) BeginConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseConnecting
}

// MarkLeft records a voluntary departure. Terminal events arriving
// afterwards are stale and no longer redirect.
func (s *Store) MarkLeft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseLeft
}

// ConnectionLost handles the transport dying. If the session was still
// live it forces a left state and asks for a redirect; after a
// voluntary leave it is a no-op.
func (s *Store) ConnectionLost() []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseJoined && s.state.Phase != PhaseConnecting {
		return nil
	}
	s.state.Phase = PhaseDisconnected
	return []Effect{RedirectEffect{Reason: "connection lost"}}
}

// SetLocalTime records the position published by the local playback
// clock.
func (s *Store) SetLocalTime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Game.CurrentTime = seconds
}

// SetLocalStreak records the local engine's combo streak so the shared
// view tracks the player's run.
func (s *Store) SetLocalStreak(streak, maxStreak int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Game.Streak = streak
	s.state.Game.MaxStreak = maxStreak
}

// Apply folds one coordinator event into the local state and returns
// the side effects the host should perform. Malformed payloads leave
// the state untouched.
func (s *Store) Apply(env channel.Envelope) ([]Effect, error) {
	payload, err := ParseEventPayload(env)
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", env.Event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch EventType(env.Event) {
	case EventRoomJoined:
		p := payload.(RoomJoinedPayload)
		s.state.Phase = PhaseJoined
		roomCopy := p.Room
		roomCopy.Participants = append([]Participant(nil), p.Room.Participants...)
		s.state.Room = &roomCopy
		s.selfID = p.SelfID
		return nil, nil

	case EventParticipantJoined:
		p := payload.(ParticipantJoinedPayload)
		if s.state.Room == nil {
			return nil, nil
		}
		for _, existing := range s.state.Room.Participants {
			if existing.ID == p.Participant.ID {
				return nil, nil
			}
		}
		s.state.Room.Participants = append(s.state.Room.Participants, p.Participant)
		return nil, nil

	case EventParticipantLeft:
		p := payload.(ParticipantLeftPayload)
		if s.state.Room == nil {
			return nil, nil
		}
		kept := s.state.Room.Participants[:0]
		for _, existing := range s.state.Room.Participants {
			if existing.ID != p.ParticipantID {
				kept = append(kept, existing)
			}
		}
		s.state.Room.Participants = kept
		return nil, nil

	case EventRoomClosed:
		p := payload.(RoomClosedPayload)
		// Only a session still viewing the room redirects; after a
		// voluntary leave the event is stale.
		if s.state.Phase != PhaseJoined {
			log.Debug().Str("reason", p.Reason).Msg("ignoring room close for abandoned session")
			return nil, nil
		}
		s.state.Phase = PhaseClosed
		return []Effect{RedirectEffect{Reason: p.Reason}}, nil

	case EventError:
		p := payload.(ErrorPayload)
		// Fatal for a session still connecting or viewing the room; a
		// rejected join lands here too. After a leave or close the event
		// is stale.
		if s.state.Phase != PhaseJoined && s.state.Phase != PhaseConnecting {
			log.Debug().Str("message", p.Message).Msg("ignoring error for abandoned session")
			return nil, nil
		}
		s.state.LastError = p.Message
		s.state.Phase = PhaseLeft
		log.Warn().Str("message", p.Message).Msg("coordinator error")
		return []Effect{RedirectEffect{Reason: p.Message}}, nil

	case EventGameStarted:
		p := payload.(GameStartedPayload)
		s.state.Game = GameState{
			Status:      GamePlaying,
			Mode:        p.Mode,
			Song:        p.Song,
			QueueItemID: p.QueueItemID,
			Queue:       s.state.Game.Queue,
		}
		return []Effect{GameStartEffect{Mode: p.Mode, Song: p.Song, QueueItemID: p.QueueItemID}}, nil

	case EventGameSyncState:
		p := payload.(GameSyncStatePayload)
		s.state.Game = GameState{
			Status:      p.Status,
			Mode:        p.Mode,
			Song:        p.Song,
			QueueItemID: p.QueueItemID,
			CurrentTime: p.CurrentTime,
			Scores:      append([]PlayerScore(nil), p.Scores...),
			Queue:       append([]QueueItem(nil), p.Queue...),
		}
		return []Effect{GameSyncEffect{
			Status:      p.Status,
			Mode:        p.Mode,
			Song:        p.Song,
			CurrentTime: p.CurrentTime,
		}}, nil

	case EventGamePaused:
		if s.state.Game.Status != GamePlaying {
			return nil, nil
		}
		s.state.Game.Status = GamePaused
		return []Effect{PlaybackEffect{Action: PlaybackPause}}, nil

	case EventGameResumed:
		if s.state.Game.Status != GamePaused {
			return nil, nil
		}
		s.state.Game.Status = GamePlaying
		return []Effect{PlaybackEffect{Action: PlaybackResume}}, nil

	case EventGameFinished:
		p := payload.(GameFinishedPayload)
		s.state.Game.Status = GameFinished
		if len(p.Scores) > 0 {
			s.state.Game.Scores = append([]PlayerScore(nil), p.Scores...)
		}
		return []Effect{PlaybackEffect{Action: PlaybackFinish}}, nil

	case EventGameTimeUpdate:
		p := payload.(GameTimeUpdatePayload)
		s.state.Game.CurrentTime = p.CurrentTime
		return nil, nil

	case EventGameScoresUpdate:
		p := payload.(GameScoresUpdatePayload)
		s.state.Game.Scores = append([]PlayerScore(nil), p.Scores...)
		return nil, nil

	case EventGamePitchUpdate:
		p := payload.(GamePitchUpdatePayload)
		// Some senders relay only the raw frequency; fill in the
		// display fields locally.
		if p.Frequency > 0 {
			if p.Note == "" {
				p.Note = song.NoteFromFrequency(p.Frequency)
			}
			if p.Midi == nil {
				midi := song.MidiFromFrequency(p.Frequency)
				p.Midi = &midi
			}
		}
		return []Effect{PitchEffect{Payload: p}}, nil

	case EventQuizQuestions:
		p := payload.(QuizQuestionsPayload)
		return []Effect{QuizLoadEffect{Questions: p.Questions}}, nil

	case EventQuizSyncState:
		p := payload.(QuizSyncStatePayload)
		return []Effect{QuizSnapshotEffect{Questions: p.Questions, Index: p.QuestionIndex}}, nil

	case EventQuizForceAdvance:
		p := payload.(QuizForceAdvancePayload)
		return []Effect{QuizResolveEffect{Payload: p}}, nil

	case EventQuizSettingsUpdated:
		p := payload.(QuizSettingsUpdatedPayload)
		settings := p.Settings
		s.quizSettings = &settings
		return nil, nil

	case EventQueueSongAdded:
		p := payload.(QueueSongAddedPayload)
		s.state.Game.Queue = append(s.state.Game.Queue, p.Item)
		return nil, nil

	case EventQueueSongRemoved:
		p := payload.(QueueSongRemovedPayload)
		kept := s.state.Game.Queue[:0]
		for _, item := range s.state.Game.Queue {
			if item.ID != p.ItemID {
				kept = append(kept, item)
			}
		}
		s.state.Game.Queue = kept
		return nil, nil

	case EventQueueSongUpdated:
		p := payload.(QueueSongUpdatedPayload)
		s.state.Game.Queue = append([]QueueItem(nil), p.Items...)
		return nil, nil

	default:
		log.Debug().Str("event", env.Event).Msg("ignoring unknown event")
		return nil, nil
	}
}

func (s *Store) copyStateLocked() State {
	cp := s.state
	if s.state.Room != nil {
		roomCopy := *s.state.Room
		roomCopy.Participants = append([]Participant(nil), s.state.Room.Participants...)
		cp.Room = &roomCopy
	}
	cp.Game.Scores = append([]PlayerScore(nil), s.state.Game.Scores...)
	cp.Game.Queue = append([]QueueItem(nil), s.state.Game.Queue...)
	return cp
}
