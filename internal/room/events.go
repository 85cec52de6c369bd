package room

import (
	"encoding/json"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/channel"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// EventType names an inbound coordinator event.
type EventType string

const (
	EventRoomJoined        EventType = "room:joined"
	EventParticipantJoined EventType = "room:participant:joined"
	EventParticipantLeft   EventType = "room:participant:left"
	EventRoomClosed        EventType = "room:closed"
	EventError             EventType = "error"

	EventGameStarted      EventType = "game:started"
	EventGameSyncState    EventType = "game:sync-state"
	EventGamePaused       EventType = "game:paused"
	EventGameResumed      EventType = "game:resumed"
	EventGameFinished     EventType = "game:finished"
	EventGameTimeUpdate   EventType = "game:timeUpdate"
	EventGameScoresUpdate EventType = "game:scoresUpdate"
	EventGamePitchUpdate  EventType = "game:pitchUpdate"

	EventQuizQuestions       EventType = "quiz:questions-data"
	EventQuizSyncState       EventType = "quiz:sync-state"
	EventQuizForceAdvance    EventType = "quiz:force-advance"
	EventQuizSettingsUpdated EventType = "quiz:settings-updated"

	EventQueueSongAdded   EventType = "queue:song-added"
	EventQueueSongRemoved EventType = "queue:song-removed"
	EventQueueSongUpdated EventType = "queue:song-updated"
)

// RoomJoinedPayload confirms a join with the full roster.
type RoomJoinedPayload struct {
	Room RoomState `json:"room"`
	// SelfID is the participant id the coordinator assigned to this
	// client.
	SelfID string `json:"selfId"`
}

// ParticipantJoinedPayload announces a new member.
type ParticipantJoinedPayload struct {
	Participant Participant `json:"participant"`
}

// ParticipantLeftPayload announces a departure.
type ParticipantLeftPayload struct {
	ParticipantID string `json:"participantId"`
}

// RoomClosedPayload terminates the room.
type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload carries a coordinator-reported error.
type ErrorPayload struct {
	Message string `json:"message"`
}

// GameStartedPayload starts a game with the resolved song.
type GameStartedPayload struct {
	Mode        GameMode   `json:"mode"`
	Song        *song.Song `json:"song,omitempty"`
	QueueItemID string     `json:"queueItemId,omitempty"`
}

// GameSyncStatePayload is a full authoritative snapshot of the game. It
// unconditionally replaces the local mirror.
type GameSyncStatePayload struct {
	Status      GameStatus    `json:"status"`
	Mode        GameMode      `json:"mode"`
	Song        *song.Song    `json:"song,omitempty"`
	QueueItemID string        `json:"queueItemId,omitempty"`
	CurrentTime float64       `json:"currentTime"`
	Scores      []PlayerScore `json:"scores,omitempty"`
	Queue       []QueueItem   `json:"queue,omitempty"`
}

// GameFinishedPayload ends the game, optionally with final scores.
type GameFinishedPayload struct {
	Scores []PlayerScore `json:"scores,omitempty"`
}

// GameTimeUpdatePayload carries the coordinator's playback position.
type GameTimeUpdatePayload struct {
	CurrentTime float64 `json:"currentTime"`
}

// GameScoresUpdatePayload replaces the shared scoreboard.
type GameScoresUpdatePayload struct {
	Scores []PlayerScore `json:"scores"`
}

// GamePitchUpdatePayload relays another participant's detected pitch.
type GamePitchUpdatePayload struct {
	ParticipantID string  `json:"participantId"`
	Frequency     float64 `json:"frequency"`
	Note          string  `json:"note,omitempty"`
	Midi          *int    `json:"midi,omitempty"`
}

// QuizQuestionsPayload delivers a generated question set.
type QuizQuestionsPayload struct {
	Questions []quiz.Question `json:"questions"`
}

// QuizSyncStatePayload is an authoritative quiz snapshot. Its question
// set and index take precedence over any deltas that raced with it.
type QuizSyncStatePayload struct {
	Questions     []quiz.Question `json:"questions"`
	QuestionIndex int             `json:"questionIndex"`
}

// QuizForceAdvancePayload resolves the question at QuestionIndex, either
// because another participant answered or the host skipped it.
type QuizForceAdvancePayload struct {
	QuestionIndex int             `json:"questionIndex"`
	AnsweredBy    string          `json:"answeredBy,omitempty"`
	CorrectAnswer json.RawMessage `json:"correctAnswer,omitempty"`
	Points        int             `json:"points"`
	IsCorrect     bool            `json:"isCorrect"`
}

// QuizSettings tunes quiz generation for the room.
type QuizSettings struct {
	QuestionCount int     `json:"questionCount"`
	TimeLimit     float64 `json:"timeLimit,omitempty"`
}

// QuizSettingsUpdatedPayload announces new room quiz settings.
type QuizSettingsUpdatedPayload struct {
	Settings QuizSettings `json:"settings"`
}

// QueueSongAddedPayload appends one queue entry.
type QueueSongAddedPayload struct {
	Item QueueItem `json:"item"`
}

// QueueSongRemovedPayload removes one queue entry.
type QueueSongRemovedPayload struct {
	ItemID string `json:"itemId"`
}

// QueueSongUpdatedPayload replaces the whole queue, covering reorders
// and status changes in one shape.
type QueueSongUpdatedPayload struct {
	Items []QueueItem `json:"items"`
}

// ParseEventPayload parses the envelope data into the payload struct for
// its event type. Unknown events return (nil, nil) so new coordinator
// events never break older clients.
func ParseEventPayload(env channel.Envelope) (interface{}, error) {
	switch EventType(env.Event) {
	case EventRoomJoined:
		var payload RoomJoinedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventParticipantJoined:
		var payload ParticipantJoinedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventParticipantLeft:
		var payload ParticipantLeftPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventRoomClosed:
		var payload RoomClosedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventError:
		var payload ErrorPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGameStarted:
		var payload GameStartedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGameSyncState:
		var payload GameSyncStatePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGamePaused, EventGameResumed:
		return nil, nil

	case EventGameFinished:
		var payload GameFinishedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGameTimeUpdate:
		var payload GameTimeUpdatePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGameScoresUpdate:
		var payload GameScoresUpdatePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventGamePitchUpdate:
		var payload GamePitchUpdatePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQuizQuestions:
		var payload QuizQuestionsPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQuizSyncState:
		var payload QuizSyncStatePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQuizForceAdvance:
		var payload QuizForceAdvancePayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQuizSettingsUpdated:
		var payload QuizSettingsUpdatedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQueueSongAdded:
		var payload QueueSongAddedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQueueSongRemoved:
		var payload QueueSongRemovedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventQueueSongUpdated:
		var payload QueueSongUpdatedPayload
		if err := env.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil
	}
}
