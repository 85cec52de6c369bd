package room

import "github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"

// Intent names an outbound client event.
type Intent string

const (
	IntentRoomJoin         Intent = "room:join"
	IntentRoomLeave        Intent = "room:leave"
	IntentGameStart        Intent = "game:start"
	IntentQuizSubmitAnswer Intent = "quiz:submit-answer"
)

// JoinPayload asks the coordinator to admit this client to a room.
type JoinPayload struct {
	RoomCode string `json:"roomCode"`
	UserID   string `json:"userId,omitempty"`
	Nickname string `json:"nickname"`
}

// LeavePayload announces a voluntary departure.
type LeavePayload struct {
	RoomCode string `json:"roomCode"`
}

// StartGamePayload asks the coordinator to start a game. SongID selects
// the song for karaoke mode; quiz mode generates from it.
type StartGamePayload struct {
	RoomCode string   `json:"roomCode"`
	Mode     GameMode `json:"mode"`
	SongID   string   `json:"songId,omitempty"`
}

// SubmitAnswerPayload reports a local quiz submission so the coordinator
// can resolve the round for everyone.
type SubmitAnswerPayload struct {
	RoomCode      string      `json:"roomCode"`
	QuestionIndex int         `json:"questionIndex"`
	Answer        quiz.Answer `json:"answer"`
	IsCorrect     bool        `json:"isCorrect"`
	Points        int         `json:"points"`
	TimeLeft      float64     `json:"timeLeft"`
}
