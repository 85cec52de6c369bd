package room

import (
	"github.com/WebRTC-Sync/kero-project-sub001/internal/song"
)

// Phase is the synchronizer lifecycle for one room session.
type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseConnecting   Phase = "connecting"
	PhaseJoined       Phase = "joined"
	PhaseLeft         Phase = "left"
	PhaseClosed       Phase = "closed"
)

// GameMode selects which engine a started game runs.
type GameMode string

const (
	ModeKaraoke GameMode = "karaoke"
	ModeQuiz    GameMode = "quiz"
)

// GameStatus mirrors the coordinator's view of the running game.
type GameStatus string

const (
	GameWaiting  GameStatus = "waiting"
	GamePlaying  GameStatus = "playing"
	GamePaused   GameStatus = "paused"
	GameFinished GameStatus = "finished"
)

// Participant is one connected member of the room.
type Participant struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
	IsReady  bool   `json:"isReady"`
	Score    *int   `json:"score,omitempty"`
}

// RoomState is the room roster as announced by the coordinator.
type RoomState struct {
	Code            string        `json:"code"`
	Name            string        `json:"name,omitempty"`
	HostID          string        `json:"hostId"`
	Mode            GameMode      `json:"gameMode"`
	Status          GameStatus    `json:"status,omitempty"`
	MaxParticipants int           `json:"maxParticipants,omitempty"`
	Participants    []Participant `json:"participants"`
}

// PlayerScore is one row of the shared scoreboard.
type PlayerScore struct {
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	Score         int    `json:"score"`
	Combo         int    `json:"combo"`
	MaxStreak     int    `json:"maxStreak"`
}

// QueueItem is one entry of the room's song queue.
type QueueItem struct {
	ID      string `json:"id"`
	SongID  string `json:"songId"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	AddedBy string `json:"addedBy"`
	// Status tracks server-side preparation of the song's assets.
	Status string `json:"status,omitempty"`
}

// GameState is the locally mirrored game view. The coordinator owns most
// of it; deltas and snapshots converge the local copy, while Streak and
// MaxStreak mirror the local engine's run.
type GameState struct {
	Status      GameStatus    `json:"status"`
	Mode        GameMode      `json:"mode"`
	Song        *song.Song    `json:"song,omitempty"`
	QueueItemID string        `json:"queueItemId,omitempty"`
	CurrentTime float64       `json:"currentTime"`
	Scores      []PlayerScore `json:"scores,omitempty"`
	Streak      int           `json:"streak"`
	MaxStreak   int           `json:"maxStreak"`
	Queue       []QueueItem   `json:"queue,omitempty"`
}

// State is the whole local room view: lifecycle phase plus mirrored room
// and game state. Snapshots returned by the store are copies; mutating
// them does not touch the store.
type State struct {
	Phase     Phase      `json:"phase"`
	Room      *RoomState `json:"room,omitempty"`
	Game      GameState  `json:"game"`
	LastError string     `json:"lastError,omitempty"`
}
