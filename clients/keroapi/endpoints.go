package keroapi

const (
	SearchEndpoint       = "/api/songs/search"
	SongEndpoint         = "/api/songs/%s"
	SongStatusEndpoint   = "/api/songs/%s/status"
	QuizGenerateEndpoint = "/api/quiz/generate"
)
