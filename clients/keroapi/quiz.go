package keroapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/WebRTC-Sync/kero-project-sub001/internal/quiz"
)

// GenerateQuizRequest asks the generator for a question set.
type GenerateQuizRequest struct {
	SongID string              `json:"songId"`
	Count  int                 `json:"count,omitempty"`
	Types  []quiz.QuestionType `json:"types,omitempty"`
}

// generatedQuestion is the generator's wire shape. Choice questions
// arrive as a correct answer plus distractors and the client assembles
// the option list; questions that already carry options pass through.
type generatedQuestion struct {
	ID            string            `json:"id"`
	Type          quiz.QuestionType `json:"type"`
	QuestionText  string            `json:"questionText"`
	Options       []string          `json:"options,omitempty"`
	CorrectIndex  *int              `json:"correctIndex,omitempty"`
	CorrectAnswer string            `json:"correctAnswer,omitempty"`
	WrongAnswers  []string          `json:"wrongAnswers,omitempty"`
	CorrectOrder  []string          `json:"correctOrder,omitempty"`
	TimeLimit     float64           `json:"timeLimit"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

type generateQuizResponse struct {
	Questions []generatedQuestion `json:"questions"`
}

func (g generatedQuestion) toQuestion(rng *rand.Rand) quiz.Question {
	q := quiz.Question{
		ID:            g.ID,
		Type:          g.Type,
		QuestionText:  g.QuestionText,
		Options:       g.Options,
		CorrectIndex:  g.CorrectIndex,
		CorrectAnswer: g.CorrectAnswer,
		CorrectOrder:  g.CorrectOrder,
		TimeLimit:     g.TimeLimit,
		Metadata:      g.Metadata,
	}
	if len(q.Options) > 0 || g.CorrectAnswer == "" || len(g.WrongAnswers) == 0 {
		return q
	}

	options := append([]string{g.CorrectAnswer}, g.WrongAnswers...)
	rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	for i, option := range options {
		if option == g.CorrectAnswer {
			idx := i
			q.CorrectIndex = &idx
			break
		}
	}
	q.Options = options
	return q
}

// GenerateQuestions requests a generated question set for a song.
func (c *KeroApiClient) GenerateQuestions(ctx context.Context, req GenerateQuizRequest) ([]quiz.Question, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.Post(ctx, QuizGenerateEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	var response generateQuizResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	if len(response.Questions) == 0 {
		return nil, fmt.Errorf("generator returned no questions for song %s", req.SongID)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	questions := make([]quiz.Question, 0, len(response.Questions))
	for _, g := range response.Questions {
		questions = append(questions, g.toQuestion(rng))
	}
	return questions, nil
}

// QuestionGenerator adapts the client to the quiz machine's Generator,
// fixing the request so restarts regenerate the same shape of set.
func (c *KeroApiClient) QuestionGenerator(req GenerateQuizRequest) quiz.Generator {
	return quiz.GeneratorFunc(func(ctx context.Context) ([]quiz.Question, error) {
		return c.GenerateQuestions(ctx, req)
	})
}
