package quiz

// QuestionType identifies the quiz mini-game round format.
type QuestionType string

const (
	TypeLyricsFill   QuestionType = "lyrics_fill"
	TypeTitleGuess   QuestionType = "title_guess"
	TypeArtistGuess  QuestionType = "artist_guess"
	TypeLyricsOrder  QuestionType = "lyrics_order"
	TypeInitialGuess QuestionType = "initial_guess"
	TypeTrueFalse    QuestionType = "true_false"
)

// DefaultTimeLimit is applied to questions that arrive without one.
const DefaultTimeLimit = 20.0

// OrderLength is how many items an ordering answer must select before it
// can be submitted.
const OrderLength = 4

// Question is one generated quiz round. Optional fields vary by type and
// may be absent on malformed questions; grading defaults instead of
// failing the round.
type Question struct {
	ID            string         `json:"id"`
	Type          QuestionType   `json:"type"`
	QuestionText  string         `json:"questionText"`
	Options       []string       `json:"options,omitempty"`
	CorrectIndex  *int           `json:"correctIndex,omitempty"`
	CorrectAnswer string         `json:"correctAnswer,omitempty"`
	CorrectOrder  []string       `json:"correctOrder,omitempty"`
	TimeLimit     float64        `json:"timeLimit"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// EffectiveTimeLimit returns the question's countdown in seconds,
// defaulted when missing or nonsensical.
func (q Question) EffectiveTimeLimit() float64 {
	if q.TimeLimit <= 0 {
		return DefaultTimeLimit
	}
	return q.TimeLimit
}

// Answer is a tagged submission; exactly one field is set, matching the
// question type: Choice for single-choice, Flag for true/false, Order
// for ordering, Text for free text.
type Answer struct {
	Choice *int     `json:"choice,omitempty"`
	Flag   *bool    `json:"flag,omitempty"`
	Order  []string `json:"order,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// ChoiceAnswer builds a single-choice answer.
func ChoiceAnswer(index int) Answer { return Answer{Choice: &index} }

// FlagAnswer builds a true/false answer.
func FlagAnswer(v bool) Answer { return Answer{Flag: &v} }

// OrderAnswer builds an ordering answer.
func OrderAnswer(items ...string) Answer { return Answer{Order: items} }

// TextAnswer builds a free-text answer.
func TextAnswer(text string) Answer { return Answer{Text: text} }

// RoundResult is the outcome of one round for one participant.
type RoundResult struct {
	ParticipantID   string  `json:"participantId"`
	ParticipantName string  `json:"participantName"`
	IsCorrect       bool    `json:"isCorrect"`
	Points          int     `json:"points"`
	TimeLeft        float64 `json:"timeLeft,omitempty"`
}
