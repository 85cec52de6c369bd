package quiz

import (
	"math"
	"strings"
	"unicode"
)

// Grade reports whether the answer is correct for the question. Malformed
// questions (missing options, missing correct answer) grade as incorrect
// rather than erroring so a bad generator payload never wedges a round.
func Grade(q Question, a Answer) bool {
	switch q.Type {
	case TypeTrueFalse:
		if a.Flag == nil {
			return false
		}
		want, ok := parseBool(q.CorrectAnswer)
		if !ok && q.CorrectIndex != nil && len(q.Options) > *q.CorrectIndex && *q.CorrectIndex >= 0 {
			want, ok = parseBool(q.Options[*q.CorrectIndex])
		}
		return ok && *a.Flag == want
	case TypeLyricsOrder:
		if len(a.Order) != OrderLength || len(q.CorrectOrder) != len(a.Order) {
			return false
		}
		for i := range a.Order {
			if normalize(a.Order[i]) != normalize(q.CorrectOrder[i]) {
				return false
			}
		}
		return true
	default:
		// Choice-style types grade against the index when the question
		// carries one, otherwise against the answer text.
		if a.Choice != nil {
			if q.CorrectIndex != nil {
				return *a.Choice == *q.CorrectIndex
			}
			if *a.Choice >= 0 && *a.Choice < len(q.Options) {
				return textMatches(q, q.Options[*a.Choice])
			}
			return false
		}
		if a.Text != "" {
			return textMatches(q, a.Text)
		}
		return false
	}
}

func textMatches(q Question, got string) bool {
	want := q.CorrectAnswer
	if want == "" && q.CorrectIndex != nil && *q.CorrectIndex >= 0 && *q.CorrectIndex < len(q.Options) {
		want = q.Options[*q.CorrectIndex]
	}
	if want == "" {
		return false
	}
	return normalize(got) == normalize(want)
}

// normalize strips all whitespace and case so free-text grading ignores
// both ("BTS " == "bts").
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func parseBool(s string) (bool, bool) {
	switch normalize(s) {
	case "true", "o", "1", "yes":
		return true, true
	case "false", "x", "0", "no":
		return false, true
	}
	return false, false
}

// Points scores a correct submission by how much of the countdown was
// left: round(1000 * remaining / limit), clamped to [0, 1000].
func Points(remaining, limit float64) int {
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	if remaining <= 0 {
		return 0
	}
	if remaining > limit {
		remaining = limit
	}
	return int(math.Round(1000 * remaining / limit))
}
