package question

import (
	"time"

	"github.com/nyxmentor/portal/core"
)

// Kind is the question type.
type Kind string

const (
	MultipleChoice Kind = "multiple_choice"
	TrueFalse      Kind = "true_false"
)

func (k Kind) IsValid() bool {
	return k == MultipleChoice || k == TrueFalse
}

type Option struct {
	ID      string `json:"id" yaml:"id,omitempty"`
	Text    string `json:"text" yaml:"text"`
	Correct bool   `json:"correct" yaml:"correct"`
}

type Question struct {
	ID      string   `json:"id" yaml:"id,omitempty"`
	Text    string   `json:"text" yaml:"text"`
	Kind    Kind     `json:"type" yaml:"type"`
	Options []Option `json:"options,omitempty" yaml:"options,omitempty"`
	// CorrectAnswer is only set on true_false questions.
	CorrectAnswer *bool     `json:"correctAnswer,omitempty" yaml:"correctAnswer,omitempty"`
	Roles         []string  `json:"roles" yaml:"roles"`
	CreatedAt     time.Time `json:"createdAt" yaml:"-"` // UTC
}

func (q Question) IsFor(role string) bool {
	return core.HasRole(q.Roles, role)
}

// Grader returns the correctness check matching the question kind.
// An unknown kind gets a grader that rejects every answer.
func (q Question) Grader() Grader {
	switch q.Kind {
	case MultipleChoice:
		return newChoiceGrader(q.Options)
	case TrueFalse:
		if q.CorrectAnswer == nil {
			return rejectAll{}
		}
		return boolGrader{want: *q.CorrectAnswer}
	}
	return rejectAll{}
}

// IsCorrect grades a single submitted answer.
func (q Question) IsCorrect(answer interface{}) bool {
	return q.Grader().IsCorrect(answer)
}

// Grader decides whether a submitted answer is correct.
// Answers come straight from decoded JSON: a string for multiple_choice, a bool for true_false.
type Grader interface {
	IsCorrect(answer interface{}) bool
}

// choiceGrader accepts the text of the first option flagged correct.
type choiceGrader struct {
	text string
	ok   bool
}

func newChoiceGrader(opts []Option) choiceGrader {
	for _, opt := range opts {
		if opt.Correct {
			return choiceGrader{text: opt.Text, ok: true}
		}
	}
	return choiceGrader{}
}

func (g choiceGrader) IsCorrect(answer interface{}) bool {
	s, isStr := answer.(string)
	return g.ok && isStr && s == g.text
}

// boolGrader only accepts a strict boolean, "true" as a string is wrong.
type boolGrader struct {
	want bool
}

func (g boolGrader) IsCorrect(answer interface{}) bool {
	b, ok := answer.(bool)
	return ok && b == g.want
}

type rejectAll struct{}

func (rejectAll) IsCorrect(interface{}) bool { return false }
