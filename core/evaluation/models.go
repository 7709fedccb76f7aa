package evaluation

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/nyxmentor/portal/core/question"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusFailed   Status = "failed"
)

// Evaluation is the exam instance of a single user. There is at most one per user.
type Evaluation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuestionIDs []string  `json:"questions"`
	Score       float64   `json:"score"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC; cooldown anchor
}

// ApprovalRecord archives a passed evaluation that got replaced by a new certification cycle.
type ApprovalRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	EvaluationID string    `json:"evaluationId"`
	Score        float64   `json:"score"`
	Attempts     int       `json:"attempts"`
	ApprovedAt   time.Time `json:"approvedAt"` // UTC
}

type Answer struct {
	QuestionID string `json:"questionId"`
	// SelectedOption is the option text for multiple_choice questions and a bool for true_false ones.
	SelectedOption interface{} `json:"selectedOption"`
}

// Submission is the submit payload. Answers stay raw until the engine checks their shape,
// so that time and role checks still come first.
type Submission struct {
	Answers json.RawMessage `json:"answers"`
}

func (s Submission) parse() ([]Answer, error) {
	var answers []Answer
	raw := bytes.TrimSpace(s.Answers)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errInvalidAnswers
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, errInvalidAnswers
	}
	return answers, nil
}

type SubmitResult struct {
	Message string  `json:"message"`
	Score   float64 `json:"score"`
	Status  Status  `json:"status"`
}

type RetryResult struct {
	Message      string `json:"message"`
	AttemptsLeft int    `json:"attemptsLeft"`
}

// AssignedView is the client-side rendering of a pending evaluation. It never carries correctness.
type AssignedView struct {
	EvaluationID string             `json:"evaluationId"`
	Questions    []AssignedQuestion `json:"questions"`
}

type AssignedQuestion struct {
	QuestionID string           `json:"questionId"`
	Text       string           `json:"text"`
	Type       question.Kind    `json:"type"`
	Options    []AssignedOption `json:"options,omitempty"`
}

type AssignedOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
