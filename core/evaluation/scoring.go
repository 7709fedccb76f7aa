package evaluation

import (
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/question"
)

var ErrNoQuestions = errors.New("cannot score an evaluation with no assigned questions")

// Score returns the percentage of questions answered correctly.
// A question without a matching answer counts as wrong. When a question is answered more than once,
// the first answer is graded.
func Score(qs []question.Question, answers []Answer) (float64, error) {
	if len(qs) == 0 {
		return 0, ErrNoQuestions
	}

	byID := make(map[string]interface{}, len(answers))
	for _, ans := range answers {
		if _, seen := byID[ans.QuestionID]; !seen {
			byID[ans.QuestionID] = ans.SelectedOption
		}
	}

	var correct int
	for _, q := range qs {
		selected, ok := byID[q.ID]
		if ok && q.IsCorrect(selected) {
			correct++
		}
	}
	return float64(correct) * 100 / float64(len(qs)), nil
}

// StatusFor maps a score to approved or failed.
func StatusFor(score, passingScore float64) Status {
	if score >= passingScore {
		return StatusApproved
	}
	return StatusFailed
}

// RecertificationPolicy decides what Assign does for a user whose evaluation is already approved.
type RecertificationPolicy string

const (
	// RecertifyAlways archives the approval and starts a new evaluation cycle.
	RecertifyAlways RecertificationPolicy = "always"
	// RecertifyNever keeps the approved evaluation.
	RecertifyNever RecertificationPolicy = "never"
)

func ParseRecertificationPolicy(s string) (RecertificationPolicy, error) {
	switch p := RecertificationPolicy(s); p {
	case RecertifyAlways, RecertifyNever:
		return p, nil
	case "":
		return RecertifyAlways, nil
	}
	return "", errors.Errorf("unknown recertification policy %q", s)
}
