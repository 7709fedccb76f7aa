package question

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nyxmentor/portal/core"
)

var (
	// errors
	ErrNotFound = errors.New("question not found")

	errNoText          = errors.New("text is required")
	errInvalidKind     = errors.New("type must be multiple_choice or true_false")
	errTooFewOptions   = errors.New("multiple_choice questions need at least two options")
	errCorrectOptions  = errors.New("multiple_choice questions need exactly one correct option")
	errNoCorrectAnswer = errors.New("true_false questions need a correctAnswer")
	errInvalidRoles    = errors.New("roles must list at least one staff role")
)

type (
	// Repository is the read side used by the evaluation engine plus the seeding write.
	Repository interface {
		// QueryQuestions returns the questions eligible for role.
		QueryQuestions(ctx context.Context, role string) ([]Question, error)
		// GetQuestionsByID returns the questions with the given IDs, in the order of ids.
		// Unknown IDs are skipped.
		GetQuestionsByID(ctx context.Context, ids ...string) ([]Question, error)
		// ReplaceQuestions drops the whole bank and stores qs.
		ReplaceQuestions(ctx context.Context, qs []Question) ([]Question, error)
	}

	Service interface {
		ForRole(ctx context.Context, role string) ([]Question, error)
		ByIDs(ctx context.Context, ids ...string) ([]Question, error)
		// Seed validates qs and replaces the question bank with them.
		Seed(ctx context.Context, qs []Question) ([]Question, error)
	}

	service struct {
		repo Repository
		now  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (svc *service) ForRole(ctx context.Context, role string) ([]Question, error) {
	return svc.repo.QueryQuestions(ctx, role)
}

func (svc *service) ByIDs(ctx context.Context, ids ...string) ([]Question, error) {
	return svc.repo.GetQuestionsByID(ctx, ids...)
}

func (svc *service) Seed(ctx context.Context, qs []Question) ([]Question, error) {
	var fields []core.FieldError
	now := svc.now().UTC()
	for i := range qs {
		qs[i].Text = core.CleanString(qs[i].Text)
		if err := Validate(qs[i]); err != nil {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("questions[%d]", i), Error: err.Error()})
		}
		qs[i].CreatedAt = now
	}
	if fields != nil {
		return nil, core.NewValidationError(nil, fields...)
	}
	return svc.repo.ReplaceQuestions(ctx, qs)
}

// Validate checks that a catalog entry is well-formed for its kind.
func Validate(q Question) error {
	if core.CleanString(q.Text) == "" {
		return errNoText
	}
	switch q.Kind {
	case MultipleChoice:
		if len(q.Options) < 2 {
			return errTooFewOptions
		}
		var n int
		for _, opt := range q.Options {
			if opt.Correct {
				n++
			}
		}
		if n != 1 {
			return errCorrectOptions
		}
	case TrueFalse:
		if q.CorrectAnswer == nil {
			return errNoCorrectAnswer
		}
	default:
		return errInvalidKind
	}
	if len(q.Roles) == 0 {
		return errInvalidRoles
	}
	for _, role := range q.Roles {
		if !core.HasRole(core.StaffRoles, role) {
			return errInvalidRoles
		}
	}
	return nil
}
