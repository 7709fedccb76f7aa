package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/faq"
	"github.com/nyxmentor/portal/core/progress"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/training"
	"github.com/nyxmentor/portal/core/user"
)

// DB is an in-memory store used in tests and local runs.
// Tables that are written together are always locked in declaration order.
type DB struct {
	user       *userTable
	training   *trainingTable
	progress   *progressTable
	evaluation *evaluationTable
	approval   *approvalTable
	question   *questionTable
	faq        *faqTable
}

type (
	userTable struct {
		table map[string]*user.User
		mutex sync.RWMutex
	}

	trainingTable struct {
		table map[string]*training.Training
		mutex sync.RWMutex
	}

	progressTable struct {
		table map[string]*progress.Progress
		mutex sync.RWMutex
	}

	// evaluationTable is keyed by user ID, there is at most one evaluation per user.
	evaluationTable struct {
		table map[string]*evaluation.Evaluation
		mutex sync.RWMutex
	}

	approvalTable struct {
		table map[string]*evaluation.ApprovalRecord
		mutex sync.RWMutex
	}

	questionTable struct {
		table map[string]*question.Question
		order []string // insertion order
		mutex sync.RWMutex
	}

	faqTable struct {
		table map[string]*faq.FAQ
		mutex sync.RWMutex
	}
)

func NewDB() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		training:   &trainingTable{table: make(map[string]*training.Training)},
		progress:   &progressTable{table: make(map[string]*progress.Progress)},
		evaluation: &evaluationTable{table: make(map[string]*evaluation.Evaluation)},
		approval:   &approvalTable{table: make(map[string]*evaluation.ApprovalRecord)},
		question:   &questionTable{table: make(map[string]*question.Question)},
		faq:        &faqTable{table: make(map[string]*faq.FAQ)},
	}
}

func newID() string {
	return uuid.New().String()
}

// copyStrings keeps stored slices from being aliased by callers.
func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
