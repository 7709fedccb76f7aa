package progress

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Statuses
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

const Complete = 100

type Progress struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	TrainingID string    `json:"trainingId"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"createdAt"` // UTC
	UpdatedAt  time.Time `json:"updatedAt"` // UTC
}

// IsDone reports whether the record counts toward the evaluation assignment.
func (p Progress) IsDone() bool {
	return p.Status == StatusCompleted && p.Progress == Complete && p.Completed
}

// set moves the record to pct, keeping status and completed consistent with it.
func (p *Progress) set(pct int) {
	p.Progress = pct
	if pct == Complete {
		p.Status = StatusCompleted
		p.Completed = true
	} else {
		p.Status = StatusInProgress
		p.Completed = false
	}
}

type StartProgress struct {
	TrainingID string `json:"trainingId" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=document video"`
}

func (sp *StartProgress) Validate(validate *validator.Validate) error {
	return validate.Struct(sp)
}

type RecordProgress struct {
	TrainingID string `json:"trainingId" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=document video"`
	Progress   *int   `json:"progress" validate:"required"`
}

func (rp *RecordProgress) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}
