package training

import (
	"context"
	"errors"
	"time"

	"github.com/nyxmentor/portal/core"
)

var (
	// errors
	ErrNotFound       = errors.New("training not found")
	ErrTrainingExists = errors.New("a training with this title already exists in this section and module")
	ErrNoMaterial     = errors.New("a document or a video is required")
	ErrNoChanges      = errors.New("no changes were made to the training")
	ErrForbidden      = errors.New("this training is not available for your role")
)

type (
	QueryFilter struct {
		// Role restricts the result to trainings required for the role. Empty means all.
		Role string
	}

	Repository interface {
		CheckTrainingUniqueness(ctx context.Context, title, section, module string, excluded ...Training) error
		CreateTraining(ctx context.Context, t Training) (Training, error)
		QueryTrainings(ctx context.Context, filter QueryFilter) ([]Training, error)
		GetTraining(ctx context.Context, id string) (Training, error)
		UpdateTraining(ctx context.Context, t Training) (Training, error)
		DeleteTraining(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, title, section, module string, excluded ...Training) error
		Create(ctx context.Context, nt NewTraining) (Training, error)
		Query(ctx context.Context, filter QueryFilter) ([]Training, error)
		// RequiredFor returns the trainings a user with the given role has to complete.
		RequiredFor(ctx context.Context, role string) ([]Training, error)
		GetByID(ctx context.Context, id string) (Training, error)
		// GetForRole returns the training if the role may access it.
		GetForRole(ctx context.Context, id, role string) (Training, error)
		Update(ctx context.Context, t Training, ut UpdateTraining) (Training, error)
		Delete(ctx context.Context, id string) error
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

func (svc *service) CheckUniqueness(ctx context.Context, title, section, module string, excluded ...Training) error {
	if err := svc.repo.CheckTrainingUniqueness(ctx, title, section, module, excluded...); err != nil {
		if err == ErrTrainingExists {
			return core.NewValidationError(err, core.FieldError{Field: "title", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nt NewTraining) (Training, error) {
	now := svc.now().UTC()
	t := Training{
		Title:       nt.Title,
		Description: nt.Description,
		Roles:       nt.Roles,
		Section:     nt.Section,
		Module:      nt.Module,
		Submodule:   nt.Submodule,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if nt.DocumentURL != "" {
		t.Document = Material{FileURL: nt.DocumentURL, OriginalFileName: nt.DocumentName}
	}
	if nt.VideoURL != "" {
		t.Video = Material{FileURL: nt.VideoURL, OriginalFileName: nt.VideoName}
	}
	return svc.repo.CreateTraining(ctx, t)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Training, error) {
	return svc.repo.QueryTrainings(ctx, filter)
}

func (svc *service) RequiredFor(ctx context.Context, role string) ([]Training, error) {
	return svc.repo.QueryTrainings(ctx, QueryFilter{Role: role})
}

func (svc *service) GetByID(ctx context.Context, id string) (Training, error) {
	return svc.repo.GetTraining(ctx, id)
}

func (svc *service) GetForRole(ctx context.Context, id, role string) (Training, error) {
	t, err := svc.repo.GetTraining(ctx, id)
	if err != nil {
		return Training{}, err
	}
	if !core.IsAdminRole(role) && !t.IsFor(role) {
		return Training{}, core.NewPermissionError(ErrForbidden.Error())
	}
	return t, nil
}

func (svc *service) Update(ctx context.Context, t Training, ut UpdateTraining) (Training, error) {
	updated := ut.Apply(t)
	updated.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateTraining(ctx, updated)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTraining(ctx, id)
}
