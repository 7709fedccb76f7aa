package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/training"
)

var (
	// errors
	ErrNotFound = errors.New("progress not found")
	ErrExists   = errors.New("progress already started for this training")

	errAdmin           = "admins cannot take trainings"
	errTrainingMissing = "training not found"
	errNoAccess        = "you do not have access to this training"
	errInvalidProgress = errors.New("invalid progress")
)

type (
	Repository interface {
		QueryProgress(ctx context.Context, userID string) ([]Progress, error)
		// GetProgress returns ErrNotFound when the user has no record for the training.
		GetProgress(ctx context.Context, userID, trainingID string) (Progress, error)
		// CreateProgress returns ErrExists if the user already has a record for the training.
		CreateProgress(ctx context.Context, p Progress) (Progress, error)
		UpdateProgress(ctx context.Context, p Progress) (Progress, error)
	}

	// Assigner is notified once a user completed every training required for their role.
	Assigner interface {
		Assign(ctx context.Context, userID, role string) error
	}

	Service interface {
		ListForUser(ctx context.Context, userID string) ([]Progress, error)
		// AllCompleted reports whether every training required for role is done by the user.
		AllCompleted(ctx context.Context, userID, role string) (bool, error)
		Start(ctx context.Context, userID, role string, sp StartProgress) (Progress, error)
		// Record saves the new percentage and triggers the evaluation assignment when the user
		// is done with every required training.
		Record(ctx context.Context, userID, role string, rp RecordProgress) (Progress, error)
	}

	service struct {
		repo      Repository
		trainings training.Service
		assigner  Assigner
		logger    core.Logger
		now       func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, trainings training.Service, assigner Assigner, logger core.Logger) Service {
	return &service{
		repo:      repo,
		trainings: trainings,
		assigner:  assigner,
		logger:    logger,
		now:       time.Now,
	}
}

func (svc *service) ListForUser(ctx context.Context, userID string) ([]Progress, error) {
	return svc.repo.QueryProgress(ctx, userID)
}

func (svc *service) AllCompleted(ctx context.Context, userID, role string) (bool, error) {
	required, err := svc.trainings.RequiredFor(ctx, role)
	if err != nil {
		return false, err
	}
	records, err := svc.repo.QueryProgress(ctx, userID)
	if err != nil {
		return false, err
	}

	done := make(map[string]bool, len(records))
	for _, p := range records {
		if p.IsDone() {
			done[p.TrainingID] = true
		}
	}
	for _, t := range required {
		if !done[t.ID] {
			return false, nil
		}
	}
	return true, nil
}

func (svc *service) Start(ctx context.Context, userID, role string, sp StartProgress) (Progress, error) {
	if err := svc.checkTraining(ctx, role, sp.TrainingID, sp.Type); err != nil {
		return Progress{}, err
	}

	_, err := svc.repo.GetProgress(ctx, userID, sp.TrainingID)
	switch err {
	case nil:
		return Progress{}, core.NewValidationError(ErrExists)
	case ErrNotFound:
	default:
		return Progress{}, err
	}

	now := svc.now().UTC()
	p := Progress{
		UserID:     userID,
		TrainingID: sp.TrainingID,
		Type:       sp.Type,
		Status:     StatusInProgress,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p, err = svc.repo.CreateProgress(ctx, p)
	if err == ErrExists {
		return Progress{}, core.NewValidationError(ErrExists)
	}
	return p, err
}

func (svc *service) Record(ctx context.Context, userID, role string, rp RecordProgress) (Progress, error) {
	if err := svc.checkTraining(ctx, role, rp.TrainingID, rp.Type); err != nil {
		return Progress{}, err
	}

	now := svc.now().UTC()
	p, err := svc.repo.GetProgress(ctx, userID, rp.TrainingID)
	isNew := err == ErrNotFound
	if err != nil && !isNew {
		return Progress{}, err
	}
	if isNew {
		p = Progress{
			UserID:     userID,
			TrainingID: rp.TrainingID,
			Type:       rp.Type,
			Status:     StatusInProgress,
			CreatedAt:  now,
		}
	}

	pct := *rp.Progress
	if pct < 0 || pct > Complete || pct < p.Progress {
		return Progress{}, core.NewValidationError(errInvalidProgress)
	}
	p.set(pct)
	p.UpdatedAt = now

	if isNew {
		p, err = svc.repo.CreateProgress(ctx, p)
	} else {
		p, err = svc.repo.UpdateProgress(ctx, p)
	}
	if err != nil {
		return Progress{}, err
	}

	svc.assignIfDone(ctx, userID, role)
	return p, nil
}

// assignIfDone runs the completion check and the assignment. Failures only get logged since the
// progress itself has been saved.
func (svc *service) assignIfDone(ctx context.Context, userID, role string) {
	done, err := svc.AllCompleted(ctx, userID, role)
	if err != nil {
		svc.logger.Error("checking trainings completion", err, map[string]interface{}{"userId": userID})
		return
	}
	if !done {
		return
	}
	if err = svc.assigner.Assign(ctx, userID, role); err != nil {
		svc.logger.Error("assigning evaluation", err, map[string]interface{}{"userId": userID})
	}
}

func (svc *service) checkTraining(ctx context.Context, role, trainingID, typ string) error {
	if core.IsAdminRole(role) {
		return core.NewPermissionError(errAdmin)
	}
	t, err := svc.trainings.GetByID(ctx, trainingID)
	if err != nil {
		if err == training.ErrNotFound {
			return core.NewNotFoundError(errTrainingMissing)
		}
		return err
	}
	if !t.IsFor(role) {
		return core.NewPermissionError(errNoAccess)
	}
	if !t.HasMaterial(typ) {
		return core.NewValidationError(fmt.Errorf("this training has no %s material", typ))
	}
	return nil
}
