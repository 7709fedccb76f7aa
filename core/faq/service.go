package faq

import (
	"context"
	"errors"
	"time"

	"github.com/nyxmentor/portal/core"
)

var (
	// errors
	ErrNotFound  = errors.New("faq not found")
	ErrFAQExists = errors.New("a faq with the same question and roles already exists")
	ErrForbidden = errors.New("you do not have permission to view this faq")
)

type (
	Repository interface {
		CheckFAQUniqueness(ctx context.Context, question string, roles []string, excluded ...FAQ) error
		CreateFAQ(ctx context.Context, f FAQ) (FAQ, error)
		// QueryFAQs returns the FAQs visible to role. Empty role means all.
		QueryFAQs(ctx context.Context, role string) ([]FAQ, error)
		GetFAQ(ctx context.Context, id string) (FAQ, error)
		UpdateFAQ(ctx context.Context, f FAQ) (FAQ, error)
		DeleteFAQ(ctx context.Context, id string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, question string, roles []string, excluded ...FAQ) error
		Create(ctx context.Context, fd FAQData) (FAQ, error)
		// Query returns every FAQ for admins, and the FAQs tagged with role otherwise.
		Query(ctx context.Context, role string) ([]FAQ, error)
		GetByID(ctx context.Context, id string) (FAQ, error)
		GetForRole(ctx context.Context, id, role string) (FAQ, error)
		Update(ctx context.Context, f FAQ, fd FAQData) (FAQ, error)
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

func (svc *service) CheckUniqueness(ctx context.Context, question string, roles []string, excluded ...FAQ) error {
	if err := svc.repo.CheckFAQUniqueness(ctx, question, roles, excluded...); err != nil {
		if err == ErrFAQExists {
			return core.NewValidationError(err)
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, fd FAQData) (FAQ, error) {
	now := svc.now().UTC()
	return svc.repo.CreateFAQ(ctx, FAQ{
		Question:  fd.Question,
		Answer:    fd.Answer,
		Roles:     fd.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, role string) ([]FAQ, error) {
	if core.IsAdminRole(role) {
		role = ""
	}
	return svc.repo.QueryFAQs(ctx, role)
}

func (svc *service) GetByID(ctx context.Context, id string) (FAQ, error) {
	return svc.repo.GetFAQ(ctx, id)
}

func (svc *service) GetForRole(ctx context.Context, id, role string) (FAQ, error) {
	f, err := svc.repo.GetFAQ(ctx, id)
	if err != nil {
		return FAQ{}, err
	}
	if !core.IsAdminRole(role) && !f.IsFor(role) {
		return FAQ{}, core.NewPermissionError(ErrForbidden.Error())
	}
	return f, nil
}

func (svc *service) Update(ctx context.Context, f FAQ, fd FAQData) (FAQ, error) {
	f.Question = fd.Question
	f.Answer = fd.Answer
	f.Roles = fd.Roles
	f.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateFAQ(ctx, f)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteFAQ(ctx, id)
}
