package faq

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nyxmentor/portal/core"
)

type FAQ struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

func (f FAQ) IsFor(role string) bool {
	return core.HasRole(f.Roles, role)
}

// RolesKey is the order-insensitive identity of a roles list, used for uniqueness.
func RolesKey(roles []string) string {
	sorted := append([]string(nil), roles...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// FAQData is the payload to create or replace a FAQ.
type FAQData struct {
	Question string   `json:"question" validate:"required,notblank"`
	Answer   string   `json:"answer" validate:"required,notblank"`
	Roles    []string `json:"roles" validate:"roles"`
}

func (fd *FAQData) Validate(ctx context.Context, validate *validator.Validate, svc Service, excluded ...FAQ) error {
	fd.Question = core.CleanString(fd.Question)
	fd.Answer = core.CleanString(fd.Answer)
	if err := validate.Struct(fd); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, fd.Question, fd.Roles, excluded...)
}
