package training

import (
	"context"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nyxmentor/portal/core"
)

// Material types
const (
	TypeDocument = "document"
	TypeVideo    = "video"
)

// Material is a training file hosted elsewhere.
type Material struct {
	FileURL          string `json:"fileUrl,omitempty"`
	OriginalFileName string `json:"originalFileName,omitempty"`
}

func (m Material) IsZero() bool { return m.FileURL == "" }

type Training struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Document    Material  `json:"document"`
	Video       Material  `json:"video"`
	Roles       []string  `json:"roles"`
	Section     string    `json:"section"`
	Module      string    `json:"module"`
	Submodule   string    `json:"submodule"`
	CreatedAt   time.Time `json:"createdAt"` // UTC
	UpdatedAt   time.Time `json:"updatedAt"` // UTC
}

// IsFor reports whether the training is required for role.
func (t Training) IsFor(role string) bool {
	return core.HasRole(t.Roles, role)
}

// HasMaterial reports whether the training provides a material of the given type.
func (t Training) HasMaterial(typ string) bool {
	switch typ {
	case TypeDocument:
		return !t.Document.IsZero()
	case TypeVideo:
		return !t.Video.IsZero()
	}
	return false
}

// Grouped is the training catalog organized as section -> module -> trainings.
type Grouped map[string]map[string][]Training

func Group(trainings []Training) Grouped {
	grouped := make(Grouped)
	for _, t := range trainings {
		modules, ok := grouped[t.Section]
		if !ok {
			modules = make(map[string][]Training)
			grouped[t.Section] = modules
		}
		modules[t.Module] = append(modules[t.Module], t)
	}
	return grouped
}

// NewTraining contains information needed to create a new Training.
type NewTraining struct {
	Title        string   `json:"title" validate:"required,notblank,max=200"`
	Description  string   `json:"description"`
	Roles        []string `json:"roles" validate:"roles"`
	Section      string   `json:"section"`
	Module       string   `json:"module"`
	Submodule    string   `json:"submodule"`
	DocumentURL  string   `json:"documentUrl" validate:"omitempty,url"`
	DocumentName string   `json:"documentName"`
	VideoURL     string   `json:"videoUrl" validate:"omitempty,url"`
	VideoName    string   `json:"videoName"`
}

func (nt *NewTraining) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Section = core.CleanString(nt.Section)
	nt.Module = core.CleanString(nt.Module)
	nt.Submodule = core.CleanString(nt.Submodule)
	nt.DocumentURL = core.CleanString(nt.DocumentURL)
	nt.VideoURL = core.CleanString(nt.VideoURL)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.DocumentURL == "" && nt.VideoURL == "" {
		return core.NewValidationError(ErrNoMaterial)
	}
	return svc.CheckUniqueness(ctx, nt.Title, nt.Section, nt.Module)
}

// UpdateTraining defines what information may be provided to modify an existing Training.
// Nil fields are left unchanged.
type UpdateTraining struct {
	Title        *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Description  *string  `json:"description"`
	Roles        []string `json:"roles" validate:"omitempty,roles"`
	Section      *string  `json:"section"`
	Module       *string  `json:"module"`
	Submodule    *string  `json:"submodule"`
	DocumentURL  string   `json:"documentUrl" validate:"omitempty,url"`
	DocumentName string   `json:"documentName"`
	VideoURL     string   `json:"videoUrl" validate:"omitempty,url"`
	VideoName    string   `json:"videoName"`
}

// Apply returns a copy of orig with the update applied.
func (ut UpdateTraining) Apply(orig Training) Training {
	t := orig
	if ut.Title != nil {
		t.Title = core.CleanString(*ut.Title)
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.Roles != nil {
		t.Roles = ut.Roles
	}
	if ut.Section != nil {
		t.Section = core.CleanString(*ut.Section)
	}
	if ut.Module != nil {
		t.Module = core.CleanString(*ut.Module)
	}
	if ut.Submodule != nil {
		t.Submodule = core.CleanString(*ut.Submodule)
	}
	if ut.DocumentURL != "" {
		t.Document = Material{FileURL: ut.DocumentURL, OriginalFileName: ut.DocumentName}
	}
	if ut.VideoURL != "" {
		t.Video = Material{FileURL: ut.VideoURL, OriginalFileName: ut.VideoName}
	}
	return t
}

func (ut *UpdateTraining) Validate(ctx context.Context, orig Training, validate *validator.Validate, svc Service) error {
	if err := validate.Struct(ut); err != nil {
		return err
	}
	updated := ut.Apply(orig)
	if sameContent(orig, updated) {
		return core.NewValidationError(ErrNoChanges)
	}
	if updated.Title != orig.Title || updated.Section != orig.Section || updated.Module != orig.Module {
		return svc.CheckUniqueness(ctx, updated.Title, updated.Section, updated.Module, orig)
	}
	return nil
}

func sameContent(a, b Training) bool {
	a.CreatedAt, a.UpdatedAt = time.Time{}, time.Time{}
	b.CreatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}
