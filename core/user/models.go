package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/nyxmentor/portal/core"
)

const institutionalMarker = ".cap@"

type User struct {
	ID               string    `json:"id" db:"id"`
	Name             string    `json:"name" db:"name"`
	Email            string    `json:"email" db:"email"`
	Role             string    `json:"role" db:"role"`
	PasswordHash     []byte    `json:"-" db:"password_hash"`
	SecurityCodeHash []byte    `json:"-" db:"security_code_hash"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"` // UTC
	LastLogin        time.Time `json:"lastLogin" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetSecurityCode(code string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.SecurityCodeHash = hash
	return nil
}

func (u *User) CheckSecurityCode(code string) error {
	return bcrypt.CompareHashAndPassword(u.SecurityCodeHash, []byte(code))
}

func (u *User) IsAdmin() bool {
	return core.IsAdminRole(u.Role)
}

// InstitutionalEmail turns `name@domain` into `name.cap@domain`. Already institutional emails are returned as is.
func InstitutionalEmail(email string) string {
	email = core.CleanString(email, true /* lower */)
	if strings.Contains(email, institutionalMarker) {
		return email
	}
	return strings.Replace(email, "@", institutionalMarker, 1)
}

// NewUser contains information needed to register a new User.
// The role is derived from the email domain.
type NewUser struct {
	Name         string `json:"name" validate:"required,notblank,max=100"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required"`
	SecurityCode string `json:"securityCode" validate:"required"`
	Role         string `json:"-"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}

	role, ok := core.RoleFromEmail(nu.Email)
	if !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: errEmailNoRole.Error()})
	}
	nu.Role = role
	nu.Email = InstitutionalEmail(nu.Email)
	return svc.CheckUniqueness(ctx, nu.Email)
}

// UpdateUser defines what information an admin may provide to modify an existing User.
type UpdateUser struct {
	Name  string `json:"name" validate:"omitempty,max=100"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,role"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	uu.Name = core.CleanString(uu.Name)
	if uu.Name == "" {
		uu.Name = origUsr.Name
	}
	uu.Email = core.CleanString(uu.Email, true /* lower */)
	uu.Role = core.CleanString(uu.Role)

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if !core.EmailMatchesRole(uu.Email, uu.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: errEmailRoleMismatch.Error()})
	}
	uu.Email = InstitutionalEmail(uu.Email)
	return svc.CheckUniqueness(ctx, uu.Email, origUsr)
}

// UpdateProfile defines what information a User may provide to modify their own account.
type UpdateProfile struct {
	Name            string `json:"name" validate:"omitempty,max=100"`
	Email           string `json:"email" validate:"omitempty,email"`
	NewPassword     string `json:"newPassword"`
	NewSecurityCode string `json:"newSecurityCode"`
}

func (up *UpdateProfile) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	up.Name = core.CleanString(up.Name)
	if up.Name == "" {
		up.Name = origUsr.Name
	}
	up.Email = core.CleanString(up.Email, true /* lower */)

	if up.NewPassword != "" && origUsr.CheckPassword(up.NewPassword) == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "newPassword", Error: errSamePassword.Error()})
	}
	if up.NewSecurityCode != "" && origUsr.CheckSecurityCode(up.NewSecurityCode) == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "newSecurityCode", Error: errSameSecurityCode.Error()})
	}

	if err := validate.Struct(up); err != nil {
		return err
	}

	if up.Email == "" {
		up.Email = origUsr.Email
		return nil
	}
	if !core.EmailMatchesRole(up.Email, origUsr.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: errEmailRoleMismatch.Error()})
	}
	up.Email = InstitutionalEmail(up.Email)
	return svc.CheckUniqueness(ctx, up.Email, origUsr)
}

type ForgotPassword struct {
	Email        string `json:"email" validate:"required,email"`
	SecurityCode string `json:"securityCode" validate:"required"`
}

func (fp *ForgotPassword) Validate(validate *validator.Validate) error {
	fp.Email = core.CleanString(fp.Email, true /* lower */)
	return validate.Struct(fp)
}

type ResetUserPassword struct {
	Token       string `json:"token" validate:"required"`
	UID         string `json:"uid" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search    string   `query:"search"`
	Roles     []string `query:"role"`
	ExcludeID string   `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.ExcludeID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether usr satisfies the filter. Used by repositories that filter in memory.
func (qf *QueryFilter) Match(usr User) bool {
	if qf.ExcludeID != "" && usr.ID == qf.ExcludeID {
		return false
	}
	if len(qf.Roles) > 0 && !core.HasRole(qf.Roles, usr.Role) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) || strings.Contains(usr.Email, s)) {
			return false
		}
	}
	return true
}
