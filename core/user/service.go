package user

import (
	"context"
	"errors"
	"time"

	"github.com/nyxmentor/portal/core"
)

var (
	// errors
	ErrNotFound            = errors.New("user not found")
	ErrUserExists          = errors.New("a user with this email already exists")
	ErrInvalidSecurityCode = errors.New("invalid security code")
	ErrInvalidResetToken   = errors.New("invalid or expired token")

	errEmailNoRole       = errors.New("email domain does not match any role")
	errEmailRoleMismatch = errors.New("email does not match the assigned role")
	errSamePassword      = errors.New("the new password cannot be the same as the current one")
	errSameSecurityCode  = errors.New("the new security code cannot be the same as the current one")
)

type (
	// GetFilter selects a single user. Only the first set field is used.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUsersByID deletes users along with their progress and evaluations.
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		// RequestPasswordReset checks the security code and returns an encoded UID along with a reset token.
		RequestPasswordReset(ctx context.Context, fp ForgotPassword) (uid, token string, err error)
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
	}

	service struct {
		repo   Repository
		tokens tokenGenerator
		now    func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{
		repo:   repo,
		tokens: newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		now:    time.Now,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrUserExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := svc.now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	if err := usr.SetSecurityCode(nu.SecurityCode); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: InstitutionalEmail(email)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Role = uu.Role
	usr.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	usr.Name = up.Name
	usr.Email = up.Email
	if up.NewPassword != "" {
		if err := usr.SetPassword(up.NewPassword); err != nil {
			return User{}, err
		}
	}
	if up.NewSecurityCode != "" {
		if err := usr.SetSecurityCode(up.NewSecurityCode); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = svc.now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	n, err := svc.repo.DeleteUsersByID(ctx, ids...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, fp ForgotPassword) (string, string, error) {
	usr, err := svc.GetByEmail(ctx, fp.Email)
	if err != nil {
		return "", "", err
	}
	if err = usr.CheckSecurityCode(fp.SecurityCode); err != nil {
		return "", "", ErrInvalidSecurityCode
	}
	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return "", "", err
	}
	return EncodeUID(usr), token, nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := DecodeUID(rp.UID)
	if err != nil {
		return ErrInvalidResetToken
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalidResetToken
		}
		return err
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return ErrInvalidResetToken
		}
		return err
	}
	if err = usr.SetPassword(rp.NewPassword); err != nil {
		return err
	}
	usr.UpdatedAt = svc.now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
