package pgrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/user"
)

// userColumns maps API ordering fields to columns.
var userColumns = map[string]string{
	"name":      "lower(name)",
	"email":     "email",
	"role":      "role",
	"createdAt": "created_at",
}

type userRow struct {
	ID               string       `db:"id"`
	Name             string       `db:"name"`
	Email            string       `db:"email"`
	Role             string       `db:"role"`
	PasswordHash     []byte       `db:"password_hash"`
	SecurityCodeHash []byte       `db:"security_code_hash"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
	LastLogin        sql.NullTime `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:               r.ID,
		Name:             r.Name,
		Email:            r.Email,
		Role:             r.Role,
		PasswordHash:     r.PasswordHash,
		SecurityCodeHash: r.SecurityCodeHash,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
		LastLogin:        timeOf(r.LastLogin),
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:               usr.ID,
		Name:             usr.Name,
		Email:            usr.Email,
		Role:             usr.Role,
		PasswordHash:     usr.PasswordHash,
		SecurityCodeHash: usr.SecurityCodeHash,
		CreatedAt:        usr.CreatedAt.UTC(),
		UpdatedAt:        usr.UpdatedAt.UTC(),
		LastLogin:        nullTime(usr.LastLogin),
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	excl := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		excl = append(excl, usr.ID)
	}
	var found bool
	err := repo.db.GetContext(ctx, &found,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND NOT (id::text = ANY($2)))`,
		email, pq.Array(excl),
	)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return user.ErrUserExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO users (id, name, email, role, password_hash, security_code_hash, created_at, updated_at, last_login)
		VALUES (:id, :name, :email, :role, :password_hash, :security_code_hash, :created_at, :updated_at, :last_login)`,
		newUserRow(usr),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
		if len(filter.Roles) > 0 {
			where = append(where, "role = ANY("+arg(pq.Array(filter.Roles))+")")
		}
		if filter.ExcludeID != "" {
			where = append(where, "id::text <> "+arg(filter.ExcludeID))
		}
	}

	q := "SELECT * FROM users"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + userOrderBy(ordering)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func userOrderBy(ordering []core.DBOrdering) string {
	ordering = core.FilterOrderings(ordering, "name", "email", "role", "createdAt")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		clauses = append(clauses, core.DBOrdering{Field: userColumns[ord.Field], Ascending: ord.Ascending}.String())
	}
	return strings.Join(append(clauses, "id ASC"), ", ")
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		row userRow
		err error
	)
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id::text = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM users WHERE email = $1`, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.user(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE users SET
			name = :name, email = :email, role = :role,
			password_hash = :password_hash, security_code_hash = :security_code_hash,
			updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		newUserRow(usr),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = rowsAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// DeleteUsersByID relies on ON DELETE CASCADE for progress, evaluations and approvals.
func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	return int(n), err
}
