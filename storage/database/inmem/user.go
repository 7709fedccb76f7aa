package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.user.table))
	for _, u := range repo.db.user.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	for _, usr := range repo.query() {
		if strings.EqualFold(usr.Email, email) && !isExcluded(usr, excludedUsers) {
			return user.ErrUserExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.user.mutex.Lock()
	defer repo.db.user.mutex.Unlock()

	for _, u := range repo.db.user.table {
		if u.Email == usr.Email {
			return user.User{}, user.ErrUserExists
		}
	}
	usr.ID = newID()
	repo.db.user.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.user.table))
	for _, usr := range repo.query() {
		if filter == nil || filter.Match(usr) {
			users = append(users, usr)
		}
	}
	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.user.mutex.RLock()
	defer repo.db.user.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.user.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.user.table {
		if filter.Email != "" && usr.Email == filter.Email {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.user.mutex.Lock()
	defer repo.db.user.mutex.Unlock()

	if _, ok := repo.db.user.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.user.table[usr.ID] = &usr
	return usr, nil
}

// DeleteUsersByID removes the users along with their progress, evaluation and approvals.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...string) (int, error) {
	db := repo.db
	db.user.mutex.Lock()
	defer db.user.mutex.Unlock()
	db.progress.mutex.Lock()
	defer db.progress.mutex.Unlock()
	db.evaluation.mutex.Lock()
	defer db.evaluation.mutex.Unlock()
	db.approval.mutex.Lock()
	defer db.approval.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := db.user.table[id]; !ok {
			continue
		}
		delete(db.user.table, id)
		n++

		for pid, p := range db.progress.table {
			if p.UserID == id {
				delete(db.progress.table, pid)
			}
		}
		delete(db.evaluation.table, id)
		for aid, a := range db.approval.table {
			if a.UserID == id {
				delete(db.approval.table, aid)
			}
		}
	}
	return n, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, excl := range excludedUsers {
		if excl.ID == usr.ID {
			return true
		}
	}
	return false
}

// sortUsers applies orderings on name, email, role & createdAt. Defaults to name ascending.
func sortUsers(users []user.User, ordering []core.DBOrdering) {
	ordering = core.FilterOrderings(ordering, "name", "email", "role", "createdAt")
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}

	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return users[i].ID < users[j].ID
	})
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "role":
		return strings.Compare(a.Role, b.Role)
	case "createdAt":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}
