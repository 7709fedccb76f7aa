package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/nyxmentor/portal/core/faq"
)

type faqRepository struct {
	db *faqTable
}

var _ faq.Repository = (*faqRepository)(nil)

func NewFAQRepository(db *DB) faq.Repository {
	return &faqRepository{db: db.faq}
}

func (repo *faqRepository) CheckFAQUniqueness(_ context.Context, q string, roles []string, excluded ...faq.FAQ) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	key := faq.RolesKey(roles)
	for _, f := range repo.db.table {
		if strings.EqualFold(f.Question, q) && faq.RolesKey(f.Roles) == key && !isFAQExcluded(*f, excluded) {
			return faq.ErrFAQExists
		}
	}
	return nil
}

func (repo *faqRepository) CreateFAQ(_ context.Context, f faq.FAQ) (faq.FAQ, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f.ID = newID()
	f.Roles = copyStrings(f.Roles)
	repo.db.table[f.ID] = &f
	return f, nil
}

func (repo *faqRepository) QueryFAQs(_ context.Context, role string) ([]faq.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	faqs := make([]faq.FAQ, 0, len(repo.db.table))
	for _, f := range repo.db.table {
		if role == "" || f.IsFor(role) {
			faqs = append(faqs, *f)
		}
	}
	sort.Slice(faqs, func(i, j int) bool {
		if !faqs[i].CreatedAt.Equal(faqs[j].CreatedAt) {
			return faqs[i].CreatedAt.Before(faqs[j].CreatedAt)
		}
		return faqs[i].ID < faqs[j].ID
	})
	return faqs, nil
}

func (repo *faqRepository) GetFAQ(_ context.Context, id string) (faq.FAQ, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.table[id]; ok {
		return *f, nil
	}
	return faq.FAQ{}, faq.ErrNotFound
}

func (repo *faqRepository) UpdateFAQ(_ context.Context, f faq.FAQ) (faq.FAQ, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[f.ID]; !ok {
		return faq.FAQ{}, faq.ErrNotFound
	}
	f.Roles = copyStrings(f.Roles)
	repo.db.table[f.ID] = &f
	return f, nil
}

func (repo *faqRepository) DeleteFAQ(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return faq.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func isFAQExcluded(f faq.FAQ, excluded []faq.FAQ) bool {
	for _, excl := range excluded {
		if excl.ID == f.ID {
			return true
		}
	}
	return false
}
