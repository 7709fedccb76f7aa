package inmemdb

import (
	"context"
	"sort"

	"github.com/nyxmentor/portal/core/progress"
)

type progressRepository struct {
	db *progressTable
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func (repo *progressRepository) QueryProgress(_ context.Context, userID string) ([]progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]progress.Progress, 0)
	for _, p := range repo.db.table {
		if p.UserID == userID {
			records = append(records, *p)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records, nil
}

func (repo *progressRepository) GetProgress(_ context.Context, userID, trainingID string) (progress.Progress, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.table {
		if p.UserID == userID && p.TrainingID == trainingID {
			return *p, nil
		}
	}
	return progress.Progress{}, progress.ErrNotFound
}

func (repo *progressRepository) CreateProgress(_ context.Context, p progress.Progress) (progress.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if existing.UserID == p.UserID && existing.TrainingID == p.TrainingID {
			return progress.Progress{}, progress.ErrExists
		}
	}
	p.ID = newID()
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *progressRepository) UpdateProgress(_ context.Context, p progress.Progress) (progress.Progress, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[p.ID]; !ok {
		return progress.Progress{}, progress.ErrNotFound
	}
	repo.db.table[p.ID] = &p
	return p, nil
}
