package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/nyxmentor/portal/core/training"
)

type trainingRepository struct {
	db *trainingTable
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db *DB) training.Repository {
	return &trainingRepository{db: db.training}
}

func (repo *trainingRepository) CheckTrainingUniqueness(_ context.Context, title, section, module string, excluded ...training.Training) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, t := range repo.db.table {
		if isTrainingExcluded(*t, excluded) {
			continue
		}
		if strings.EqualFold(t.Title, title) && t.Section == section && t.Module == module {
			return training.ErrTrainingExists
		}
	}
	return nil
}

func (repo *trainingRepository) CreateTraining(_ context.Context, t training.Training) (training.Training, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = newID()
	t.Roles = copyStrings(t.Roles)
	repo.db.table[t.ID] = &t
	return t, nil
}

// QueryTrainings returns trainings ordered by section, module, then title.
func (repo *trainingRepository) QueryTrainings(_ context.Context, filter training.QueryFilter) ([]training.Training, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	trainings := make([]training.Training, 0, len(repo.db.table))
	for _, t := range repo.db.table {
		if filter.Role != "" && !t.IsFor(filter.Role) {
			continue
		}
		trainings = append(trainings, *t)
	}
	sort.Slice(trainings, func(i, j int) bool {
		a, b := trainings[i], trainings[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	return trainings, nil
}

func (repo *trainingRepository) GetTraining(_ context.Context, id string) (training.Training, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.table[id]; ok {
		return *t, nil
	}
	return training.Training{}, training.ErrNotFound
}

func (repo *trainingRepository) UpdateTraining(_ context.Context, t training.Training) (training.Training, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[t.ID]; !ok {
		return training.Training{}, training.ErrNotFound
	}
	t.Roles = copyStrings(t.Roles)
	repo.db.table[t.ID] = &t
	return t, nil
}

func (repo *trainingRepository) DeleteTraining(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return training.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}

func isTrainingExcluded(t training.Training, excluded []training.Training) bool {
	for _, excl := range excluded {
		if excl.ID == t.ID {
			return true
		}
	}
	return false
}
