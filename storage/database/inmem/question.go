package inmemdb

import (
	"context"

	"github.com/nyxmentor/portal/core/question"
)

type questionRepository struct {
	db *questionTable
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *DB) question.Repository {
	return &questionRepository{db: db.question}
}

func copyQuestion(q question.Question) question.Question {
	q.Roles = copyStrings(q.Roles)
	if q.Options != nil {
		q.Options = append([]question.Option(nil), q.Options...)
	}
	if q.CorrectAnswer != nil {
		b := *q.CorrectAnswer
		q.CorrectAnswer = &b
	}
	return q
}

func (repo *questionRepository) QueryQuestions(_ context.Context, role string) ([]question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	qs := make([]question.Question, 0)
	for _, id := range repo.db.order {
		if q := repo.db.table[id]; q.IsFor(role) {
			qs = append(qs, copyQuestion(*q))
		}
	}
	return qs, nil
}

func (repo *questionRepository) GetQuestionsByID(_ context.Context, ids ...string) ([]question.Question, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	qs := make([]question.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := repo.db.table[id]; ok {
			qs = append(qs, copyQuestion(*q))
		}
	}
	return qs, nil
}

func (repo *questionRepository) ReplaceQuestions(_ context.Context, qs []question.Question) ([]question.Question, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.table = make(map[string]*question.Question, len(qs))
	repo.db.order = make([]string, 0, len(qs))
	out := make([]question.Question, len(qs))
	for i, q := range qs {
		q = copyQuestion(q)
		q.ID = newID()
		for k := range q.Options {
			q.Options[k].ID = newID()
		}
		stored := q
		repo.db.table[q.ID] = &stored
		repo.db.order = append(repo.db.order, q.ID)
		out[i] = copyQuestion(q)
	}
	return out, nil
}
