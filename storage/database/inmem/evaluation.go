package inmemdb

import (
	"context"

	"github.com/nyxmentor/portal/core/evaluation"
)

type evaluationRepository struct {
	db *DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func copyEvaluation(ev evaluation.Evaluation) *evaluation.Evaluation {
	ev.QuestionIDs = copyStrings(ev.QuestionIDs)
	return &ev
}

func (repo *evaluationRepository) GetEvaluation(_ context.Context, userID string) (evaluation.Evaluation, error) {
	tbl := repo.db.evaluation
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	if ev, ok := tbl.table[userID]; ok {
		return *copyEvaluation(*ev), nil
	}
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (repo *evaluationRepository) CreateEvaluation(_ context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	tbl := repo.db.evaluation
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	if _, ok := tbl.table[ev.UserID]; ok {
		return evaluation.Evaluation{}, evaluation.ErrExists
	}
	ev.ID = newID()
	tbl.table[ev.UserID] = copyEvaluation(ev)
	return ev, nil
}

// UpdateEvaluation is a compare-and-swap on status and attempts under the table lock.
func (repo *evaluationRepository) UpdateEvaluation(
	_ context.Context,
	ev evaluation.Evaluation,
	prevStatus evaluation.Status,
	prevAttempts int,
) (evaluation.Evaluation, error) {
	tbl := repo.db.evaluation
	tbl.mutex.Lock()
	defer tbl.mutex.Unlock()

	stored, ok := tbl.table[ev.UserID]
	if !ok || stored.ID != ev.ID || stored.Status != prevStatus || stored.Attempts != prevAttempts {
		return evaluation.Evaluation{}, evaluation.ErrConflict
	}
	tbl.table[ev.UserID] = copyEvaluation(ev)
	return ev, nil
}

func (repo *evaluationRepository) ArchiveEvaluation(_ context.Context, ev evaluation.Evaluation, rec evaluation.ApprovalRecord) error {
	db := repo.db
	db.evaluation.mutex.Lock()
	defer db.evaluation.mutex.Unlock()
	db.approval.mutex.Lock()
	defer db.approval.mutex.Unlock()

	stored, ok := db.evaluation.table[ev.UserID]
	if !ok || stored.ID != ev.ID || stored.Status != evaluation.StatusApproved {
		return evaluation.ErrConflict
	}
	rec.ID = newID()
	db.approval.table[rec.ID] = &rec
	delete(db.evaluation.table, ev.UserID)
	return nil
}

func (repo *evaluationRepository) HasApproval(_ context.Context, userID string) (bool, error) {
	tbl := repo.db.approval
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	for _, rec := range tbl.table {
		if rec.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *evaluationRepository) CountOutstanding(context.Context) (int, error) {
	tbl := repo.db.evaluation
	tbl.mutex.RLock()
	defer tbl.mutex.RUnlock()

	var n int
	for _, ev := range tbl.table {
		if ev.Status != evaluation.StatusApproved {
			n++
		}
	}
	return n, nil
}
