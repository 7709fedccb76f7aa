package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/evaluation"
)

type evaluationRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	QuestionIDs pq.StringArray `db:"question_ids"`
	Score       float64        `db:"score"`
	Status      string         `db:"status"`
	Attempts    int            `db:"attempts"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newEvaluationRow(ev evaluation.Evaluation) evaluationRow {
	return evaluationRow{
		ID:          ev.ID,
		UserID:      ev.UserID,
		QuestionIDs: append(pq.StringArray{}, ev.QuestionIDs...),
		Score:       ev.Score,
		Status:      string(ev.Status),
		Attempts:    ev.Attempts,
		CreatedAt:   ev.CreatedAt.UTC(),
		UpdatedAt:   ev.UpdatedAt.UTC(),
	}
}

func (r evaluationRow) evaluation() evaluation.Evaluation {
	return evaluation.Evaluation{
		ID:          r.ID,
		UserID:      r.UserID,
		QuestionIDs: []string(r.QuestionIDs),
		Score:       r.Score,
		Status:      evaluation.Status(r.Status),
		Attempts:    r.Attempts,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type evaluationRepository struct {
	db *sqlx.DB
}

var _ evaluation.Repository = (*evaluationRepository)(nil)

func NewEvaluationRepository(db *sqlx.DB) evaluation.Repository {
	return &evaluationRepository{db: db}
}

func (repo *evaluationRepository) GetEvaluation(ctx context.Context, userID string) (evaluation.Evaluation, error) {
	var row evaluationRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM evaluations WHERE user_id::text = $1`, userID); err != nil {
		if err == sql.ErrNoRows {
			return evaluation.Evaluation{}, evaluation.ErrNotFound
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "getting evaluation")
	}
	return row.evaluation(), nil
}

func (repo *evaluationRepository) CreateEvaluation(ctx context.Context, ev evaluation.Evaluation) (evaluation.Evaluation, error) {
	ev.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO evaluations (id, user_id, question_ids, score, status, attempts, created_at, updated_at)
		VALUES (:id, :user_id, :question_ids, :score, :status, :attempts, :created_at, :updated_at)`,
		newEvaluationRow(ev),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return evaluation.Evaluation{}, evaluation.ErrExists
		}
		return evaluation.Evaluation{}, errors.Wrap(err, "inserting evaluation")
	}
	return ev, nil
}

// UpdateEvaluation is a compare-and-swap: the WHERE clause only matches the record as it was read.
func (repo *evaluationRepository) UpdateEvaluation(
	ctx context.Context,
	ev evaluation.Evaluation,
	prevStatus evaluation.Status,
	prevAttempts int,
) (evaluation.Evaluation, error) {
	row := newEvaluationRow(ev)
	res, err := repo.db.ExecContext(ctx, `
		UPDATE evaluations
		SET question_ids = $4, score = $5, status = $6, attempts = $7, updated_at = $8
		WHERE id = $1 AND status = $2 AND attempts = $3`,
		row.ID, string(prevStatus), prevAttempts,
		row.QuestionIDs, row.Score, row.Status, row.Attempts, row.UpdatedAt,
	)
	if err != nil {
		return evaluation.Evaluation{}, errors.Wrap(err, "updating evaluation")
	}
	if err = rowsAffected(res, evaluation.ErrConflict); err != nil {
		return evaluation.Evaluation{}, err
	}
	return ev, nil
}

func (repo *evaluationRepository) ArchiveEvaluation(ctx context.Context, ev evaluation.Evaluation, rec evaluation.ApprovalRecord) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM evaluations WHERE id = $1 AND status = $2`, ev.ID, string(evaluation.StatusApproved),
	)
	if err != nil {
		return errors.Wrap(err, "deleting evaluation")
	}
	if err = rowsAffected(res, evaluation.ErrConflict); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO evaluation_approvals (id, user_id, evaluation_id, score, attempts, approved_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newID(), rec.UserID, rec.EvaluationID, rec.Score, rec.Attempts, rec.ApprovedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "archiving approval")
	}
	return errors.Wrap(tx.Commit(), "committing archive")
}

func (repo *evaluationRepository) HasApproval(ctx context.Context, userID string) (bool, error) {
	var found bool
	err := repo.db.GetContext(ctx, &found,
		`SELECT EXISTS (SELECT 1 FROM evaluation_approvals WHERE user_id::text = $1)`, userID,
	)
	if err != nil {
		return false, errors.Wrap(err, "checking approvals")
	}
	return found, nil
}

func (repo *evaluationRepository) CountOutstanding(ctx context.Context) (int, error) {
	var n int
	err := repo.db.GetContext(ctx, &n,
		`SELECT count(*) FROM evaluations WHERE status <> $1`, string(evaluation.StatusApproved),
	)
	if err != nil {
		return 0, errors.Wrap(err, "counting outstanding evaluations")
	}
	return n, nil
}
