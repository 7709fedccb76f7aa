package pgrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/progress"
)

const progressColumns = `id, user_id AS "userid", training_id AS "trainingid", type, status, progress, completed,
	created_at AS "createdat", updated_at AS "updatedat"`

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil)

// NewProgressRepository maps progress.Progress directly: sqlx matches the lowercased field names
// against the aliased columns.
func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) QueryProgress(ctx context.Context, userID string) ([]progress.Progress, error) {
	records := make([]progress.Progress, 0)
	err := repo.db.SelectContext(ctx, &records,
		`SELECT `+progressColumns+` FROM progress WHERE user_id::text = $1 ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	for i := range records {
		records[i].CreatedAt = records[i].CreatedAt.UTC()
		records[i].UpdatedAt = records[i].UpdatedAt.UTC()
	}
	return records, nil
}

func (repo *progressRepository) GetProgress(ctx context.Context, userID, trainingID string) (progress.Progress, error) {
	var p progress.Progress
	err := repo.db.GetContext(ctx, &p,
		`SELECT `+progressColumns+` FROM progress WHERE user_id::text = $1 AND training_id::text = $2`,
		userID, trainingID,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return progress.Progress{}, progress.ErrNotFound
		}
		return progress.Progress{}, errors.Wrap(err, "getting progress")
	}
	p.CreatedAt, p.UpdatedAt = p.CreatedAt.UTC(), p.UpdatedAt.UTC()
	return p, nil
}

func (repo *progressRepository) CreateProgress(ctx context.Context, p progress.Progress) (progress.Progress, error) {
	p.ID = newID()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO progress (id, user_id, training_id, type, status, progress, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.TrainingID, p.Type, p.Status, p.Progress, p.Completed, p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return progress.Progress{}, progress.ErrExists
		}
		return progress.Progress{}, errors.Wrap(err, "inserting progress")
	}
	return p, nil
}

func (repo *progressRepository) UpdateProgress(ctx context.Context, p progress.Progress) (progress.Progress, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE progress SET type = $2, status = $3, progress = $4, completed = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.Type, p.Status, p.Progress, p.Completed, p.UpdatedAt.UTC(),
	)
	if err != nil {
		return progress.Progress{}, errors.Wrap(err, "updating progress")
	}
	if err = rowsAffected(res, progress.ErrNotFound); err != nil {
		return progress.Progress{}, err
	}
	return p, nil
}
