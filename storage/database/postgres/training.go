package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/training"
)

type trainingRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	DocumentURL  string         `db:"document_url"`
	DocumentName string         `db:"document_name"`
	VideoURL     string         `db:"video_url"`
	VideoName    string         `db:"video_name"`
	Roles        pq.StringArray `db:"roles"`
	Section      string         `db:"section"`
	Module       string         `db:"module"`
	Submodule    string         `db:"submodule"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func newTrainingRow(t training.Training) trainingRow {
	return trainingRow{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		DocumentURL:  t.Document.FileURL,
		DocumentName: t.Document.OriginalFileName,
		VideoURL:     t.Video.FileURL,
		VideoName:    t.Video.OriginalFileName,
		Roles:        t.Roles,
		Section:      t.Section,
		Module:       t.Module,
		Submodule:    t.Submodule,
		CreatedAt:    t.CreatedAt.UTC(),
		UpdatedAt:    t.UpdatedAt.UTC(),
	}
}

func (r trainingRow) training() training.Training {
	return training.Training{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Document:    training.Material{FileURL: r.DocumentURL, OriginalFileName: r.DocumentName},
		Video:       training.Material{FileURL: r.VideoURL, OriginalFileName: r.VideoName},
		Roles:       []string(r.Roles),
		Section:     r.Section,
		Module:      r.Module,
		Submodule:   r.Submodule,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type trainingRepository struct {
	db *sqlx.DB
}

var _ training.Repository = (*trainingRepository)(nil)

func NewTrainingRepository(db *sqlx.DB) training.Repository {
	return &trainingRepository{db: db}
}

func (repo *trainingRepository) CheckTrainingUniqueness(ctx context.Context, title, section, module string, excluded ...training.Training) error {
	excl := make([]string, 0, len(excluded))
	for _, t := range excluded {
		excl = append(excl, t.ID)
	}
	var found bool
	err := repo.db.GetContext(ctx, &found, `
		SELECT EXISTS (
			SELECT 1 FROM trainings
			WHERE lower(title) = lower($1) AND section = $2 AND module = $3 AND NOT (id::text = ANY($4))
		)`,
		title, section, module, pq.Array(excl),
	)
	if err != nil {
		return errors.Wrap(err, "checking training uniqueness")
	}
	if found {
		return training.ErrTrainingExists
	}
	return nil
}

func (repo *trainingRepository) CreateTraining(ctx context.Context, t training.Training) (training.Training, error) {
	t.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO trainings (
			id, title, description, document_url, document_name, video_url, video_name,
			roles, section, module, submodule, created_at, updated_at
		) VALUES (
			:id, :title, :description, :document_url, :document_name, :video_url, :video_name,
			:roles, :section, :module, :submodule, :created_at, :updated_at
		)`,
		newTrainingRow(t),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return training.Training{}, training.ErrTrainingExists
		}
		return training.Training{}, errors.Wrap(err, "inserting training")
	}
	return t, nil
}

func (repo *trainingRepository) QueryTrainings(ctx context.Context, filter training.QueryFilter) ([]training.Training, error) {
	q := `SELECT * FROM trainings`
	var args []interface{}
	if filter.Role != "" {
		q += ` WHERE $1 = ANY(roles)`
		args = append(args, filter.Role)
	}
	q += ` ORDER BY section, module, title, id`

	var rows []trainingRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying trainings")
	}
	trainings := make([]training.Training, 0, len(rows))
	for _, r := range rows {
		trainings = append(trainings, r.training())
	}
	return trainings, nil
}

func (repo *trainingRepository) GetTraining(ctx context.Context, id string) (training.Training, error) {
	var row trainingRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM trainings WHERE id::text = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return training.Training{}, training.ErrNotFound
		}
		return training.Training{}, errors.Wrap(err, "getting training")
	}
	return row.training(), nil
}

func (repo *trainingRepository) UpdateTraining(ctx context.Context, t training.Training) (training.Training, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE trainings SET
			title = :title, description = :description,
			document_url = :document_url, document_name = :document_name,
			video_url = :video_url, video_name = :video_name,
			roles = :roles, section = :section, module = :module, submodule = :submodule,
			updated_at = :updated_at
		WHERE id = :id`,
		newTrainingRow(t),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return training.Training{}, training.ErrTrainingExists
		}
		return training.Training{}, errors.Wrap(err, "updating training")
	}
	if err = rowsAffected(res, training.ErrNotFound); err != nil {
		return training.Training{}, err
	}
	return t, nil
}

func (repo *trainingRepository) DeleteTraining(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM trainings WHERE id::text = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting training")
	}
	return rowsAffected(res, training.ErrNotFound)
}
