package pgrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/question"
)

type questionRow struct {
	ID            string         `db:"id"`
	Position      int64          `db:"position"`
	Text          string         `db:"text"`
	Kind          string         `db:"kind"`
	Options       []byte         `db:"options"`
	CorrectAnswer sql.NullBool   `db:"correct_answer"`
	Roles         pq.StringArray `db:"roles"`
	CreatedAt     time.Time      `db:"created_at"`
}

func (r questionRow) question() (question.Question, error) {
	q := question.Question{
		ID:        r.ID,
		Text:      r.Text,
		Kind:      question.Kind(r.Kind),
		Roles:     []string(r.Roles),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Options, &q.Options); err != nil {
		return question.Question{}, errors.Wrapf(err, "decoding options of question %s", r.ID)
	}
	if len(q.Options) == 0 {
		q.Options = nil
	}
	if r.CorrectAnswer.Valid {
		b := r.CorrectAnswer.Bool
		q.CorrectAnswer = &b
	}
	return q, nil
}

func questionsOf(rows []questionRow) ([]question.Question, error) {
	qs := make([]question.Question, 0, len(rows))
	for _, r := range rows {
		q, err := r.question()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	return qs, nil
}

type questionRepository struct {
	db *sqlx.DB
}

var _ question.Repository = (*questionRepository)(nil)

func NewQuestionRepository(db *sqlx.DB) question.Repository {
	return &questionRepository{db: db}
}

func (repo *questionRepository) QueryQuestions(ctx context.Context, role string) ([]question.Question, error) {
	var rows []questionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM questions WHERE $1 = ANY(roles) ORDER BY position`, role)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	return questionsOf(rows)
}

func (repo *questionRepository) GetQuestionsByID(ctx context.Context, ids ...string) ([]question.Question, error) {
	if len(ids) == 0 {
		return []question.Question{}, nil
	}
	var rows []questionRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM questions WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "getting questions")
	}
	byID := make(map[string]questionRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	ordered := make([]questionRow, 0, len(rows))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			ordered = append(ordered, r)
		}
	}
	return questionsOf(ordered)
}

// ReplaceQuestions swaps the bank inside a single transaction: readers see either bank, never a mix.
func (repo *questionRepository) ReplaceQuestions(ctx context.Context, qs []question.Question) ([]question.Question, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return nil, errors.Wrap(err, "deleting questions")
	}

	out := make([]question.Question, len(qs))
	for i, q := range qs {
		q.ID = newID()
		q.Roles = append([]string(nil), q.Roles...)
		q.Options = append([]question.Option(nil), q.Options...)
		for k := range q.Options {
			q.Options[k].ID = newID()
		}
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, errors.Wrap(err, "encoding options")
		}
		if len(q.Options) == 0 {
			q.Options = nil
			opts = []byte("[]")
		}
		var correct sql.NullBool
		if q.CorrectAnswer != nil {
			correct = sql.NullBool{Bool: *q.CorrectAnswer, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO questions (id, text, kind, options, correct_answer, roles, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			q.ID, q.Text, string(q.Kind), opts, correct, pq.Array(q.Roles), q.CreatedAt.UTC(),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "inserting question %d", i)
		}
		out[i] = q
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing questions")
	}
	return out, nil
}
