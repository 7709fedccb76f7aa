package pgrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/faq"
)

type faqRow struct {
	ID        string         `db:"id"`
	Question  string         `db:"question"`
	Answer    string         `db:"answer"`
	Roles     pq.StringArray `db:"roles"`
	RolesKey  string         `db:"roles_key"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func newFAQRow(f faq.FAQ) faqRow {
	return faqRow{
		ID:        f.ID,
		Question:  f.Question,
		Answer:    f.Answer,
		Roles:     append(pq.StringArray{}, f.Roles...),
		RolesKey:  faq.RolesKey(f.Roles),
		CreatedAt: f.CreatedAt.UTC(),
		UpdatedAt: f.UpdatedAt.UTC(),
	}
}

func (r faqRow) faq() faq.FAQ {
	return faq.FAQ{
		ID:        r.ID,
		Question:  r.Question,
		Answer:    r.Answer,
		Roles:     []string(r.Roles),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type faqRepository struct {
	db *sqlx.DB
}

var _ faq.Repository = (*faqRepository)(nil)

func NewFAQRepository(db *sqlx.DB) faq.Repository {
	return &faqRepository{db: db}
}

func (repo *faqRepository) CheckFAQUniqueness(ctx context.Context, question string, roles []string, excluded ...faq.FAQ) error {
	excl := make([]string, 0, len(excluded))
	for _, f := range excluded {
		excl = append(excl, f.ID)
	}
	var found bool
	err := repo.db.GetContext(ctx, &found, `
		SELECT EXISTS (
			SELECT 1 FROM faqs
			WHERE lower(question) = lower($1) AND roles_key = $2 AND NOT (id::text = ANY($3))
		)`,
		question, faq.RolesKey(roles), pq.Array(excl),
	)
	if err != nil {
		return errors.Wrap(err, "checking faq uniqueness")
	}
	if found {
		return faq.ErrFAQExists
	}
	return nil
}

func (repo *faqRepository) CreateFAQ(ctx context.Context, f faq.FAQ) (faq.FAQ, error) {
	f.ID = newID()
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO faqs (id, question, answer, roles, roles_key, created_at, updated_at)
		VALUES (:id, :question, :answer, :roles, :roles_key, :created_at, :updated_at)`,
		newFAQRow(f),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return faq.FAQ{}, faq.ErrFAQExists
		}
		return faq.FAQ{}, errors.Wrap(err, "inserting faq")
	}
	return f, nil
}

func (repo *faqRepository) QueryFAQs(ctx context.Context, role string) ([]faq.FAQ, error) {
	q := `SELECT * FROM faqs`
	var args []interface{}
	if role != "" {
		q += ` WHERE $1 = ANY(roles)`
		args = append(args, role)
	}
	q += ` ORDER BY created_at, id`

	var rows []faqRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying faqs")
	}
	faqs := make([]faq.FAQ, 0, len(rows))
	for _, r := range rows {
		faqs = append(faqs, r.faq())
	}
	return faqs, nil
}

func (repo *faqRepository) GetFAQ(ctx context.Context, id string) (faq.FAQ, error) {
	var row faqRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM faqs WHERE id::text = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return faq.FAQ{}, faq.ErrNotFound
		}
		return faq.FAQ{}, errors.Wrap(err, "getting faq")
	}
	return row.faq(), nil
}

func (repo *faqRepository) UpdateFAQ(ctx context.Context, f faq.FAQ) (faq.FAQ, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE faqs SET question = :question, answer = :answer, roles = :roles, roles_key = :roles_key,
			updated_at = :updated_at
		WHERE id = :id`,
		newFAQRow(f),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return faq.FAQ{}, faq.ErrFAQExists
		}
		return faq.FAQ{}, errors.Wrap(err, "updating faq")
	}
	if err = rowsAffected(res, faq.ErrNotFound); err != nil {
		return faq.FAQ{}, err
	}
	return f, nil
}

func (repo *faqRepository) DeleteFAQ(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM faqs WHERE id::text = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting faq")
	}
	return rowsAffected(res, faq.ErrNotFound)
}
