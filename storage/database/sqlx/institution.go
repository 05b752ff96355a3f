package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/institution"
)

type institutionRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (row institutionRow) institution() institution.Institution {
	return institution.Institution{ID: row.ID, Name: row.Name, CreatedAt: row.CreatedAt.UTC()}
}

type institutionRepository struct {
	db *sqlx.DB
}

var _ institution.Repository = (*institutionRepository)(nil) // interface compliance check

func NewInstitutionRepository(db *sqlx.DB) institution.Repository {
	return &institutionRepository{db: db}
}

func (repo institutionRepository) CheckNameUniqueness(ctx context.Context, name string) error {
	n, err := count(ctx, repo.db, psql.Select("COUNT(*)").From("institutions").Where("lower(name) = lower(?)", name))
	if err != nil {
		return errors.Wrap(err, "checking institution uniqueness")
	}
	if n > 0 {
		return institution.ErrNameExists
	}
	return nil
}

func (repo institutionRepository) CreateInstitution(ctx context.Context, inst institution.Institution) (institution.Institution, error) {
	inst.ID = uuid.New().String()
	inst.CreatedAt = inst.CreatedAt.UTC()
	_, err := execAffected(ctx, repo.db, psql.Insert("institutions").
		Columns("id", "name", "created_at").
		Values(inst.ID, inst.Name, inst.CreatedAt))
	if err != nil {
		if _, ok := pqViolation(err, pqUniqueViolation); ok {
			return institution.Institution{}, institution.ErrNameExists
		}
		return institution.Institution{}, errors.Wrap(err, "inserting institution")
	}
	return inst, nil
}

func (repo institutionRepository) QueryInstitutions(ctx context.Context, filter *institution.QueryFilter, ordering []core.DBOrdering) ([]institution.Institution, error) {
	b := psql.Select("id", "name", "created_at").From("institutions")
	if filter != nil && filter.Search != "" {
		b = b.Where(searchAny(filter.Search, "name"))
	}
	b = b.OrderBy(orderByClauses(ordering, "name ASC")...)

	var rows []institutionRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying institutions")
	}
	insts := make([]institution.Institution, 0, len(rows))
	for _, row := range rows {
		insts = append(insts, row.institution())
	}
	return insts, nil
}

func (repo institutionRepository) GetInstitution(ctx context.Context, id string) (institution.Institution, error) {
	if !isUUID(id) {
		return institution.Institution{}, institution.ErrNotFound
	}
	var row institutionRow
	err := getOne(ctx, repo.db, &row, psql.Select("id", "name", "created_at").From("institutions").Where(sq.Eq{"id": id}))
	if err != nil {
		if err == sql.ErrNoRows {
			return institution.Institution{}, institution.ErrNotFound
		}
		return institution.Institution{}, errors.Wrap(err, "finding institution")
	}
	return row.institution(), nil
}
