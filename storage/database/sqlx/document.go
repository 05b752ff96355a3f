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
	"github.com/trezcool/quizforge/core/document"
)

var documentColumns = []string{"id", "owner_id", "class_id", "name", "bucket", "path", "content_type", "size", "created_at"}

type documentRow struct {
	ID          string         `db:"id"`
	OwnerID     string         `db:"owner_id"`
	ClassID     sql.NullString `db:"class_id"`
	Name        string         `db:"name"`
	Bucket      string         `db:"bucket"`
	Path        string         `db:"path"`
	ContentType string         `db:"content_type"`
	Size        int64          `db:"size"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (row documentRow) document() document.Document {
	return document.Document{
		ID:          row.ID,
		OwnerID:     row.OwnerID,
		ClassID:     row.ClassID.String,
		Name:        row.Name,
		Bucket:      row.Bucket,
		Path:        row.Path,
		ContentType: row.ContentType,
		Size:        row.Size,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type documentRepository struct {
	db *sqlx.DB
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(db *sqlx.DB) document.Repository {
	return &documentRepository{db: db}
}

func (repo documentRepository) CreateDocument(ctx context.Context, doc document.Document) (document.Document, error) {
	doc.ID = uuid.New().String()
	_, err := execAffected(ctx, repo.db, psql.Insert("documents").
		Columns(documentColumns...).
		Values(doc.ID, doc.OwnerID, nullString(doc.ClassID), doc.Name, doc.Bucket, doc.Path, doc.ContentType,
			doc.Size, doc.CreatedAt.UTC()))
	if err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	return doc, nil
}

func (repo documentRepository) applyFilter(b sq.SelectBuilder, filter *document.QueryFilter) (sq.SelectBuilder, bool) {
	if filter == nil {
		return b, true
	}
	for _, id := range []string{filter.ClassID, filter.OwnerID, filter.StudentID} {
		if id != "" && !isUUID(id) {
			return b, false
		}
	}
	if filter.Search != "" {
		b = b.Where(searchAny(filter.Search, "name"))
	}
	if filter.ClassID != "" {
		b = b.Where(sq.Eq{"class_id": filter.ClassID})
	}
	if filter.OwnerID != "" {
		b = b.Where(sq.Eq{"owner_id": filter.OwnerID})
	}
	if filter.StudentID != "" {
		b = b.Where("class_id IN (SELECT class_id FROM enrollments WHERE student_id = ?)", filter.StudentID)
	}
	return b, true
}

func (repo documentRepository) QueryDocuments(ctx context.Context, filter *document.QueryFilter, ordering []core.DBOrdering) ([]document.Document, error) {
	b, ok := repo.applyFilter(psql.Select(documentColumns...).From("documents"), filter)
	if !ok {
		return []document.Document{}, nil
	}
	b = b.OrderBy(orderByClauses(ordering, "created_at DESC")...)

	var rows []documentRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}
	docs := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.document())
	}
	return docs, nil
}

func (repo documentRepository) CountDocuments(ctx context.Context, filter *document.QueryFilter) (int, error) {
	b, ok := repo.applyFilter(psql.Select("COUNT(*)").From("documents"), filter)
	if !ok {
		return 0, nil
	}
	n, err := count(ctx, repo.db, b)
	return n, errors.Wrap(err, "counting documents")
}

func (repo documentRepository) GetDocument(ctx context.Context, id string) (document.Document, error) {
	if !isUUID(id) {
		return document.Document{}, document.ErrNotFound
	}
	var row documentRow
	if err := getOne(ctx, repo.db, &row, psql.Select(documentColumns...).From("documents").Where(sq.Eq{"id": id})); err != nil {
		if err == sql.ErrNoRows {
			return document.Document{}, document.ErrNotFound
		}
		return document.Document{}, errors.Wrap(err, "finding document")
	}
	return row.document(), nil
}

func (repo documentRepository) DeleteDocument(ctx context.Context, id string) error {
	if !isUUID(id) {
		return document.ErrNotFound
	}
	n, err := execAffected(ctx, repo.db, psql.Delete("documents").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}
