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
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/enrollment"
)

var classColumns = []string{"id", "institution_id", "tutor_id", "name", "description", "created_at", "updated_at"}

type classRow struct {
	ID            string         `db:"id"`
	InstitutionID sql.NullString `db:"institution_id"`
	TutorID       string         `db:"tutor_id"`
	Name          string         `db:"name"`
	Description   string         `db:"description"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func (row classRow) class() class.Class {
	return class.Class{
		ID:            row.ID,
		InstitutionID: row.InstitutionID.String,
		TutorID:       row.TutorID,
		Name:          row.Name,
		Description:   row.Description,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

func (repo classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	_, err := execAffected(ctx, repo.db, psql.Insert("classes").
		Columns(classColumns...).
		Values(cls.ID, nullString(cls.InstitutionID), cls.TutorID, cls.Name, cls.Description, cls.CreatedAt.UTC(), cls.UpdatedAt.UTC()))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo classRepository) applyFilter(b sq.SelectBuilder, filter *class.QueryFilter) (sq.SelectBuilder, bool) {
	if filter == nil {
		return b, true
	}
	if filter.Search != "" {
		b = b.Where(searchAny(filter.Search, "name", "description"))
	}
	for _, id := range []string{filter.TutorID, filter.InstitutionID, filter.StudentID} {
		if id != "" && !isUUID(id) {
			return b, false
		}
	}
	if filter.TutorID != "" {
		b = b.Where(sq.Eq{"tutor_id": filter.TutorID})
	}
	if filter.InstitutionID != "" {
		b = b.Where(sq.Eq{"institution_id": filter.InstitutionID})
	}
	if filter.StudentID != "" {
		b = b.Where("id IN (SELECT class_id FROM enrollments WHERE student_id = ?)", filter.StudentID)
	}
	return b, true
}

func (repo classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	b, ok := repo.applyFilter(psql.Select(classColumns...).From("classes"), filter)
	if !ok {
		return []class.Class{}, nil
	}
	b = b.OrderBy(orderByClauses(ordering, "name ASC")...)

	var rows []classRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.class())
	}
	return classes, nil
}

func (repo classRepository) CountClasses(ctx context.Context, filter *class.QueryFilter) (int, error) {
	b, ok := repo.applyFilter(psql.Select("COUNT(*)").From("classes"), filter)
	if !ok {
		return 0, nil
	}
	n, err := count(ctx, repo.db, b)
	return n, errors.Wrap(err, "counting classes")
}

func (repo classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	if !isUUID(id) {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	if err := getOne(ctx, repo.db, &row, psql.Select(classColumns...).From("classes").Where(sq.Eq{"id": id})); err != nil {
		if err == sql.ErrNoRows {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "finding class")
	}
	return row.class(), nil
}

func (repo classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	n, err := execAffected(ctx, repo.db, psql.Update("classes").
		Set("name", cls.Name).
		Set("description", cls.Description).
		Set("updated_at", cls.UpdatedAt.UTC()).
		Where(sq.Eq{"id": cls.ID}))
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return cls, nil
}

func (repo classRepository) DeleteClass(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, psql.Delete("classes").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting class")
	}
	if n == 0 {
		return class.ErrNotFound
	}
	return nil
}

func (repo classRepository) IsEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	if !isUUID(classID) || !isUUID(studentID) {
		return false, nil
	}
	n, err := count(ctx, repo.db, psql.Select("COUNT(*)").From("enrollments").
		Where(sq.Eq{"class_id": classID, "student_id": studentID}))
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return n > 0, nil
}

type enrollmentRow struct {
	ClassID   string    `db:"class_id"`
	StudentID string    `db:"student_id"`
	CreatedAt time.Time `db:"created_at"`
}

type enrollmentRepository struct {
	db *sqlx.DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo enrollmentRepository) Enroll(ctx context.Context, classID string, studentIDs ...string) (int, error) {
	if len(studentIDs) == 0 {
		return 0, nil
	}
	now := core.NowFunc()
	b := psql.Insert("enrollments").Columns("class_id", "student_id", "created_at")
	for _, id := range studentIDs {
		b = b.Values(classID, id, now)
	}
	n, err := execAffected(ctx, repo.db, b.Suffix("ON CONFLICT (class_id, student_id) DO NOTHING"))
	if err != nil {
		if _, ok := pqViolation(err, pqForeignKeyViolation); ok {
			return 0, class.ErrNotFound
		}
		return 0, errors.Wrap(err, "inserting enrollments")
	}
	return int(n), nil
}

func (repo enrollmentRepository) Unenroll(ctx context.Context, classID, studentID string) error {
	if !isUUID(classID) || !isUUID(studentID) {
		return enrollment.ErrNotFound
	}
	n, err := execAffected(ctx, repo.db, psql.Delete("enrollments").
		Where(sq.Eq{"class_id": classID, "student_id": studentID}))
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n == 0 {
		return enrollment.ErrNotFound
	}
	return nil
}

func (repo enrollmentRepository) QueryEnrollments(ctx context.Context, classID string) ([]enrollment.Enrollment, error) {
	if !isUUID(classID) {
		return []enrollment.Enrollment{}, nil
	}
	var rows []enrollmentRow
	b := psql.Select("class_id", "student_id", "created_at").From("enrollments").
		Where(sq.Eq{"class_id": classID}).
		OrderBy("created_at ASC", "student_id ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]enrollment.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, enrollment.Enrollment{
			ClassID:   row.ClassID,
			StudentID: row.StudentID,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return enrollments, nil
}

func (repo enrollmentRepository) CountStudents(ctx context.Context, tutorID string) (int, error) {
	b := psql.Select("COUNT(DISTINCT student_id)").From("enrollments")
	if tutorID != "" {
		if !isUUID(tutorID) {
			return 0, nil
		}
		b = b.Where("class_id IN (SELECT id FROM classes WHERE tutor_id = ?)", tutorID)
	}
	n, err := count(ctx, repo.db, b)
	return n, errors.Wrap(err, "counting students")
}
