package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/exam"
)

var (
	examColumns = []string{
		"id", "title", "description", "class_id", "duration_minutes", "start_time", "end_time",
		"is_published", "creator_id", "created_at", "updated_at",
	}
	questionColumns = []string{
		"id", "exam_id", "kind", "text", "options", "answer", "points", "position", "created_at", "updated_at",
	}
)

type examRow struct {
	ID              string       `db:"id"`
	Title           string       `db:"title"`
	Description     string       `db:"description"`
	ClassID         string       `db:"class_id"`
	DurationMinutes int          `db:"duration_minutes"`
	StartTime       time.Time    `db:"start_time"`
	EndTime         sql.NullTime `db:"end_time"`
	IsPublished     bool         `db:"is_published"`
	CreatorID       string       `db:"creator_id"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

func (row examRow) exam() exam.Exam {
	return exam.Exam{
		ID:              row.ID,
		Title:           row.Title,
		Description:     row.Description,
		ClassID:         row.ClassID,
		DurationMinutes: row.DurationMinutes,
		StartTime:       row.StartTime.UTC(),
		EndTime:         timePtr(row.EndTime),
		IsPublished:     row.IsPublished,
		CreatorID:       row.CreatorID,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type questionRow struct {
	ID        string         `db:"id"`
	ExamID    string         `db:"exam_id"`
	Kind      string         `db:"kind"`
	Text      string         `db:"text"`
	Options   pq.StringArray `db:"options"`
	Answer    string         `db:"answer"`
	Points    int            `db:"points"`
	Position  int            `db:"position"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row questionRow) question() exam.Question {
	opts := []string(row.Options)
	if opts == nil {
		opts = []string{}
	}
	return exam.Question{
		ID:        row.ID,
		ExamID:    row.ExamID,
		Kind:      row.Kind,
		Text:      row.Text,
		Options:   opts,
		Answer:    row.Answer,
		Points:    row.Points,
		Position:  row.Position,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

type examRepository struct {
	db *sqlx.DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo examRepository) CreateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	e.ID = uuid.New().String()
	_, err := execAffected(ctx, repo.db, psql.Insert("exams").
		Columns(examColumns...).
		Values(e.ID, e.Title, e.Description, e.ClassID, e.DurationMinutes, e.StartTime.UTC(), nullTimePtr(e.EndTime),
			e.IsPublished, e.CreatorID, e.CreatedAt.UTC(), e.UpdatedAt.UTC()))
	if err != nil {
		if _, ok := pqViolation(err, pqForeignKeyViolation); ok {
			return exam.Exam{}, class.ErrNotFound
		}
		return exam.Exam{}, errors.Wrap(err, "inserting exam")
	}
	return e, nil
}

func (repo examRepository) applyFilter(b sq.SelectBuilder, filter *exam.QueryFilter) (sq.SelectBuilder, bool) {
	if filter == nil {
		return b, true
	}
	for _, id := range []string{filter.ClassID, filter.CreatorID, filter.TutorID, filter.StudentID} {
		if id != "" && !isUUID(id) {
			return b, false
		}
	}
	if filter.Search != "" {
		b = b.Where(searchAny(filter.Search, "title", "description"))
	}
	if filter.ClassID != "" {
		b = b.Where(sq.Eq{"class_id": filter.ClassID})
	}
	if filter.CreatorID != "" {
		b = b.Where(sq.Eq{"creator_id": filter.CreatorID})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"start_time": filter.From.UTC()})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.Lt{"start_time": filter.To.UTC()})
	}
	if filter.Published != nil {
		b = b.Where(sq.Eq{"is_published": *filter.Published})
	}
	if filter.TutorID != "" {
		b = b.Where("class_id IN (SELECT id FROM classes WHERE tutor_id = ?)", filter.TutorID)
	}
	if filter.StudentID != "" {
		b = b.Where("class_id IN (SELECT class_id FROM enrollments WHERE student_id = ?)", filter.StudentID)
	}
	return b, true
}

func (repo examRepository) QueryExams(ctx context.Context, filter *exam.QueryFilter, ordering []core.DBOrdering) ([]exam.Exam, error) {
	b, ok := repo.applyFilter(psql.Select(examColumns...).From("exams"), filter)
	if !ok {
		return []exam.Exam{}, nil
	}
	b = b.OrderBy(orderByClauses(ordering, "start_time ASC")...)

	var rows []examRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	exams := make([]exam.Exam, 0, len(rows))
	for _, row := range rows {
		exams = append(exams, row.exam())
	}
	return exams, nil
}

func (repo examRepository) CountExams(ctx context.Context, filter *exam.QueryFilter) (int, error) {
	b, ok := repo.applyFilter(psql.Select("COUNT(*)").From("exams"), filter)
	if !ok {
		return 0, nil
	}
	n, err := count(ctx, repo.db, b)
	return n, errors.Wrap(err, "counting exams")
}

func (repo examRepository) GetExam(ctx context.Context, id string) (exam.Exam, error) {
	if !isUUID(id) {
		return exam.Exam{}, exam.ErrNotFound
	}
	var row examRow
	if err := getOne(ctx, repo.db, &row, psql.Select(examColumns...).From("exams").Where(sq.Eq{"id": id})); err != nil {
		if err == sql.ErrNoRows {
			return exam.Exam{}, exam.ErrNotFound
		}
		return exam.Exam{}, errors.Wrap(err, "finding exam")
	}
	return row.exam(), nil
}

func (repo examRepository) UpdateExam(ctx context.Context, e exam.Exam) (exam.Exam, error) {
	n, err := execAffected(ctx, repo.db, psql.Update("exams").
		SetMap(map[string]interface{}{
			"title":            e.Title,
			"description":      e.Description,
			"duration_minutes": e.DurationMinutes,
			"start_time":       e.StartTime.UTC(),
			"end_time":         nullTimePtr(e.EndTime),
			"is_published":     e.IsPublished,
			"updated_at":       e.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": e.ID}))
	if err != nil {
		return exam.Exam{}, errors.Wrap(err, "updating exam")
	}
	if n == 0 {
		return exam.Exam{}, exam.ErrNotFound
	}
	return e, nil
}

func (repo examRepository) DeleteExam(ctx context.Context, id string) error {
	n, err := execAffected(ctx, repo.db, psql.Delete("exams").Where(sq.Eq{"id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	if n == 0 {
		return exam.ErrNotFound
	}
	return nil
}

func (repo examRepository) CreateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	q.ID = uuid.New().String()
	if q.Options == nil {
		q.Options = []string{}
	}
	_, err := execAffected(ctx, repo.db, psql.Insert("questions").
		Columns(questionColumns...).
		Values(q.ID, q.ExamID, q.Kind, q.Text, pq.StringArray(q.Options), q.Answer, q.Points, q.Position,
			q.CreatedAt.UTC(), q.UpdatedAt.UTC()))
	if err != nil {
		if _, ok := pqViolation(err, pqForeignKeyViolation); ok {
			return exam.Question{}, exam.ErrNotFound
		}
		return exam.Question{}, errors.Wrap(err, "inserting question")
	}
	return q, nil
}

func (repo examRepository) QueryQuestions(ctx context.Context, examID string) ([]exam.Question, error) {
	if !isUUID(examID) {
		return []exam.Question{}, nil
	}
	var rows []questionRow
	b := psql.Select(questionColumns...).From("questions").
		Where(sq.Eq{"exam_id": examID}).
		OrderBy("position ASC", "created_at ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}
	questions := make([]exam.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.question())
	}
	return questions, nil
}

func (repo examRepository) GetQuestion(ctx context.Context, examID, id string) (exam.Question, error) {
	if !isUUID(examID) || !isUUID(id) {
		return exam.Question{}, exam.ErrQuestionNotFound
	}
	var row questionRow
	b := psql.Select(questionColumns...).From("questions").Where(sq.Eq{"id": id, "exam_id": examID})
	if err := getOne(ctx, repo.db, &row, b); err != nil {
		if err == sql.ErrNoRows {
			return exam.Question{}, exam.ErrQuestionNotFound
		}
		return exam.Question{}, errors.Wrap(err, "finding question")
	}
	return row.question(), nil
}

func (repo examRepository) UpdateQuestion(ctx context.Context, q exam.Question) (exam.Question, error) {
	if q.Options == nil {
		q.Options = []string{}
	}
	n, err := execAffected(ctx, repo.db, psql.Update("questions").
		SetMap(map[string]interface{}{
			"kind":       q.Kind,
			"text":       q.Text,
			"options":    pq.StringArray(q.Options),
			"answer":     q.Answer,
			"points":     q.Points,
			"position":   q.Position,
			"updated_at": q.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": q.ID, "exam_id": q.ExamID}))
	if err != nil {
		return exam.Question{}, errors.Wrap(err, "updating question")
	}
	if n == 0 {
		return exam.Question{}, exam.ErrQuestionNotFound
	}
	return q, nil
}

func (repo examRepository) DeleteQuestion(ctx context.Context, examID, id string) error {
	if !isUUID(examID) || !isUUID(id) {
		return exam.ErrQuestionNotFound
	}
	n, err := execAffected(ctx, repo.db, psql.Delete("questions").Where(sq.Eq{"id": id, "exam_id": examID}))
	if err != nil {
		return errors.Wrap(err, "deleting question")
	}
	if n == 0 {
		return exam.ErrQuestionNotFound
	}
	return nil
}

// SetQuestionPositions updates all positions in a single transaction.
func (repo examRepository) SetQuestionPositions(ctx context.Context, examID string, ids []string) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := core.NowFunc()
	for pos, id := range ids {
		n, err := execAffected(ctx, tx, psql.Update("questions").
			Set("position", pos).
			Set("updated_at", now).
			Where(sq.Eq{"id": id, "exam_id": examID}))
		if err != nil {
			return errors.Wrap(err, "updating question position")
		}
		if n == 0 {
			return exam.ErrQuestionNotFound
		}
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
