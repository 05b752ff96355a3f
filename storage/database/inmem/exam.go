package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/exam"
)

func examOrderings(exams []exam.Exam) map[string]indexCompare {
	return map[string]indexCompare{
		"title":      func(i, j int) int { return compareStrings(exams[i].Title, exams[j].Title) },
		"start_time": func(i, j int) int { return compareTimes(exams[i].StartTime, exams[j].StartTime) },
		"created_at": func(i, j int) int { return compareTimes(exams[i].CreatedAt, exams[j].CreatedAt) },
		"duration_minutes": func(i, j int) int {
			return compareInts(exams[i].DurationMinutes, exams[j].DurationMinutes)
		},
	}
}

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func copyExam(e *exam.Exam) exam.Exam {
	ex := *e
	if e.EndTime != nil {
		end := *e.EndTime
		ex.EndTime = &end
	}
	return ex
}

func (repo *examRepository) CreateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[e.ClassID]; !ok {
		return exam.Exam{}, class.ErrNotFound
	}
	e.ID = newID()
	ex := copyExam(&e)
	repo.db.exams[e.ID] = &ex
	return e, nil
}

func (repo *examRepository) matchExam(e *exam.Exam, filter *exam.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(filter.Search, e.Title, e.Description) {
		return false
	}
	if filter.ClassID != "" && e.ClassID != filter.ClassID {
		return false
	}
	if filter.CreatorID != "" && e.CreatorID != filter.CreatorID {
		return false
	}
	if !filter.From.IsZero() && e.StartTime.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && !e.StartTime.Before(filter.To) {
		return false
	}
	if filter.Published != nil && e.IsPublished != *filter.Published {
		return false
	}
	if filter.TutorID != "" {
		if cls, ok := repo.db.classes[e.ClassID]; !ok || cls.TutorID != filter.TutorID {
			return false
		}
	}
	if filter.StudentID != "" && !repo.db.isEnrolled(e.ClassID, filter.StudentID) {
		return false
	}
	return true
}

func (repo *examRepository) QueryExams(_ context.Context, filter *exam.QueryFilter, ordering []core.DBOrdering) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, e := range repo.db.exams {
		if repo.matchExam(e, filter) {
			exams = append(exams, copyExam(e))
		}
	}
	fields := examOrderings(exams)
	sortByOrdering(exams, ordering, fields, fields["start_time"])
	return exams, nil
}

func (repo *examRepository) CountExams(_ context.Context, filter *exam.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, e := range repo.db.exams {
		if repo.matchExam(e, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *examRepository) GetExam(_ context.Context, id string) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.exams[id]; ok {
		return copyExam(e), nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) UpdateExam(_ context.Context, e exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.exams[e.ID]; !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	ex := copyExam(&e)
	repo.db.exams[e.ID] = &ex
	return e, nil
}

func (repo *examRepository) DeleteExam(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.exams[id]; !ok {
		return exam.ErrNotFound
	}
	repo.db.deleteExam(id)
	return nil
}

func copyQuestion(q *exam.Question) exam.Question {
	qu := *q
	qu.Options = append([]string{}, q.Options...)
	return qu
}

func (repo *examRepository) CreateQuestion(_ context.Context, q exam.Question) (exam.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.exams[q.ExamID]; !ok {
		return exam.Question{}, exam.ErrNotFound
	}
	q.ID = newID()
	qu := copyQuestion(&q)
	repo.db.questions[q.ID] = &qu
	return copyQuestion(&q), nil
}

func (repo *examRepository) QueryQuestions(_ context.Context, examID string) ([]exam.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	questions := make([]exam.Question, 0)
	for _, q := range repo.db.questions {
		if q.ExamID == examID {
			questions = append(questions, copyQuestion(q))
		}
	}
	sort.SliceStable(questions, func(i, j int) bool {
		if questions[i].Position != questions[j].Position {
			return questions[i].Position < questions[j].Position
		}
		return questions[i].CreatedAt.Before(questions[j].CreatedAt)
	})
	return questions, nil
}

func (repo *examRepository) GetQuestion(_ context.Context, examID, id string) (exam.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if q, ok := repo.db.questions[id]; ok && q.ExamID == examID {
		return copyQuestion(q), nil
	}
	return exam.Question{}, exam.ErrQuestionNotFound
}

func (repo *examRepository) UpdateQuestion(_ context.Context, q exam.Question) (exam.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.questions[q.ID]; !ok || orig.ExamID != q.ExamID {
		return exam.Question{}, exam.ErrQuestionNotFound
	}
	qu := copyQuestion(&q)
	repo.db.questions[q.ID] = &qu
	return copyQuestion(&q), nil
}

func (repo *examRepository) DeleteQuestion(_ context.Context, examID, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if q, ok := repo.db.questions[id]; !ok || q.ExamID != examID {
		return exam.ErrQuestionNotFound
	}
	delete(repo.db.questions, id)
	return nil
}

func (repo *examRepository) SetQuestionPositions(_ context.Context, examID string, ids []string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		if q, ok := repo.db.questions[id]; !ok || q.ExamID != examID {
			return exam.ErrQuestionNotFound
		}
	}
	now := core.NowFunc()
	for pos, id := range ids {
		repo.db.questions[id].Position = pos
		repo.db.questions[id].UpdatedAt = now
	}
	return nil
}
