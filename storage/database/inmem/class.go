package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/enrollment"
)

func classOrderings(classes []class.Class) map[string]indexCompare {
	return map[string]indexCompare{
		"name":       func(i, j int) int { return compareStrings(classes[i].Name, classes[j].Name) },
		"created_at": func(i, j int) int { return compareTimes(classes[i].CreatedAt, classes[j].CreatedAt) },
		"updated_at": func(i, j int) int { return compareTimes(classes[i].UpdatedAt, classes[j].UpdatedAt) },
	}
}

type classRepository struct {
	db *DB
}

var (
	_ class.Repository      = (*classRepository)(nil) // interface compliance check
	_ enrollment.Repository = (*enrollmentRepository)(nil)
)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls.ID = newID()
	c := cls
	repo.db.classes[cls.ID] = &c
	return cls, nil
}

func (repo *classRepository) matchClass(cls *class.Class, filter *class.QueryFilter) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" && !containsFold(filter.Search, cls.Name, cls.Description) {
		return false
	}
	if filter.TutorID != "" && cls.TutorID != filter.TutorID {
		return false
	}
	if filter.InstitutionID != "" && cls.InstitutionID != filter.InstitutionID {
		return false
	}
	if filter.StudentID != "" && !repo.db.isEnrolled(cls.ID, filter.StudentID) {
		return false
	}
	return true
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if repo.matchClass(cls, filter) {
			classes = append(classes, *cls)
		}
	}
	fields := classOrderings(classes)
	sortByOrdering(classes, ordering, fields, fields["name"])
	return classes, nil
}

func (repo *classRepository) CountClasses(_ context.Context, filter *class.QueryFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, cls := range repo.db.classes {
		if repo.matchClass(cls, filter) {
			n++
		}
	}
	return n, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	c := cls
	repo.db.classes[cls.ID] = &c
	return cls, nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[id]; !ok {
		return class.ErrNotFound
	}
	repo.db.deleteClass(id)
	return nil
}

func (repo *classRepository) IsEnrolled(_ context.Context, classID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.isEnrolled(classID, studentID), nil
}

type enrollmentRepository struct {
	db *DB
}

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) Enroll(_ context.Context, classID string, studentIDs ...string) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return 0, class.ErrNotFound
	}
	now := core.NowFunc()
	var n int
	for _, id := range studentIDs {
		key := enrollmentKey{classID: classID, studentID: id}
		if _, ok := repo.db.enrollments[key]; ok {
			continue
		}
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		repo.db.enrollments[key] = now
		n++
	}
	return n, nil
}

func (repo *enrollmentRepository) Unenroll(_ context.Context, classID, studentID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	key := enrollmentKey{classID: classID, studentID: studentID}
	if _, ok := repo.db.enrollments[key]; !ok {
		return enrollment.ErrNotFound
	}
	delete(repo.db.enrollments, key)
	return nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, classID string) ([]enrollment.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]enrollment.Enrollment, 0)
	for key, createdAt := range repo.db.enrollments {
		if key.classID == classID {
			enrollments = append(enrollments, enrollment.Enrollment{
				ClassID:   key.classID,
				StudentID: key.studentID,
				CreatedAt: createdAt,
			})
		}
	}
	sort.SliceStable(enrollments, func(i, j int) bool {
		if !enrollments[i].CreatedAt.Equal(enrollments[j].CreatedAt) {
			return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt)
		}
		return compareStrings(enrollments[i].StudentID, enrollments[j].StudentID) < 0
	})
	return enrollments, nil
}

func (repo *enrollmentRepository) CountStudents(_ context.Context, tutorID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make(map[string]bool)
	for key := range repo.db.enrollments {
		if cls, ok := repo.db.classes[key.classID]; ok && (tutorID == "" || cls.TutorID == tutorID) {
			students[key.studentID] = true
		}
	}
	return len(students), nil
}
