package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/document"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/institution"
	"github.com/trezcool/quizforge/core/user"
)

type enrollmentKey struct {
	classID   string
	studentID string
}

// DB is an in-memory database shared by the in-memory repositories.
// Foreign key cascades of the SQL schema are reproduced on delete.
type DB struct {
	mu sync.RWMutex

	users        map[string]*user.User
	institutions map[string]*institution.Institution
	classes      map[string]*class.Class
	enrollments  map[enrollmentKey]time.Time
	exams        map[string]*exam.Exam
	questions    map[string]*exam.Question
	documents    map[string]*document.Document
}

func NewDB() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		institutions: make(map[string]*institution.Institution),
		classes:      make(map[string]*class.Class),
		enrollments:  make(map[enrollmentKey]time.Time),
		exams:        make(map[string]*exam.Exam),
		questions:    make(map[string]*exam.Question),
		documents:    make(map[string]*document.Document),
	}
}

func newID() string {
	return uuid.New().String()
}

// deleteUser removes a user and what depends on it; db.mu must be held.
func (db *DB) deleteUser(id string) {
	delete(db.users, id)
	for key := range db.enrollments {
		if key.studentID == id {
			delete(db.enrollments, key)
		}
	}
	for _, cls := range db.classes {
		if cls.TutorID == id {
			db.deleteClass(cls.ID)
		}
	}
	for _, e := range db.exams {
		if e.CreatorID == id {
			db.deleteExam(e.ID)
		}
	}
	for _, doc := range db.documents {
		if doc.OwnerID == id {
			delete(db.documents, doc.ID)
		}
	}
}

// deleteClass removes a class and what depends on it; db.mu must be held.
func (db *DB) deleteClass(id string) {
	delete(db.classes, id)
	for key := range db.enrollments {
		if key.classID == id {
			delete(db.enrollments, key)
		}
	}
	for _, e := range db.exams {
		if e.ClassID == id {
			db.deleteExam(e.ID)
		}
	}
	for _, doc := range db.documents {
		if doc.ClassID == id {
			doc.ClassID = ""
		}
	}
}

// deleteExam removes an exam and its questions; db.mu must be held.
func (db *DB) deleteExam(id string) {
	delete(db.exams, id)
	for _, q := range db.questions {
		if q.ExamID == id {
			delete(db.questions, q.ID)
		}
	}
}

func (db *DB) isEnrolled(classID, studentID string) bool {
	_, ok := db.enrollments[enrollmentKey{classID: classID, studentID: studentID}]
	return ok
}

// containsFold reports whether substr is within any of the values, ignoring case.
func containsFold(substr string, values ...string) bool {
	substr = strings.ToLower(substr)
	for _, val := range values {
		if strings.Contains(strings.ToLower(val), substr) {
			return true
		}
	}
	return false
}

// indexCompare compares the items at indexes i and j of the slice being sorted.
type indexCompare func(i, j int) int

func compareStrings(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// sortByOrdering sorts slice by the orderings found in fields, then by fallback.
// Unknown ordering fields are ignored.
func sortByOrdering(slice interface{}, ordering []core.DBOrdering, fields map[string]indexCompare, fallback indexCompare) {
	sort.SliceStable(slice, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(i, j); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return fallback(i, j) < 0
	})
}
