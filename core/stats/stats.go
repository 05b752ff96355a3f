package stats

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/document"
	"github.com/trezcool/quizforge/core/enrollment"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/user"
)

// Dashboard holds the counters shown on the landing page; which ones are set depends on the role.
type Dashboard struct {
	Users         *int `json:"users,omitempty"`
	Classes       int  `json:"classes"`
	Students      *int `json:"students,omitempty"`
	Exams         int  `json:"exams"`
	UpcomingExams int  `json:"upcoming_exams"`
	Documents     int  `json:"documents"`
}

type Service interface {
	Dashboard(ctx context.Context, actor user.User) (Dashboard, error)
}

type service struct {
	userSvc  user.Service
	classSvc class.Service
	enrolSvc enrollment.Service
	examSvc  exam.Service
	docSvc   document.Service
}

func NewService(
	userSvc user.Service,
	classSvc class.Service,
	enrolSvc enrollment.Service,
	examSvc exam.Service,
	docSvc document.Service,
) Service {
	return &service{
		userSvc:  userSvc,
		classSvc: classSvc,
		enrolSvc: enrolSvc,
		examSvc:  examSvc,
		docSvc:   docSvc,
	}
}

// Dashboard runs the counts of actor's scope concurrently; the first failure cancels the others.
func (svc *service) Dashboard(ctx context.Context, actor user.User) (Dashboard, error) {
	var (
		dash     Dashboard
		users    int
		students int
		now      = core.NowFunc()

		classFilter = new(class.QueryFilter)
		examFilter  = new(exam.QueryFilter)
		upcoming    = &exam.QueryFilter{From: now}
		docFilter   = new(document.QueryFilter)
	)

	switch {
	case actor.IsAdmin():
	case actor.IsTutor():
		classFilter.TutorID = actor.ID
		examFilter.TutorID = actor.ID
		upcoming.TutorID = actor.ID
		docFilter.OwnerID = actor.ID
	case actor.IsStudent():
		published := true
		classFilter.StudentID = actor.ID
		examFilter.StudentID, examFilter.Published = actor.ID, &published
		upcoming.StudentID, upcoming.Published = actor.ID, &published
		docFilter.StudentID = actor.ID
	default:
		return dash, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int, name string, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return errors.Wrapf(err, "counting %s", name)
			}
			*dst = n
			return nil
		})
	}

	count(&dash.Classes, "classes", func(ctx context.Context) (int, error) { return svc.classSvc.Count(ctx, classFilter) })
	count(&dash.Exams, "exams", func(ctx context.Context) (int, error) { return svc.examSvc.Count(ctx, examFilter) })
	count(&dash.UpcomingExams, "upcoming exams", func(ctx context.Context) (int, error) { return svc.examSvc.Count(ctx, upcoming) })
	count(&dash.Documents, "documents", func(ctx context.Context) (int, error) { return svc.docSvc.Count(ctx, docFilter) })

	switch {
	case actor.IsAdmin():
		count(&users, "users", func(ctx context.Context) (int, error) { return svc.userSvc.Count(ctx, nil) })
		count(&students, "students", func(ctx context.Context) (int, error) { return svc.enrolSvc.CountStudents(ctx, "") })
	case actor.IsTutor():
		count(&students, "students", func(ctx context.Context) (int, error) { return svc.enrolSvc.CountStudents(ctx, actor.ID) })
	}

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	if actor.IsAdmin() {
		dash.Users = &users
	}
	if actor.IsAdmin() || actor.IsTutor() {
		dash.Students = &students
	}
	return dash, nil
}
