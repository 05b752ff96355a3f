package class

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("class not found")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		CountClasses(ctx context.Context, filter *QueryFilter) (int, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClass(ctx context.Context, id string) error
		IsEnrolled(ctx context.Context, classID, studentID string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nc NewClass) (Class, error)
		// Query returns the classes visible to actor: all for admins, owned ones for tutors,
		// the ones they are enrolled in for students.
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		// GetByID returns the class with no visibility check.
		GetByID(ctx context.Context, id string) (Class, error)
		// Get returns ErrNotFound when the class is not visible to actor.
		Get(ctx context.Context, actor user.User, id string) (Class, error)
		// GetManaged is Get restricted to classes actor can manage.
		GetManaged(ctx context.Context, actor user.User, id string) (Class, error)
		Update(ctx context.Context, actor user.User, cls Class, uc UpdateClass) (Class, error)
		Delete(ctx context.Context, actor user.User, cls Class) error
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor user.User, nc NewClass) (Class, error) {
	if !(actor.IsTutor() || actor.IsAdmin()) {
		return Class{}, core.ErrPermissionDenied
	}
	now := core.NowFunc()
	return svc.repo.CreateClass(ctx, Class{
		InstitutionID: actor.InstitutionID,
		TutorID:       actor.ID,
		Name:          nc.Name,
		Description:   nc.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.StudentID = ""
	switch {
	case actor.IsAdmin():
	case actor.IsTutor():
		filter.TutorID = actor.ID
	case actor.IsStudent():
		filter.TutorID = ""
		filter.StudentID = actor.ID
	default:
		return []Class{}, nil
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountClasses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if cls.CanManage(actor) {
		return cls, nil
	}
	if actor.IsStudent() {
		enrolled, err := svc.repo.IsEnrolled(ctx, cls.ID, actor.ID)
		if err != nil {
			return Class{}, errors.Wrap(err, "checking enrollment")
		}
		if enrolled {
			return cls, nil
		}
	}
	return Class{}, ErrNotFound
}

func (svc *service) GetManaged(ctx context.Context, actor user.User, id string) (Class, error) {
	cls, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Class{}, err
	}
	if !cls.CanManage(actor) {
		return Class{}, core.ErrPermissionDenied
	}
	return cls, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, cls Class, uc UpdateClass) (Class, error) {
	if !cls.CanManage(actor) {
		return Class{}, core.ErrPermissionDenied
	}
	cls.Name = uc.Name
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
	cls.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) Delete(ctx context.Context, actor user.User, cls Class) error {
	if !cls.CanManage(actor) {
		return core.ErrPermissionDenied
	}
	return svc.repo.DeleteClass(ctx, cls.ID)
}
