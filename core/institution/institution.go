package institution

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

var (
	// errors
	ErrNotFound   = errors.New("institution not found")
	ErrNameExists = errors.New("an institution with this name already exists")
)

type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewInstitution struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (ni *NewInstitution) Validate(validate *validator.Validate) error {
	ni.Name = core.CleanString(ni.Name)
	return validate.Struct(ni)
}

type QueryFilter struct {
	Search string `query:"search"`
}

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string) error
		CreateInstitution(ctx context.Context, inst Institution) (Institution, error)
		QueryInstitutions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Institution, error)
		GetInstitution(ctx context.Context, id string) (Institution, error)
	}

	Service interface {
		Create(ctx context.Context, actor user.User, ni NewInstitution) (Institution, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Institution, error)
		GetByID(ctx context.Context, id string) (Institution, error)
	}

	service struct {
		repo Repository
	}
)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, actor user.User, ni NewInstitution) (Institution, error) {
	if !actor.IsAdmin() {
		return Institution{}, core.ErrPermissionDenied
	}
	if err := svc.repo.CheckNameUniqueness(ctx, ni.Name); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return Institution{}, core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return Institution{}, errors.Wrap(err, "checking name uniqueness")
	}
	return svc.repo.CreateInstitution(ctx, Institution{Name: ni.Name, CreatedAt: core.NowFunc()})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Institution, error) {
	return svc.repo.QueryInstitutions(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Institution, error) {
	return svc.repo.GetInstitution(ctx, id)
}
