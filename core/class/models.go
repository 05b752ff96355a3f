package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/user"
)

type Class struct {
	ID            string    `json:"id"`
	InstitutionID string    `json:"institution_id"`
	TutorID       string    `json:"tutor_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// CanManage reports whether usr may modify the class, its roster and its exams.
func (c Class) CanManage(usr user.User) bool {
	return usr.IsAdmin() || (c.TutorID != "" && c.TutorID == usr.ID)
}

type NewClass struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

type UpdateClass struct {
	Name        string  `json:"name" validate:"required,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// Validate fills a missing name from orig before validating.
func (uc *UpdateClass) Validate(orig Class, validate *validator.Validate) error {
	if uc.Name == "" {
		uc.Name = orig.Name
	} else {
		uc.Name = core.CleanString(uc.Name)
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	Search        string `query:"search"`
	TutorID       string `query:"tutor_id"`
	InstitutionID string `query:"institution_id"`
	StudentID     string `query:"-"` // classes the student is enrolled in
}
