package enrollment

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("enrollment not found")

	reasonInvalidEmail = "invalid email"
	reasonMissingEmail = "missing email"
	reasonNotStudent   = "account is not a student"
	reasonDuplicate    = "duplicate row"
)

type Enrollment struct {
	ClassID   string    `json:"class_id"`
	StudentID string    `json:"student_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Student is an enrolled student as listed to the class owner.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	AvatarURL  string    `json:"avatar_url"`
	IsActive   bool      `json:"is_active"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

type EnrollStudents struct {
	Emails []string `json:"emails" validate:"required,min=1,max=500"`
}

func (es *EnrollStudents) Validate(validate *validator.Validate) error {
	for i, email := range es.Emails {
		es.Emails[i] = core.CleanString(email, true /* lower */)
	}
	return validate.Struct(es)
}

// RowResult is the outcome of enrolling one student (one roster row when importing).
type RowResult struct {
	Row      int    `json:"row,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Created  bool   `json:"created"`
	Enrolled bool   `json:"enrolled"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
}

type (
	Repository interface {
		// Enroll adds the students to the class; existing enrollments are left untouched.
		Enroll(ctx context.Context, classID string, studentIDs ...string) (int, error)
		Unenroll(ctx context.Context, classID, studentID string) error
		QueryEnrollments(ctx context.Context, classID string) ([]Enrollment, error)
		// CountStudents counts the distinct students enrolled in the classes of a tutor (all classes if tutorID is empty).
		CountStudents(ctx context.Context, tutorID string) (int, error)
	}

	Service interface {
		ListStudents(ctx context.Context, actor user.User, classID string) ([]Student, error)
		// StudentIDs returns the ids of the students of a class, with no permission check.
		StudentIDs(ctx context.Context, classID string) ([]string, error)
		Enroll(ctx context.Context, actor user.User, classID string, es EnrollStudents) ([]RowResult, error)
		Unenroll(ctx context.Context, actor user.User, classID, studentID string) error
		ImportRoster(ctx context.Context, actor user.User, classID string, roster Roster) ([]RowResult, error)
		CountStudents(ctx context.Context, tutorID string) (int, error)
	}

	service struct {
		repo     Repository
		classSvc class.Service
		userSvc  user.Service
		mailSvc  core.EmailService
		validate *validator.Validate
	}
)

func NewService(
	repo Repository,
	classSvc class.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	validate *validator.Validate,
) Service {
	return &service{
		repo:     repo,
		classSvc: classSvc,
		userSvc:  userSvc,
		mailSvc:  mailSvc,
		validate: validate,
	}
}

func (svc *service) ListStudents(ctx context.Context, actor user.User, classID string) ([]Student, error) {
	if _, err := svc.classSvc.GetManaged(ctx, actor, classID); err != nil {
		return nil, err
	}

	enrollments, err := svc.repo.QueryEnrollments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	ids := make([]string, 0, len(enrollments))
	enrolledAt := make(map[string]time.Time, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.StudentID)
		enrolledAt[enr.StudentID] = enr.CreatedAt
	}

	users, err := svc.userSvc.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "finding students")
	}
	students := make([]Student, 0, len(users))
	for _, usr := range users {
		students = append(students, Student{
			ID:         usr.ID,
			Name:       usr.Name,
			Email:      usr.Email,
			AvatarURL:  usr.AvatarURL,
			IsActive:   usr.IsActive,
			EnrolledAt: enrolledAt[usr.ID],
		})
	}
	return students, nil
}

func (svc *service) StudentIDs(ctx context.Context, classID string) ([]string, error) {
	enrollments, err := svc.repo.QueryEnrollments(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	ids := make([]string, 0, len(enrollments))
	for _, enr := range enrollments {
		ids = append(ids, enr.StudentID)
	}
	return ids, nil
}

func (svc *service) Enroll(ctx context.Context, actor user.User, classID string, es EnrollStudents) ([]RowResult, error) {
	cls, err := svc.classSvc.GetManaged(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	rows := make([]rosterRow, 0, len(es.Emails))
	for _, email := range es.Emails {
		rows = append(rows, rosterRow{email: email})
	}
	return svc.enrollRows(ctx, actor, cls, rows)
}

func (svc *service) Unenroll(ctx context.Context, actor user.User, classID, studentID string) error {
	if _, err := svc.classSvc.GetManaged(ctx, actor, classID); err != nil {
		return err
	}
	return svc.repo.Unenroll(ctx, classID, studentID)
}

func (svc *service) ImportRoster(ctx context.Context, actor user.User, classID string, roster Roster) ([]RowResult, error) {
	cls, err := svc.classSvc.GetManaged(ctx, actor, classID)
	if err != nil {
		return nil, err
	}
	rows, err := roster.rows()
	if err != nil {
		return nil, err
	}
	return svc.enrollRows(ctx, actor, cls, rows)
}

func (svc *service) CountStudents(ctx context.Context, tutorID string) (int, error) {
	return svc.repo.CountStudents(ctx, tutorID)
}

// enrollRows ensures a student account exists for each row and enrolls it.
// Row level problems are reported in the results, not as errors.
func (svc *service) enrollRows(ctx context.Context, actor user.User, cls class.Class, rows []rosterRow) ([]RowResult, error) {
	results := make([]RowResult, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	var invites []*core.EmailMessage

	for _, row := range rows {
		res := RowResult{Row: row.line, Name: row.name, Email: row.email}
		switch {
		case row.email == "":
			res.Skipped, res.Reason = true, reasonMissingEmail
		case svc.validate.Var(row.email, "email") != nil:
			res.Skipped, res.Reason = true, reasonInvalidEmail
		case seen[row.email]:
			res.Skipped, res.Reason = true, reasonDuplicate
		}
		if res.Skipped {
			results = append(results, res)
			continue
		}
		seen[row.email] = true

		usr, created, err := svc.userSvc.EnsureStudent(ctx, row.name, row.email)
		if err != nil {
			return nil, errors.Wrapf(err, "ensuring student %s", row.email)
		}
		if !usr.IsStudent() {
			res.Skipped, res.Reason = true, reasonNotStudent
			results = append(results, res)
			continue
		}
		if _, err := svc.repo.Enroll(ctx, cls.ID, usr.ID); err != nil {
			return nil, errors.Wrapf(err, "enrolling student %s", row.email)
		}
		res.Name = usr.Name
		res.Created = created
		res.Enrolled = true
		results = append(results, res)

		if created {
			invites = append(invites, svc.inviteMessage(actor, cls, usr))
		}
	}

	if len(invites) > 0 {
		svc.mailSvc.SendMessages(invites...)
	}
	return results, nil
}

func (svc *service) inviteMessage(tutor user.User, cls class.Class, usr user.User) *core.EmailMessage {
	uid, token := svc.userSvc.MakeInviteToken(usr)
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You have been enrolled in " + cls.Name,
		TemplateName: "enrollment_invite",
		TemplateData: map[string]interface{}{
			"Name":      usr.Name,
			"TutorName": tutor.Name,
			"ClassName": cls.Name,
			"UID":       uid,
			"Token":     token,
		},
	}
}
