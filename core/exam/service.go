package exam

import (
	"context"
	"fmt"
	"net/mail"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/enrollment"
	"github.com/trezcool/quizforge/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")

	errInvalidOrder = "must list every question of the exam exactly once"
)

type (
	Repository interface {
		CreateExam(ctx context.Context, e Exam) (Exam, error)
		QueryExams(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		CountExams(ctx context.Context, filter *QueryFilter) (int, error)
		GetExam(ctx context.Context, id string) (Exam, error)
		UpdateExam(ctx context.Context, e Exam) (Exam, error)
		DeleteExam(ctx context.Context, id string) error

		CreateQuestion(ctx context.Context, q Question) (Question, error)
		QueryQuestions(ctx context.Context, examID string) ([]Question, error)
		GetQuestion(ctx context.Context, examID, id string) (Question, error)
		UpdateQuestion(ctx context.Context, q Question) (Question, error)
		DeleteQuestion(ctx context.Context, examID, id string) error
		// SetQuestionPositions sets each question's position to its index in ids.
		SetQuestionPositions(ctx context.Context, examID string, ids []string) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, ne NewExam) (Exam, error)
		// Query returns the exams visible to actor; students only see published exams of their classes.
		Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		Count(ctx context.Context, filter *QueryFilter) (int, error)
		Get(ctx context.Context, actor user.User, id string) (Exam, error)
		GetManaged(ctx context.Context, actor user.User, id string) (Exam, error)
		Update(ctx context.Context, actor user.User, e Exam, ue UpdateExam) (Exam, error)
		Delete(ctx context.Context, actor user.User, e Exam) error
		Publish(ctx context.Context, actor user.User, e Exam) (Exam, error)
		Unpublish(ctx context.Context, actor user.User, e Exam) (Exam, error)

		AddQuestion(ctx context.Context, actor user.User, e Exam, nq NewQuestion) (Question, error)
		// ListQuestions strips answers unless actor manages the exam;
		// non-managers get no questions before the exam starts.
		ListQuestions(ctx context.Context, actor user.User, e Exam) ([]Question, error)
		UpdateQuestion(ctx context.Context, actor user.User, e Exam, questionID string, nq NewQuestion) (Question, error)
		DeleteQuestion(ctx context.Context, actor user.User, e Exam, questionID string) error
		ReorderQuestions(ctx context.Context, actor user.User, e Exam, order QuestionOrder) ([]Question, error)
	}

	service struct {
		repo     Repository
		classSvc class.Service
		enrolSvc enrollment.Service
		userSvc  user.Service
		mailSvc  core.EmailService
		smsSvc   core.SMSService
		logger   core.Logger
	}
)

// NewService returns the exam service; smsSvc may be nil when no SMS transport is configured.
func NewService(
	repo Repository,
	classSvc class.Service,
	enrolSvc enrollment.Service,
	userSvc user.Service,
	mailSvc core.EmailService,
	smsSvc core.SMSService,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		classSvc: classSvc,
		enrolSvc: enrolSvc,
		userSvc:  userSvc,
		mailSvc:  mailSvc,
		smsSvc:   smsSvc,
		logger:   logger,
	}
}

func withStatus(e Exam) Exam {
	e.Status = e.StatusAt(core.NowFunc())
	return e
}

func (svc *service) Create(ctx context.Context, actor user.User, ne NewExam) (Exam, error) {
	if _, err := svc.classSvc.GetManaged(ctx, actor, ne.ClassID); err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return Exam{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Exam{}, err
	}

	now := core.NowFunc()
	e, err := svc.repo.CreateExam(ctx, Exam{
		Title:           ne.Title,
		Description:     ne.Description,
		ClassID:         ne.ClassID,
		DurationMinutes: ne.DurationMinutes,
		StartTime:       ne.StartTime,
		EndTime:         ne.EndTime,
		CreatorID:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Exam{}, err
	}
	return withStatus(e), nil
}

func (svc *service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.TutorID, filter.StudentID = "", ""
	switch {
	case actor.IsAdmin():
	case actor.IsTutor():
		filter.TutorID = actor.ID
	case actor.IsStudent():
		published := true
		filter.Published = &published
		filter.StudentID = actor.ID
	default:
		return []Exam{}, nil
	}

	exams, err := svc.repo.QueryExams(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	for i := range exams {
		exams[i] = withStatus(exams[i])
	}
	return exams, nil
}

func (svc *service) Count(ctx context.Context, filter *QueryFilter) (int, error) {
	return svc.repo.CountExams(ctx, filter)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.repo.GetExam(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	cls, err := svc.classSvc.Get(ctx, actor, e.ClassID)
	if err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return Exam{}, ErrNotFound
		}
		return Exam{}, errors.Wrap(err, "finding exam class")
	}
	if !cls.CanManage(actor) && !e.IsPublished {
		return Exam{}, ErrNotFound
	}
	return withStatus(e), nil
}

func (svc *service) GetManaged(ctx context.Context, actor user.User, id string) (Exam, error) {
	e, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Exam{}, err
	}
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return Exam{}, err
	}
	return e, nil
}

func (svc *service) checkManage(ctx context.Context, actor user.User, e Exam) error {
	if _, err := svc.classSvc.GetManaged(ctx, actor, e.ClassID); err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (svc *service) Update(ctx context.Context, actor user.User, e Exam, ue UpdateExam) (Exam, error) {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return Exam{}, err
	}
	e.Title = ue.Title
	if ue.Description != nil {
		e.Description = *ue.Description
	}
	e.DurationMinutes = ue.DurationMinutes
	e.StartTime = ue.StartTime
	e.EndTime = ue.EndTime
	e.UpdatedAt = core.NowFunc()

	e, err := svc.repo.UpdateExam(ctx, e)
	if err != nil {
		return Exam{}, err
	}
	return withStatus(e), nil
}

func (svc *service) Delete(ctx context.Context, actor user.User, e Exam) error {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return err
	}
	return svc.repo.DeleteExam(ctx, e.ID)
}

func (svc *service) setPublished(ctx context.Context, actor user.User, e Exam, published bool) (Exam, bool, error) {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return Exam{}, false, err
	}
	if e.IsPublished == published {
		return withStatus(e), false, nil
	}
	e.IsPublished = published
	e.UpdatedAt = core.NowFunc()
	e, err := svc.repo.UpdateExam(ctx, e)
	if err != nil {
		return Exam{}, false, err
	}
	return withStatus(e), true, nil
}

// Publish makes the exam visible to the students of its class and notifies them.
func (svc *service) Publish(ctx context.Context, actor user.User, e Exam) (Exam, error) {
	e, changed, err := svc.setPublished(ctx, actor, e, true)
	if err != nil {
		return Exam{}, err
	}
	if changed {
		if err := svc.notifyPublished(ctx, e); err != nil {
			svc.logger.Error(fmt.Sprintf("exam.Publish(%s): notifying students: %v", e.ID, err), err, actor)
		}
	}
	return e, nil
}

func (svc *service) Unpublish(ctx context.Context, actor user.User, e Exam) (Exam, error) {
	e, _, err := svc.setPublished(ctx, actor, e, false)
	return e, err
}

func (svc *service) notifyPublished(ctx context.Context, e Exam) error {
	cls, err := svc.classSvc.GetByID(ctx, e.ClassID)
	if err != nil {
		return errors.Wrap(err, "finding class")
	}
	ids, err := svc.enrolSvc.StudentIDs(ctx, e.ClassID)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}
	students, err := svc.userSvc.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}

	mails := make([]*core.EmailMessage, 0, len(students))
	var texts []*core.SMSMessage
	for _, usr := range students {
		if !usr.IsActive {
			continue
		}
		if usr.Email != "" {
			mails = append(mails, &core.EmailMessage{
				To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
				Subject:      "New exam: " + e.Title,
				TemplateName: "exam_published",
				TemplateData: map[string]interface{}{
					"Name":            usr.Name,
					"ClassName":       cls.Name,
					"Title":           e.Title,
					"StartTime":       e.StartTime.Format("Mon, 02 Jan 2006 15:04 MST"),
					"DurationMinutes": e.DurationMinutes,
					"ExamID":          e.ID,
				},
			})
		}
		if svc.smsSvc != nil && usr.Phone != "" {
			texts = append(texts, &core.SMSMessage{
				To: usr.Phone,
				Body: fmt.Sprintf("%s: exam \"%s\" starts %s (%d min).",
					cls.Name, e.Title, e.StartTime.Format("02 Jan 15:04 MST"), e.DurationMinutes),
			})
		}
	}

	if len(mails) > 0 {
		svc.mailSvc.SendMessages(mails...)
	}
	if len(texts) > 0 {
		svc.smsSvc.SendMessages(texts...)
	}
	return nil
}

// Questions

func (svc *service) AddQuestion(ctx context.Context, actor user.User, e Exam, nq NewQuestion) (Question, error) {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return Question{}, err
	}
	existing, err := svc.repo.QueryQuestions(ctx, e.ID)
	if err != nil {
		return Question{}, errors.Wrap(err, "querying questions")
	}
	pos := 0
	for _, q := range existing {
		if q.Position >= pos {
			pos = q.Position + 1
		}
	}

	now := core.NowFunc()
	return svc.repo.CreateQuestion(ctx, Question{
		ExamID:    e.ID,
		Kind:      nq.Kind,
		Text:      nq.Text,
		Options:   nq.Options,
		Answer:    nq.Answer,
		Points:    nq.Points,
		Position:  pos,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) ListQuestions(ctx context.Context, actor user.User, e Exam) ([]Question, error) {
	questions, err := svc.repo.QueryQuestions(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if err := svc.checkManage(ctx, actor, e); err != nil {
		if errors.Cause(err) != core.ErrPermissionDenied {
			return nil, err
		}
		// questions stay hidden from students until the exam starts
		if e.StatusAt(core.NowFunc()) == StatusScheduled {
			return []Question{}, nil
		}
		for i := range questions {
			questions[i].Answer = ""
		}
	}
	return questions, nil
}

func (svc *service) UpdateQuestion(ctx context.Context, actor user.User, e Exam, questionID string, nq NewQuestion) (Question, error) {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return Question{}, err
	}
	q, err := svc.repo.GetQuestion(ctx, e.ID, questionID)
	if err != nil {
		return Question{}, err
	}
	q.Kind = nq.Kind
	q.Text = nq.Text
	q.Options = nq.Options
	q.Answer = nq.Answer
	q.Points = nq.Points
	q.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateQuestion(ctx, q)
}

func (svc *service) DeleteQuestion(ctx context.Context, actor user.User, e Exam, questionID string) error {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return err
	}
	return svc.repo.DeleteQuestion(ctx, e.ID, questionID)
}

// ReorderQuestions requires order.IDs to be a permutation of the exam's question ids.
func (svc *service) ReorderQuestions(ctx context.Context, actor user.User, e Exam, order QuestionOrder) ([]Question, error) {
	if err := svc.checkManage(ctx, actor, e); err != nil {
		return nil, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, e.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying questions")
	}

	current := make([]string, 0, len(questions))
	for _, q := range questions {
		current = append(current, q.ID)
	}
	wanted := append([]string(nil), order.IDs...)
	sort.Strings(current)
	sort.Strings(wanted)
	if len(current) != len(wanted) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "ids", Error: errInvalidOrder})
	}
	for i := range current {
		if current[i] != wanted[i] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ids", Error: errInvalidOrder})
		}
	}

	if err := svc.repo.SetQuestionPositions(ctx, e.ID, order.IDs); err != nil {
		return nil, errors.Wrap(err, "setting question positions")
	}
	return svc.repo.QueryQuestions(ctx, e.ID)
}
