package exam_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/enrollment"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/services/email"
	"github.com/trezcool/quizforge/services/logger"
	"github.com/trezcool/quizforge/services/sms"
	"github.com/trezcool/quizforge/storage/database/inmem"
	"github.com/trezcool/quizforge/tests"
)

func TestService_PublishNotifiesStudents(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	enrolRepo := inmemdb.NewEnrollmentRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	smsSvc := smssvc.NewConsoleServiceMock()

	usrSvc := user.NewService(usrRepo, mailSvc, nil, conf)
	clsSvc := class.NewService(inmemdb.NewClassRepository(db))
	enrolSvc := enrollment.NewService(enrolRepo, clsSvc, usrSvc, mailSvc, validator.New())
	svc := exam.NewService(inmemdb.NewExamRepository(db), clsSvc, enrolSvc, usrSvc, mailSvc, smsSvc, logger)

	tutor := testutil.CreateUser(t, usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	cls, err := clsSvc.Create(ctx, tutor, class.NewClass{Name: "Physics"})
	require.NoError(t, err)

	newStudent := func(name, email, phone string, active bool) {
		usr := testutil.CreateUser(t, usrRepo, name, "", email, "", []string{user.RoleStudent}, active)
		if phone != "" {
			usr.Phone = phone
			_, err := usrRepo.UpdateUser(ctx, usr)
			require.NoError(t, err)
		}
		_, err := enrolRepo.Enroll(ctx, cls.ID, usr.ID)
		require.NoError(t, err)
	}
	newStudent("Hero", "hero@test.cd", "+243810000001", true)
	newStudent("Zero", "zero@test.cd", "", true)
	newStudent("Gone", "gone@test.cd", "+243810000002", false)

	start := time.Now().Add(48 * time.Hour).UTC()
	e, err := svc.Create(ctx, tutor, exam.NewExam{Title: "Kinematics", ClassID: cls.ID, DurationMinutes: 60, StartTime: start})
	require.NoError(t, err)

	e, err = svc.Publish(ctx, tutor, e)
	require.NoError(t, err)
	assert.True(t, e.IsPublished)
	assert.Equal(t, exam.StatusScheduled, e.Status)

	mails := mailSvc.SentMessages()
	require.Len(t, mails, 2)
	var recipients []string
	for _, m := range mails {
		recipients = append(recipients, m.To[0].Address)
	}
	assert.ElementsMatch(t, []string{"hero@test.cd", "zero@test.cd"}, recipients)

	texts := smsSvc.SentMessages()
	require.Len(t, texts, 1)
	assert.Equal(t, "+243810000001", texts[0].To)
	assert.Contains(t, texts[0].Body, "Kinematics")

	t.Run("other tutors cannot publish", func(t *testing.T) {
		other := testutil.CreateUser(t, usrRepo, "Other", "other1", "other@test.cd", "", []string{user.RoleTutor}, true)
		_, err := svc.Unpublish(ctx, other, e)
		assert.Error(t, err)
	})
}

func TestService_ListQuestionsBeforeStart(t *testing.T) {
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	enrolRepo := inmemdb.NewEnrollmentRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)

	usrSvc := user.NewService(usrRepo, mailSvc, nil, conf)
	clsSvc := class.NewService(inmemdb.NewClassRepository(db))
	enrolSvc := enrollment.NewService(enrolRepo, clsSvc, usrSvc, mailSvc, validator.New())
	svc := exam.NewService(inmemdb.NewExamRepository(db), clsSvc, enrolSvc, usrSvc, mailSvc, nil, logger)

	tutor := testutil.CreateUser(t, usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	cls, err := clsSvc.Create(ctx, tutor, class.NewClass{Name: "Chemistry"})
	require.NoError(t, err)
	_, err = enrolRepo.Enroll(ctx, cls.ID, student.ID)
	require.NoError(t, err)

	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	e, err := svc.Create(ctx, tutor, exam.NewExam{Title: "Acids", ClassID: cls.ID, DurationMinutes: 30, StartTime: start})
	require.NoError(t, err)
	_, err = svc.AddQuestion(ctx, tutor, e, exam.NewQuestion{Kind: exam.KindShortAnswer, Text: "pH of water?", Answer: "7"})
	require.NoError(t, err)
	e, err = svc.Publish(ctx, tutor, e)
	require.NoError(t, err)

	nowFunc := core.NowFunc
	t.Cleanup(func() { core.NowFunc = nowFunc })

	tests := []struct {
		name       string
		actor      user.User
		now        time.Time
		wantCount  int
		wantAnswer string
	}{
		{name: "student before start", actor: student, now: start.Add(-time.Second), wantCount: 0},
		{name: "tutor before start", actor: tutor, now: start.Add(-time.Second), wantCount: 1, wantAnswer: "7"},
		{name: "student at start", actor: student, now: start, wantCount: 1},
		{name: "student after end", actor: student, now: start.Add(time.Hour), wantCount: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			core.NowFunc = func() time.Time { return now }

			questions, err := svc.ListQuestions(ctx, tt.actor, e)
			require.NoError(t, err)
			require.Len(t, questions, tt.wantCount)
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantAnswer, questions[0].Answer)
				assert.Equal(t, "pH of water?", questions[0].Text)
			}
		})
	}
}
