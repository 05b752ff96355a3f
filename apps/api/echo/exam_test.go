package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/tests"
)

func Test_examApi(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	tutor := testutil.CreateUser(t, app.usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Zero", "zero", "zero@test.cd", "", []string{user.RoleStudent}, true)
	cls := app.createClass(t, tutor, "Maths")
	_, err := app.enrolRepo.Enroll(ctx, cls.ID, student.ID)
	require.NoError(t, err)

	tutorToken := app.getToken(t, tutor)
	studentToken := app.getToken(t, student)

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	before := start.Add(-time.Hour)
	newExam := func(classID string, end *time.Time) []byte {
		return marchallObj(t, exam.NewExam{
			Title: "Algebra quiz", ClassID: classID, DurationMinutes: 30, StartTime: start, EndTime: end,
		})
	}

	app.runTests(t, []httpTest{
		{
			name: "students cannot create exams", method: http.MethodPost, path: "/v1/exams", body: newExam(cls.ID, nil),
			token: studentToken, wantCode: http.StatusForbidden,
		},
		{
			name: "end before start", method: http.MethodPost, path: "/v1/exams", body: newExam(cls.ID, &before),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"end_time": "end time must be after start time"}`),
		},
		{
			name: "unknown class", method: http.MethodPost, path: "/v1/exams", body: newExam("3f1e7a52-8f7e-4e3c-9a57-1c1a4e0d2b11", nil),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"class_id": "class not found"}`),
		},
	})

	// create
	req, rec := newAuthRequest(http.MethodPost, "/v1/exams", tutorToken, newExam(cls.ID, nil))
	rec = app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e exam.Exam
	unmarshal(t, rec, &e)
	assert.Equal(t, tutor.ID, e.CreatorID)
	assert.False(t, e.IsPublished)
	assert.Equal(t, exam.StatusDraft, e.Status)

	examPath := "/v1/exams/" + e.ID
	question := marchallObj(t, exam.NewQuestion{
		Kind: exam.KindMultipleChoice, Text: "2 + 2 = ?", Options: []string{"3", "4", "5"}, Answer: "4", Points: 2,
	})
	app.runTests(t, []httpTest{
		{
			name: "answer must be an option", method: http.MethodPost, path: examPath + "/questions",
			body: marchallObj(t, exam.NewQuestion{
				Kind: exam.KindMultipleChoice, Text: "2 + 2 = ?", Options: []string{"3", "5"}, Answer: "4",
			}),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"answer": "answer must be one of the options"}`),
		},
		{
			name: "options must be unique", method: http.MethodPost, path: examPath + "/questions",
			body: marchallObj(t, exam.NewQuestion{
				Kind: exam.KindMultipleChoice, Text: "2 + 2 = ?", Options: []string{"4", "3", "4"}, Answer: "4",
			}),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"options": "options must be unique"}`),
		},
		{name: "add question", method: http.MethodPost, path: examPath + "/questions", body: question, token: tutorToken, wantCode: http.StatusCreated},
		{name: "unpublished exam is hidden from students", path: examPath, token: studentToken, wantCode: http.StatusNotFound},
		{name: "unpublished questions are hidden from students", path: examPath + "/questions", token: studentToken, wantCode: http.StatusNotFound},
		{name: "students list no unpublished exams", path: "/v1/exams", token: studentToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "students cannot publish", method: http.MethodPost, path: examPath + "/publish", token: studentToken, wantCode: http.StatusNotFound},
		{name: "publish", method: http.MethodPost, path: examPath + "/publish", token: tutorToken, wantCode: http.StatusOK},
		{name: "published exam is visible to students", path: examPath, token: studentToken, wantCode: http.StatusOK},
		{name: "but not to outsiders", path: examPath, token: app.getToken(t, outsider), wantCode: http.StatusNotFound},
		{
			name: "students cannot add questions", method: http.MethodPost, path: examPath + "/questions", body: question,
			token: studentToken, wantCode: http.StatusForbidden,
		},
	})

	t.Run("students get no questions before start", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, examPath+"/questions", studentToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("students get questions without answers", func(t *testing.T) {
		nowFunc := core.NowFunc
		core.NowFunc = func() time.Time { return start.Add(time.Minute) }
		t.Cleanup(func() { core.NowFunc = nowFunc })

		req, rec := newAuthRequest(http.MethodGet, examPath+"/questions", studentToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var questions []exam.Question
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 1)
		assert.Empty(t, questions[0].Answer)
		assert.Equal(t, []string{"3", "4", "5"}, questions[0].Options)

		req, rec = newAuthRequest(http.MethodGet, examPath+"/questions", tutorToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 1)
		assert.Equal(t, "4", questions[0].Answer)
	})

	t.Run("students are notified once", func(t *testing.T) {
		sent := app.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "exam_published", sent[0].TemplateName)
		assert.Equal(t, student.Email, sent[0].To[0].Address)

		// publishing again is a no-op
		req, rec := newAuthRequest(http.MethodPost, examPath+"/publish", tutorToken)
		require.Equal(t, http.StatusOK, app.serve(req, rec).Code)
		assert.Len(t, app.mailSvc.SentMessages(), 1)
	})

	t.Run("reorder questions", func(t *testing.T) {
		var ids []string
		for i := 0; i < 2; i++ {
			q := exam.NewQuestion{Kind: exam.KindTrueFalse, Text: fmt.Sprintf("Q%d", i), Options: []string{"true", "false"}, Answer: "true"}
			req, rec := newAuthRequest(http.MethodPost, examPath+"/questions", tutorToken, marchallObj(t, q))
			rec = app.serve(req, rec)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var created exam.Question
			unmarshal(t, rec, &created)
			ids = append(ids, created.ID)
		}

		req, rec := newAuthRequest(http.MethodGet, examPath+"/questions", tutorToken)
		rec = app.serve(req, rec)
		var questions []exam.Question
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 3)
		order := []string{ids[1], questions[0].ID, ids[0]}

		req, rec = newAuthRequest(http.MethodPut, examPath+"/questions/order", tutorToken, marchallObj(t, exam.QuestionOrder{IDs: order}))
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &questions)
		require.Len(t, questions, 3)
		for i, q := range questions {
			assert.Equal(t, order[i], q.ID)
			assert.Equal(t, i, q.Position)
		}
	})

	t.Run("unpublish hides the exam again", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, examPath+"/unpublish", tutorToken)
		require.Equal(t, http.StatusOK, app.serve(req, rec).Code)

		req, rec = newAuthRequest(http.MethodGet, examPath, studentToken)
		assert.Equal(t, http.StatusNotFound, app.serve(req, rec).Code)
	})
}

func Test_examApi_manage(t *testing.T) {
	app := setup(t)
	ctx := context.Background()

	tutor := testutil.CreateUser(t, app.usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	cls := app.createClass(t, tutor, "Maths")
	_, err := app.enrolRepo.Enroll(ctx, cls.ID, student.ID)
	require.NoError(t, err)

	tutorToken := app.getToken(t, tutor)
	studentToken := app.getToken(t, student)

	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	req, rec := newAuthRequest(http.MethodPost, "/v1/exams", tutorToken, marchallObj(t, exam.NewExam{
		Title: "Geometry", ClassID: cls.ID, DurationMinutes: 45, StartTime: start,
	}))
	rec = app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var e exam.Exam
	unmarshal(t, rec, &e)
	examPath := "/v1/exams/" + e.ID

	question := marchallObj(t, exam.NewQuestion{Kind: exam.KindTrueFalse, Text: "A square is a rectangle", Answer: "true"})
	req, rec = newAuthRequest(http.MethodPost, examPath+"/questions", tutorToken, question)
	rec = app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var q exam.Question
	unmarshal(t, rec, &q)
	questionPath := examPath + "/questions/" + q.ID

	req, rec = newAuthRequest(http.MethodPost, examPath+"/publish", tutorToken)
	require.Equal(t, http.StatusOK, app.serve(req, rec).Code)

	atStart := start
	beforeStart := start.Add(-time.Minute)
	update := func(end *time.Time) []byte {
		return marchallObj(t, exam.UpdateExam{Title: "Geometry", DurationMinutes: 45, StartTime: start, EndTime: end})
	}
	order := marchallObj(t, exam.QuestionOrder{IDs: []string{q.ID}})

	app.runTests(t, []httpTest{
		{
			name: "end time equal to start time", method: http.MethodPut, path: examPath, body: update(&atStart),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"end_time": "end time must be after start time"}`),
		},
		{
			name: "end time before start time", method: http.MethodPut, path: examPath, body: update(&beforeStart),
			token: tutorToken, wantCode: http.StatusBadRequest, wantData: []byte(`{"end_time": "end time must be after start time"}`),
		},
		{name: "students cannot update", method: http.MethodPut, path: examPath, body: update(nil), token: studentToken, wantCode: http.StatusForbidden},
		{name: "students cannot delete", method: http.MethodDelete, path: examPath, token: studentToken, wantCode: http.StatusForbidden},
		{name: "students cannot unpublish", method: http.MethodPost, path: examPath + "/unpublish", token: studentToken, wantCode: http.StatusForbidden},
		{name: "students cannot reorder", method: http.MethodPut, path: examPath + "/questions/order", body: order, token: studentToken, wantCode: http.StatusForbidden},
		{name: "students cannot update questions", method: http.MethodPut, path: questionPath, body: question, token: studentToken, wantCode: http.StatusForbidden},
		{name: "students cannot delete questions", method: http.MethodDelete, path: questionPath, token: studentToken, wantCode: http.StatusForbidden},
		{name: "tutor updates", method: http.MethodPut, path: examPath, body: update(nil), token: tutorToken, wantCode: http.StatusOK},
		{name: "tutor deletes question", method: http.MethodDelete, path: questionPath, token: tutorToken, wantCode: http.StatusNoContent},
		{name: "tutor deletes", method: http.MethodDelete, path: examPath, token: tutorToken, wantCode: http.StatusNoContent},
	})
}
