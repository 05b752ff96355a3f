package echoapi

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core/document"
	"github.com/trezcool/quizforge/core/stats"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/tests"
)

func Test_documentApi(t *testing.T) {
	app := setup(t)

	tutor := testutil.CreateUser(t, app.usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	outsider := testutil.CreateUser(t, app.usrRepo, "Zero", "zero", "zero@test.cd", "", []string{user.RoleStudent}, true)
	cls := app.createClass(t, tutor, "Maths")
	_, err := app.enrolRepo.Enroll(context.Background(), cls.ID, student.ID)
	require.NoError(t, err)

	tutorToken := app.getToken(t, tutor)
	studentToken := app.getToken(t, student)

	t.Run("students cannot upload", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/documents", studentToken, "file", "notes.txt", []byte("hello"), nil)
		assert.Equal(t, http.StatusForbidden, app.serve(req, rec).Code)
	})

	t.Run("empty file", func(t *testing.T) {
		req, rec := newUploadRequest(t, "/v1/documents", tutorToken, "file", "notes.txt", nil, nil)
		rec = app.serve(req, rec)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), []byte(`{"file": "file is empty"}`))
		assert.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	req, rec := newUploadRequest(t, "/v1/documents", tutorToken, "file", "../Chapter 1 (draft).txt", []byte("hello"), map[string]string{"class_id": cls.ID})
	rec = app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var doc document.Document
	unmarshal(t, rec, &doc)
	assert.Equal(t, "Chapter 1 (draft).txt", doc.Name)
	assert.Equal(t, cls.ID, doc.ClassID)
	assert.Equal(t, int64(5), doc.Size)
	assert.True(t, strings.HasPrefix(doc.Path, tutor.ID+"/"))
	assert.True(t, strings.HasSuffix(doc.Path, "-Chapter_1_draft_.txt"), doc.Path)

	_, content, ok := app.storage.Object(doc.Bucket, doc.Path)
	require.True(t, ok)
	assert.Equal(t, "hello", string(content))

	docPath := "/v1/documents/" + doc.ID
	app.runTests(t, []httpTest{
		{name: "owner sees document", path: docPath, token: tutorToken, wantCode: http.StatusOK, wantData: marchallObj(t, doc)},
		{name: "enrolled student sees document", path: docPath, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, doc)},
		{name: "outsider gets 404", path: docPath, token: app.getToken(t, outsider), wantCode: http.StatusNotFound},
		{name: "student cannot delete", method: http.MethodDelete, path: docPath, token: studentToken, wantCode: http.StatusForbidden},
	})

	t.Run("download link", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, docPath+"/download", studentToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var link document.DownloadLink
		unmarshal(t, rec, &link)
		assert.Contains(t, link.URL, "/storage/v1/object/sign/"+doc.Bucket+"/")
		assert.False(t, link.ExpiresAt.IsZero())
	})

	t.Run("dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/dashboard", tutorToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var dash stats.Dashboard
		unmarshal(t, rec, &dash)
		assert.Nil(t, dash.Users)
		assert.Equal(t, 1, dash.Classes)
		assert.Equal(t, 1, dash.Documents)
		require.NotNil(t, dash.Students)
		assert.Equal(t, 1, *dash.Students)

		req, rec = newAuthRequest(http.MethodGet, "/v1/dashboard", app.getToken(t, outsider))
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &dash)
		assert.Equal(t, 0, dash.Classes)
		assert.Equal(t, 0, dash.Documents)
	})

	t.Run("owner deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, docPath, tutorToken)
		require.Equal(t, http.StatusNoContent, app.serve(req, rec).Code)

		_, _, ok := app.storage.Object(doc.Bucket, doc.Path)
		assert.False(t, ok)

		req, rec = newAuthRequest(http.MethodGet, docPath, tutorToken)
		assert.Equal(t, http.StatusNotFound, app.serve(req, rec).Code)
	})
}

func Test_userApi_setAvatar(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "", []string{user.RoleTutor}, true)
	other := testutil.CreateUser(t, app.usrRepo, "Other", "other", "other@test.cd", "", []string{user.RoleTutor}, true)
	token := app.getToken(t, usr)

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x++ {
		img.Set(x, x%480, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	avatarRequest := func(id string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
		req, rec := newUploadRequest(t, "/v1/users/"+id+"/avatar", token, "avatar", "me.png", content, nil)
		req.Method = http.MethodPut
		return req, rec
	}

	t.Run("not an image", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, app.serve(avatarRequest(usr.ID, []byte("lol"))).Code)
	})

	t.Run("someone else's avatar", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, app.serve(avatarRequest(other.ID, buf.Bytes())).Code)
	})

	t.Run("set avatar", func(t *testing.T) {
		rec := app.serve(avatarRequest(usr.ID, buf.Bytes()))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated user.User
		unmarshal(t, rec, &updated)
		assert.NotEmpty(t, updated.AvatarURL)
		assert.Equal(t, 1, app.storage.Len())
	})
}
