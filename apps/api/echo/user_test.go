package echoapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/tests"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "Pa55word!", []string{user.RoleTutor}, true)
	testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.cd", "Pa55word!", []string{user.RoleTutor}, false) // 😂

	badCreds := marchallObj(t, httpErr{Error: "authentication failed"})
	tests := []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"username": "this field is required", "password": "this field is required"}`),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "lol", Password: "Pa55word!"}),
			wantCode: http.StatusBadRequest, wantData: badCreds,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "awe", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: badCreds,
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "ndog", Password: "Pa55word!"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	app.runTests(t, tests)

	for _, uname := range []string{"awe", "AWE@test.cd"} {
		t.Run("login with "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: uname, Password: "Pa55word!"}))
			rec = app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Nil(t, resp.User)

			req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
			rec = app.serve(req, rec)
			require.Equal(t, http.StatusOK, rec.Code)
			var me user.User
			unmarshal(t, rec, &me)
			assert.Equal(t, "awe", me.Username)
			assert.False(t, me.LastLogin.IsZero())
		})
	}
}

func Test_userApi_logout(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "Pa55word!", []string{user.RoleTutor}, true)
	token := app.getToken(t, usr)
	otherToken := app.getToken(t, usr)

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/users/logout", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "token works", path: "/v1/users/me", token: token, wantCode: http.StatusOK},
		{name: "logout", method: http.MethodPost, path: "/v1/users/logout", token: token, wantCode: http.StatusNoContent},
		{
			name: "token revoked", path: "/v1/users/me", token: token,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "token has been revoked"}),
		},
		{name: "other sessions survive", path: "/v1/users/me", token: otherToken, wantCode: http.StatusOK},
	}
	app.runTests(t, tests)
}

func Test_userApi_deactivatedUserToken(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "Pa55word!", []string{user.RoleTutor}, true)
	token := app.getToken(t, usr)

	usr.IsActive = false
	_, err := app.usrRepo.UpdateUser(context.Background(), usr)
	require.NoError(t, err)

	app.runTests(t, []httpTest{
		{
			name: "me", path: "/v1/users/me", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh", method: http.MethodPost, path: "/v1/users/token-refresh", token: token,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})
}

func Test_userApi_signup(t *testing.T) {
	app := setup(t)

	testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "", []string{user.RoleTutor}, true)

	tests := []httpTest{
		{
			name: "email taken", method: http.MethodPost, path: "/v1/users/signup",
			body: marchallObj(t, user.SignupUser{
				Name: "Awe", Email: "awe@test.cd", Password: "Tr1cky-Quizz3r!", PasswordConfirm: "Tr1cky-Quizz3r!",
			}),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"email": "a user with this email already exists"}`),
		},
		{
			name: "passwords mismatch", method: http.MethodPost, path: "/v1/users/signup",
			body: marchallObj(t, user.SignupUser{
				Name: "Patrice Lumumba", Email: "patrice@test.cd", Password: "Tr1cky-Quizz3r!", PasswordConfirm: "lol",
			}),
			wantCode: http.StatusBadRequest,
		},
	}
	app.runTests(t, tests)

	t.Run("signup", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/signup", marchallObj(t, user.SignupUser{
			Name: "Patrice Lumumba", Email: "Patrice@test.cd", Password: "Tr1cky-Quizz3r!", PasswordConfirm: "Tr1cky-Quizz3r!",
		}))
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		require.NotNil(t, resp.User)
		assert.Equal(t, "patrice@test.cd", resp.User.Email)
		assert.Equal(t, []string{user.RoleTutor}, resp.User.Roles)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)

	usr := testutil.CreateUser(t, app.usrRepo, "User", "awe", "awe@test.cd", "Pa55word!", []string{user.RoleTutor}, true)

	app.runTests(t, []httpTest{
		{
			name: "invalid email", method: http.MethodPost, path: "/v1/users/password-reset",
			body: []byte(`{"email": "lol"}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "request reset", method: http.MethodPost, path: "/v1/users/password-reset",
			body: []byte(`{"email": "awe@test.cd"}`), wantCode: http.StatusOK,
		},
	})

	sent := app.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
	assert.Equal(t, usr.Email, sent[0].To[0].Address)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, _ := data["UID"].(string)
	token, _ := data["Token"].(string)
	assert.Contains(t, sent[0].TextContent, "/password-reset/"+uid+"/"+token)

	confirm := func(uid, token string) []byte {
		return marchallObj(t, user.ResetUserPassword{
			UID: uid, Token: token, Password: "N3w-Pa55word!", PasswordConfirm: "N3w-Pa55word!",
		})
	}
	app.runTests(t, []httpTest{
		{
			name: "invalid uid", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body: confirm("lol", token), wantCode: http.StatusBadRequest, wantData: []byte(`{"uid": "invalid value"}`),
		},
		{
			name: "invalid token", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body: confirm(uid, "lol"), wantCode: http.StatusBadRequest, wantData: []byte(`{"token": "invalid value"}`),
		},
		{
			name: "reset", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body: confirm(uid, token), wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token is single use", method: http.MethodPost, path: "/v1/users/password-reset-confirm",
			body: confirm(uid, token), wantCode: http.StatusBadRequest, wantData: []byte(`{"token": "invalid value"}`),
		},
		{
			name: "login with new password", method: http.MethodPost, path: "/v1/users/login",
			body: marchallObj(t, LoginRequest{Username: "awe", Password: "N3w-Pa55word!"}), wantCode: http.StatusOK,
		},
	})
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)

	tutor := testutil.CreateUser(t, app.usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)
	naughty := testutil.CreateUser(t, app.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	adminToken := app.getToken(t, admin)

	app.runTests(t, []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: app.getToken(t, tutor),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})

	ids := func(t *testing.T, path string) []string {
		req, rec := newAuthRequest(http.MethodGet, path, adminToken)
		rec = app.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var users []user.User
		unmarshal(t, rec, &users)
		res := make([]string, 0, len(users))
		for _, usr := range users {
			res = append(res, usr.ID)
		}
		return res
	}
	q := func(kv ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(kv); i += 2 {
			v.Add(kv[i], kv[i+1])
		}
		return "/v1/users?" + v.Encode()
	}

	t.Run("all", func(t *testing.T) {
		assert.ElementsMatch(t, []string{tutor.ID, student.ID, naughty.ID, admin.ID}, ids(t, "/v1/users"))
	})
	t.Run("role=student:", func(t *testing.T) {
		assert.ElementsMatch(t, []string{student.ID, naughty.ID}, ids(t, q("role", user.RoleStudent)))
	})
	t.Run("is_active=false", func(t *testing.T) {
		assert.Equal(t, []string{naughty.ID}, ids(t, q("is_active", "false")))
	})
	t.Run("search=DOG", func(t *testing.T) {
		assert.Equal(t, []string{naughty.ID}, ids(t, q("search", "DOG")))
	})
	t.Run("order by name", func(t *testing.T) {
		assert.Equal(t, []string{admin.ID, student.ID, naughty.ID, tutor.ID}, ids(t, q("ordering", "name")))
	})
	t.Run("order by -username", func(t *testing.T) {
		assert.Equal(t, []string{tutor.ID, naughty.ID, student.ID, admin.ID}, ids(t, q("ordering", "-username")))
	})
}

func Test_userApi_destroy(t *testing.T) {
	app := setup(t)

	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner1", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "hero", "hero@test.cd", "", []string{user.RoleStudent}, true)

	adminToken := app.getToken(t, admin)

	app.runTests(t, []httpTest{
		{name: "cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "cannot delete a higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: adminToken, wantCode: http.StatusForbidden},
		{name: "unknown user", method: http.MethodDelete, path: "/v1/users/lol", token: adminToken, wantCode: http.StatusNotFound},
		{name: "delete student", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "student is gone", path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusNotFound},
	})
}

func Test_userApi_update(t *testing.T) {
	app := setup(t)

	owner := testutil.CreateUser(t, app.usrRepo, "Owner", "owner1", "owner@test.cd", "", []string{user.RoleAdminOwner}, true)
	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin1", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateUser(t, app.usrRepo, "Hero", "student1", "hero@test.cd", "", []string{user.RoleStudent}, true)

	adminToken := app.getToken(t, admin)
	deactivate := []byte(`{"is_active": false}`)

	app.runTests(t, []httpTest{
		{name: "cannot update a higher role", method: http.MethodPut, path: "/v1/users/" + owner.ID, body: deactivate, token: adminToken, wantCode: http.StatusForbidden},
		{
			name: "cannot change a higher role's email", method: http.MethodPut, path: "/v1/users/" + owner.ID,
			body: []byte(`{"email": "pwned@test.cd"}`), token: adminToken, wantCode: http.StatusForbidden,
		},
		{
			name: "students cannot change their roles", method: http.MethodPut, path: "/v1/users/" + student.ID,
			body: []byte(`{"roles": ["admin:"]}`), token: app.getToken(t, student), wantCode: http.StatusForbidden,
		},
		{name: "update a lower role", method: http.MethodPut, path: "/v1/users/" + student.ID, body: deactivate, token: adminToken, wantCode: http.StatusOK},
	})

	current, err := app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: owner.ID})
	require.NoError(t, err)
	assert.True(t, current.IsActive)
	assert.Equal(t, "owner@test.cd", current.Email)

	current, err = app.usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	require.NoError(t, err)
	assert.False(t, current.IsActive)
}
