package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core/institution"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/tests"
)

func Test_institutionApi(t *testing.T) {
	app := setup(t)

	admin := testutil.CreateUser(t, app.usrRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	tutor := testutil.CreateUser(t, app.usrRepo, "Tutor", "tutor1", "tutor1@test.cd", "", []string{user.RoleTutor}, true)
	adminToken := app.getToken(t, admin)
	tutorToken := app.getToken(t, tutor)

	req, rec := newAuthRequest(http.MethodPost, "/v1/institutions", adminToken, marchallObj(t, institution.NewInstitution{Name: "  Lycée Bosangani "}))
	rec = app.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inst institution.Institution
	unmarshal(t, rec, &inst)
	require.Equal(t, "Lycée Bosangani", inst.Name)

	app.runTests(t, []httpTest{
		{name: "unauthenticated", path: "/v1/institutions", wantCode: http.StatusUnauthorized},
		{
			name: "tutors cannot create", method: http.MethodPost, path: "/v1/institutions",
			body: marchallObj(t, institution.NewInstitution{Name: "Other"}), token: tutorToken, wantCode: http.StatusForbidden,
		},
		{
			name: "name required", method: http.MethodPost, path: "/v1/institutions",
			body: marchallObj(t, institution.NewInstitution{Name: " "}), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "this field is required"}`),
		},
		{
			name: "name taken", method: http.MethodPost, path: "/v1/institutions",
			body: marchallObj(t, institution.NewInstitution{Name: "Lycée Bosangani"}), token: adminToken,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"name": "an institution with this name already exists"}`),
		},
		{name: "list", path: "/v1/institutions", token: tutorToken, wantCode: http.StatusOK, wantData: marchallObj(t, []institution.Institution{inst})},
		{name: "retrieve", path: "/v1/institutions/" + inst.ID, token: tutorToken, wantCode: http.StatusOK, wantData: marchallObj(t, inst)},
		{name: "unknown", path: "/v1/institutions/3f1e7a52-8f7e-4e3c-9a57-1c1a4e0d2b11", token: tutorToken, wantCode: http.StatusNotFound},
	})
}
