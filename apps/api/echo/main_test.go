package echoapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quizforge/core"
	"github.com/trezcool/quizforge/core/class"
	"github.com/trezcool/quizforge/core/document"
	"github.com/trezcool/quizforge/core/enrollment"
	"github.com/trezcool/quizforge/core/exam"
	"github.com/trezcool/quizforge/core/institution"
	"github.com/trezcool/quizforge/core/stats"
	"github.com/trezcool/quizforge/core/user"
	"github.com/trezcool/quizforge/services/email"
	"github.com/trezcool/quizforge/services/logger"
	"github.com/trezcool/quizforge/services/storage"
	"github.com/trezcool/quizforge/storage/cache"
	"github.com/trezcool/quizforge/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	srv       *Server
	usrRepo   user.Repository
	clsSvc    class.Service
	enrolRepo enrollment.Repository
	mailSvc   *emailsvc.ConsoleServiceMock
	storage   *storagesvc.MemoryStorage
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	enrolRepo := inmemdb.NewEnrollmentRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	fileStorage := storagesvc.NewMemoryStorage("")
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator, logger)
	exam.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	usrSvc := user.NewService(usrRepo, mailSvc, nil, conf)
	instSvc := institution.NewService(inmemdb.NewInstitutionRepository(db))
	clsSvc := class.NewService(inmemdb.NewClassRepository(db))
	enrolSvc := enrollment.NewService(enrolRepo, clsSvc, usrSvc, mailSvc, validate)
	examSvc := exam.NewService(inmemdb.NewExamRepository(db), clsSvc, enrolSvc, usrSvc, mailSvc, nil, logger)
	docSvc := document.NewService(inmemdb.NewDocumentRepository(db), fileStorage, clsSvc, usrSvc, conf.Storage, logger)
	statsSvc := stats.NewService(usrSvc, clsSvc, enrolSvc, examSvc, docSvc)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Blacklist:      cache.NewMemoryBlacklist(),
		UserSvc:        usrSvc,
		InstitutionSvc: instSvc,
		ClassSvc:       clsSvc,
		EnrollmentSvc:  enrolSvc,
		ExamSvc:        examSvc,
		DocumentSvc:    docSvc,
		StatsSvc:       statsSvc,
		DisableReqLogs: true,
	})
	t.Cleanup(func() { _ = srv.Close() })

	return &testApp{
		srv:       srv,
		usrRepo:   usrRepo,
		clsSvc:    clsSvc,
		enrolRepo: enrolRepo,
		mailSvc:   mailSvc,
		storage:   fileStorage,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request holding one file under field plus the extra form values.
func newUploadRequest(t *testing.T, path, token, field, filename string, content []byte, values map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func (app *testApp) serve(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.srv.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.srv.auth.generateToken(app.srv.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func (app *testApp) runTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, app.serve(req, rec))
		})
	}
}

func Test_home(t *testing.T) {
	app := setup(t)
	rec := app.serve(newRequest(http.MethodGet, "/"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to QuizForge API!", rec.Body.String())
}
