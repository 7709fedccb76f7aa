package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/nyxmentor/portal/apps/api/echo"
	"github.com/nyxmentor/portal/core"
	"github.com/nyxmentor/portal/core/evaluation"
	"github.com/nyxmentor/portal/core/faq"
	"github.com/nyxmentor/portal/core/progress"
	"github.com/nyxmentor/portal/core/question"
	"github.com/nyxmentor/portal/core/training"
	"github.com/nyxmentor/portal/core/user"
	emailsvc "github.com/nyxmentor/portal/services/email"
	"github.com/nyxmentor/portal/services/notify"
	inmemdb "github.com/nyxmentor/portal/storage/database/inmem"
	testutil "github.com/nyxmentor/portal/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app      echoapi.Server
	conf     *core.Config
	clock    *testutil.Clock
	logger   *testutil.Logger
	usrRepo  user.Repository
	trRepo   training.Repository
	qRepo    question.Repository
	evalRepo evaluation.Repository
	faqRepo  faq.Repository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := testutil.NewConfig()
	db := inmemdb.NewDB()
	f := &fixture{
		conf:     conf,
		clock:    testutil.NewClock(testutil.BusinessHour(t)),
		logger:   new(testutil.Logger),
		usrRepo:  inmemdb.NewUserRepository(db),
		trRepo:   inmemdb.NewTrainingRepository(db),
		qRepo:    inmemdb.NewQuestionRepository(db),
		evalRepo: inmemdb.NewEvaluationRepository(db),
		faqRepo:  inmemdb.NewFAQRepository(db),
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, f.logger)
	emailsvc.ResetSentMessages()

	mailSvc := emailsvc.NewConsoleServiceMock(conf, f.logger)
	trSvc := training.NewService(f.trRepo)
	evalSvc, err := evaluation.NewService(
		f.evalRepo,
		question.NewService(f.qRepo),
		notify.NewApprovalNotifier(mailSvc, conf),
		conf,
		f.logger,
		evaluation.WithClock(f.clock.Now),
		evaluation.WithRandSource(rand.NewSource(7)),
	)
	if err != nil {
		t.Fatalf("evaluation.NewService(): %v", err)
	}

	f.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:          conf,
		Logger:        f.logger,
		UserSvc:       user.NewService(f.usrRepo, conf),
		TrainingSvc:   trSvc,
		ProgressSvc:   progress.NewService(inmemdb.NewProgressRepository(db), trSvc, evalSvc, f.logger),
		EvaluationSvc: evalSvc,
		FAQSvc:        faq.NewService(f.faqRepo),
		Validate:      validate,
		Translator:    translator,
	})
	return f
}

// serve runs a request against the app and returns the recorder.
func (f *fixture) serve(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	f.app.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, f.serve(method, tt.path, tt.token, tt.body))
		})
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

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.NewToken(conf, usr)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %s: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, isList := j1.([]interface{}); !isList {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestHome(t *testing.T) {
	f := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	f.app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "Welcome to Portal API!" {
		t.Errorf("GET / = %d %q", rec.Code, rec.Body.String())
	}
}

func TestServerErrorsAreLogged(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.usrRepo, "Ada", "ada.cap@adviser.com", core.RoleAdvisor)
	token := getToken(t, f.conf, usr)

	// an evaluation without questions cannot be scored
	ctx := context.Background()
	_, err := f.evalRepo.CreateEvaluation(ctx, evaluation.Evaluation{
		UserID: usr.ID, Status: evaluation.StatusPending, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("CreateEvaluation(): %v", err)
	}

	rec := f.serve(http.MethodPost, "/api/evaluations/submit", token, []byte(`{"answers":[]}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusInternalServerError, wantData: marchallObj(t, httpErr{Error: "Internal Server Error"})}, rec)
	if n := f.logger.Count("error"); n != 1 {
		t.Errorf("logged %d errors, want 1", n)
	}
}
