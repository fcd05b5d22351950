package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	. "github.com/techsoc/clubhub/apps/api/echo"
	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/announcement"
	"github.com/techsoc/clubhub/core/dashboard"
	"github.com/techsoc/clubhub/core/event"
	"github.com/techsoc/clubhub/core/member"
	"github.com/techsoc/clubhub/core/project"
	"github.com/techsoc/clubhub/core/resource"
	"github.com/techsoc/clubhub/core/user"
	emailsvc "github.com/techsoc/clubhub/services/email"
	inmemdb "github.com/techsoc/clubhub/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

// testApp bundles the server under test with its backing repos so tests can
// seed data directly.
type testApp struct {
	server  *Server
	conf    *core.Config
	usrRepo user.Repository
	appRepo member.Repository
	annRepo announcement.Repository
	evtRepo event.Repository
}

func testConf() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "ClubHub",
		SecretKey:        "secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "ClubHub", Address: "noreply@techsoc.org"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Announcement: core.AnnouncementConfig{
			Workers:   2,
			SendRate:  10000,
			SendBurst: 100,
		},
	}
}

func setup(t *testing.T) *testApp {
	t.Helper()

	conf := testConf()
	logger := nopLogger{}

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	appRepo := inmemdb.NewMemberRepository(db)
	annRepo := inmemdb.NewAnnouncementRepository(db)
	evtRepo := inmemdb.NewEventRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ClearSentMessages()

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	memberSvc := member.NewService(appRepo, mailSvc, conf)
	annSvc := announcement.NewService(annRepo, memberSvc, mailSvc, logger, conf)
	eventSvc := event.NewService(evtRepo)
	projectSvc := project.NewService(inmemdb.NewProjectRepository(db))
	resourceSvc := resource.NewService(inmemdb.NewResourceRepository(db))
	dashSvc := dashboard.NewService(inmemdb.NewDashboardRepository(db), memberSvc)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	server := NewServer(
		ServerDeps{
			Conf:            conf,
			Logger:          logger,
			UserSvc:         usrSvc,
			MemberSvc:       memberSvc,
			AnnouncementSvc: annSvc,
			EventSvc:        eventSvc,
			ProjectSvc:      projectSvc,
			ResourceSvc:     resourceSvc,
			DashboardSvc:    dashSvc,
			Validate:        validate,
			Translator:      translator,
		},
	)

	return &testApp{
		server:  server,
		conf:    conf,
		usrRepo: usrRepo,
		appRepo: appRepo,
		annRepo: annRepo,
		evtRepo: evtRepo,
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// createUser seeds a user directly through the repo.
func (app *testApp) createUser(t *testing.T, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword() failed: %v", err)
	}
	usr, err := app.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (app *testApp) createAdmin(t *testing.T) user.User {
	t.Helper()
	return app.createUser(t, "Admin", "admin", "admin@techsoc.org", "S3cr3t!Pass", user.AllRoles, true)
}

func (app *testApp) createMemberUser(t *testing.T) user.User {
	t.Helper()
	return app.createUser(t, "Member", "member", "member@techsoc.org", "S3cr3t!Pass", user.MemberRoles, true)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := GetUserClaims(app.conf, usr)
	token, err := GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
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

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
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
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
