package member_test

import (
	"context"
	"net/mail"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/member"
	emailsvc "github.com/techsoc/clubhub/services/email"
	inmemdb "github.com/techsoc/clubhub/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func testConf() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "ClubHub",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "ClubHub", Address: "noreply@techsoc.org"},
	}
}

func setup(t *testing.T) *member.Service {
	t.Helper()
	conf := testConf()
	core.ParseEmailTemplates(conf, nopLogger{})
	emailsvc.ClearSentMessages()
	repo := inmemdb.NewMemberRepository(inmemdb.NewDB())
	return member.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf)
}

func apply(t *testing.T, svc *member.Service, firstName, email string) member.Application {
	t.Helper()
	app, err := svc.Apply(context.Background(), member.NewApplication{
		FirstName:  firstName,
		LastName:   "Doe",
		Email:      email,
		Major:      "CS",
		Year:       "2",
		Motivation: "I like computers",
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return app
}

func TestService_Apply(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	app := apply(t, svc, "Jane", "jane@x.org")
	if app.ID == "" {
		t.Error("ID not assigned")
	}
	if app.Status != member.StatusPending {
		t.Errorf("Status = %v, want %v", app.Status, member.StatusPending)
	}
	if app.DecidedAt != nil || app.DecidedBy != "" {
		t.Errorf("fresh application carries a decision: %+v", app)
	}

	got, err := svc.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Email != "jane@x.org" {
		t.Errorf("Email = %q, want %q", got.Email, "jane@x.org")
	}
	if got.FullName() != "Jane Doe" {
		t.Errorf("FullName() = %q, want %q", got.FullName(), "Jane Doe")
	}
}

func TestService_Approve(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	app := apply(t, svc, "Jane", "jane@x.org")

	got, err := svc.Approve(ctx, app.ID, "admin")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if got.Status != member.StatusApproved {
		t.Errorf("Status = %v, want %v", got.Status, member.StatusApproved)
	}
	if got.DecidedBy != "admin" {
		t.Errorf("DecidedBy = %q, want %q", got.DecidedBy, "admin")
	}
	if got.DecidedAt == nil {
		t.Error("DecidedAt not stamped")
	}

	// welcome email
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("got %d sent messages, want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if msg.Subject != "Welcome aboard!" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if msg.To[0].Address != "jane@x.org" {
		t.Errorf("To = %v", msg.To)
	}
	if !strings.Contains(msg.TextContent, "Jane Doe") {
		t.Errorf("TextContent does not greet the applicant:\n%s", msg.TextContent)
	}

	// second decision is rejected
	_, err = svc.Approve(ctx, app.ID, "admin")
	assertValidationErr(t, err, member.ErrAlreadyDecided)
	_, err = svc.Reject(ctx, app.ID, "admin")
	assertValidationErr(t, err, member.ErrAlreadyDecided)
}

func TestService_Reject(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)
	app := apply(t, svc, "John", "john@x.org")

	got, err := svc.Reject(ctx, app.ID, "admin")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.Status != member.StatusRejected {
		t.Errorf("Status = %v, want %v", got.Status, member.StatusRejected)
	}
	if len(emailsvc.SentMessages) != 0 {
		t.Errorf("got %d sent messages, want 0", len(emailsvc.SentMessages))
	}

	t.Run("unknown application", func(t *testing.T) {
		if _, err := svc.Reject(ctx, "missing", "admin"); errors.Cause(err) != member.ErrNotFound {
			t.Errorf("Reject() error = %v, want %v", err, member.ErrNotFound)
		}
	})
}

func TestService_ApprovedEmails(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	jane := apply(t, svc, "Jane", "jane@x.org")
	apply(t, svc, "John", "john@x.org")
	bob := apply(t, svc, "Bob", "bob@x.org")

	if _, err := svc.Approve(ctx, jane.ID, "admin"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := svc.Reject(ctx, bob.ID, "admin"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	emails, err := svc.ApprovedEmails(ctx)
	if err != nil {
		t.Fatalf("ApprovedEmails() error = %v", err)
	}
	if len(emails) != 1 || emails[0] != "jane@x.org" {
		t.Errorf("ApprovedEmails() = %v, want [jane@x.org]", emails)
	}
}

func TestService_CountByStatus(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	jane := apply(t, svc, "Jane", "jane@x.org")
	apply(t, svc, "John", "john@x.org")
	bob := apply(t, svc, "Bob", "bob@x.org")

	if _, err := svc.Approve(ctx, jane.ID, "admin"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := svc.Reject(ctx, bob.ID, "admin"); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	counts, err := svc.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	want := map[member.Status]int{
		member.StatusPending:  1,
		member.StatusApproved: 1,
		member.StatusRejected: 1,
	}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("counts[%s] = %d, want %d", status, counts[status], n)
		}
	}
}

func TestNewApplication_Validate(t *testing.T) {
	svc := setup(t)
	apply(t, svc, "Jane", "jane@x.org")

	validate := validator.New()

	t.Run("duplicate email", func(t *testing.T) {
		na := member.NewApplication{
			FirstName: "Jane",
			LastName:  "Again",
			Email:     " JANE@x.org ",
		}
		err := na.Validate(validate, svc)
		assertValidationErr(t, err, member.ErrEmailExists)
	})

	t.Run("fields cleaned", func(t *testing.T) {
		na := member.NewApplication{
			FirstName: "  Ann  ",
			LastName:  "Lee",
			Email:     " Ann@x.org ",
		}
		if err := na.Validate(validate, svc); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if na.FirstName != "Ann" || na.Email != "ann@x.org" {
			t.Errorf("fields not cleaned: %+v", na)
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		na := member.NewApplication{Email: "bad"}
		if err := na.Validate(validate, svc); err == nil {
			t.Fatal("Validate() expected error, got nil")
		}
	})
}

func assertValidationErr(t *testing.T, err, want error) {
	t.Helper()
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("error = %v, want *core.ValidationError", err)
	}
	if vErr.Err != want {
		t.Errorf("ValidationError.Err = %v, want %v", vErr.Err, want)
	}
}
