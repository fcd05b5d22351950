package announcement_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/announcement"
	inmemdb "github.com/techsoc/clubhub/storage/database/inmem"
)

// nopLogger keeps dispatcher noise out of test output.
type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

// stubDirectory resolves the `all` scope from a fixed list.
type stubDirectory struct {
	emails []string
	err    error
}

func (d *stubDirectory) ApprovedEmails(ctx context.Context) ([]string, error) {
	return d.emails, d.err
}

// fakeSender records provider calls and fails the addresses it is told to.
type fakeSender struct {
	mu       sync.Mutex
	sent     []string // recipients of successful calls, in call order
	failing  map[string]bool
	subjects map[string]string // recipient -> subject
}

func newFakeSender(failing ...string) *fakeSender {
	s := &fakeSender{failing: make(map[string]bool), subjects: make(map[string]string)}
	for _, email := range failing {
		s.failing[email] = true
	}
	return s
}

func (s *fakeSender) SendMessage(ctx context.Context, msg *core.EmailMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := msg.To[0].Address
	s.subjects[email] = msg.Subject
	if s.failing[email] {
		return "", errors.New("550 mailbox unavailable")
	}
	s.sent = append(s.sent, email)
	return "prov-" + email, nil
}

func (s *fakeSender) recover() {
	s.mu.Lock()
	s.failing = map[string]bool{}
	s.mu.Unlock()
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testConf() *core.Config {
	return &core.Config{
		Announcement: core.AnnouncementConfig{
			Workers:   2,
			SendRate:  10000, // no pacing in tests
			SendBurst: 100,
		},
	}
}

func setup(t *testing.T, dir announcement.MemberDirectory, sender core.EmailSender) (*announcement.Service, announcement.Repository) {
	t.Helper()
	repo := inmemdb.NewAnnouncementRepository(inmemdb.NewDB())
	svc := announcement.NewService(repo, dir, sender, nopLogger{}, testConf())
	return svc, repo
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

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("draft is persisted without dispatch", func(t *testing.T) {
		sender := newFakeSender()
		svc, _ := setup(t, &stubDirectory{emails: []string{"a@x.org"}}, sender)

		ann, res, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:   "AGM",
			Message: "<p>Annual general meeting</p>",
			Scope:   announcement.ScopeAll,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if res != nil {
			t.Errorf("Create() dispatch result = %+v, want nil", res)
		}
		if ann.Status != announcement.StatusDraft {
			t.Errorf("Status = %v, want %v", ann.Status, announcement.StatusDraft)
		}
		if ann.ID == "" {
			t.Error("ID not assigned")
		}
		if n := sender.sentCount(); n != 0 {
			t.Errorf("sender called %d times, want 0", n)
		}
	})

	t.Run("specific scope merges and dedups recipients", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())

		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:         "Hack Night",
			Message:       "<p>Friday 7pm</p>",
			Scope:         announcement.ScopeSpecific,
			Recipients:    []string{" a@x.org ", "b@x.org"},
			RecipientText: "b@x.org, c@x.org\njunk",
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		want := []string{"a@x.org", "b@x.org", "c@x.org"}
		if len(ann.Recipients) != len(want) {
			t.Fatalf("Recipients = %v, want %v", ann.Recipients, want)
		}
		for i, email := range want {
			if ann.Recipients[i] != email {
				t.Errorf("Recipients[%d] = %q, want %q", i, ann.Recipients[i], email)
			}
		}
	})

	t.Run("send now dispatches and marks sent", func(t *testing.T) {
		sender := newFakeSender()
		svc, repo := setup(t, &stubDirectory{}, sender)

		ann, res, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:      "Hack Night",
			Message:    "<p>Friday 7pm</p>",
			Scope:      announcement.ScopeSpecific,
			Recipients: []string{"a@x.org", "b@x.org"},
			SendNow:    true,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if res == nil {
			t.Fatal("Create() dispatch result is nil")
		}
		if res.Requested != 2 || res.Sent != 2 || res.Failed != 0 {
			t.Errorf("result = %+v, want 2 requested / 2 sent", res)
		}
		if res.Message != "Sent to 2 of 2 recipients" {
			t.Errorf("Message = %q", res.Message)
		}
		if ann.Status != announcement.StatusSent {
			t.Errorf("Status = %v, want %v", ann.Status, announcement.StatusSent)
		}
		if ann.SentAt == nil {
			t.Error("SentAt not stamped")
		}
		deliveries, err := repo.QueryDeliveries(ctx, ann.ID)
		if err != nil {
			t.Fatalf("QueryDeliveries() error = %v", err)
		}
		if len(deliveries) != 2 {
			t.Errorf("got %d deliveries, want 2", len(deliveries))
		}
		for _, d := range deliveries {
			if d.Status != announcement.DeliverySent {
				t.Errorf("delivery %s status = %v, want %v", d.Email, d.Status, announcement.DeliverySent)
			}
			if d.ProviderID == "" {
				t.Errorf("delivery %s has no provider id", d.Email)
			}
			if d.SentAt == nil {
				t.Errorf("delivery %s has no SentAt", d.Email)
			}
		}
	})

	t.Run("send now with no recipients persists nothing", func(t *testing.T) {
		svc, repo := setup(t, &stubDirectory{}, newFakeSender())

		_, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:   "Void",
			Message: "msg",
			Scope:   announcement.ScopeSpecific,
			SendNow: true,
		})
		assertValidationErr(t, err, announcement.ErrNoRecipients)

		anns, err := repo.FilterAnnouncements(ctx, announcement.QueryFilter{})
		if err != nil {
			t.Fatalf("FilterAnnouncements() error = %v", err)
		}
		if len(anns) != 0 {
			t.Errorf("got %d announcements, want 0", len(anns))
		}
	})

	t.Run("empty directory fails before persisting", func(t *testing.T) {
		svc, repo := setup(t, &stubDirectory{}, newFakeSender())

		_, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:   "Void",
			Message: "msg",
			Scope:   announcement.ScopeAll,
			SendNow: true,
		})
		assertValidationErr(t, err, announcement.ErrNoRecipients)

		anns, _ := repo.FilterAnnouncements(ctx, announcement.QueryFilter{})
		if len(anns) != 0 {
			t.Errorf("got %d announcements, want 0", len(anns))
		}
	})

	t.Run("priority subject prefixes", func(t *testing.T) {
		sender := newFakeSender()
		svc, _ := setup(t, &stubDirectory{}, sender)

		_, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:      "Server Down",
			Message:    "msg",
			Scope:      announcement.ScopeSpecific,
			Recipients: []string{"a@x.org"},
			Priority:   announcement.PriorityUrgent,
			SendNow:    true,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if got := sender.subjects["a@x.org"]; got != "[URGENT] Server Down" {
			t.Errorf("subject = %q, want %q", got, "[URGENT] Server Down")
		}
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	svc, _ := setup(t, &stubDirectory{}, sender)

	ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
		Title: "Draft", Message: "m", Scope: announcement.ScopeAll,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("edit retargets scope and recipients", func(t *testing.T) {
		got, res, err := svc.Update(ctx, ann.ID, announcement.UpdateAnnouncement{
			Title:      "Edited",
			Message:    "m2",
			Scope:      announcement.ScopeSpecific,
			Recipients: []string{"a@x.org"},
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if res != nil {
			t.Errorf("Update() dispatch result = %+v, want nil", res)
		}
		if got.Title != "Edited" || got.Scope != announcement.ScopeSpecific {
			t.Errorf("got = %+v", got)
		}
		if len(got.Recipients) != 1 || got.Recipients[0] != "a@x.org" {
			t.Errorf("Recipients = %v, want [a@x.org]", got.Recipients)
		}
	})

	t.Run("edit with send now dispatches", func(t *testing.T) {
		got, res, err := svc.Update(ctx, ann.ID, announcement.UpdateAnnouncement{
			Title:      "Edited again",
			Message:    "m3",
			Scope:      announcement.ScopeSpecific,
			Recipients: []string{"a@x.org", "b@x.org"},
			SendNow:    true,
		})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if res == nil || res.Sent != 2 {
			t.Fatalf("result = %+v, want 2 sent", res)
		}
		if got.Status != announcement.StatusSent {
			t.Errorf("Status = %v, want %v", got.Status, announcement.StatusSent)
		}
	})

	t.Run("unknown announcement", func(t *testing.T) {
		_, _, err := svc.Update(ctx, "missing", announcement.UpdateAnnouncement{Title: "T", Message: "m"})
		if errors.Cause(err) != announcement.ErrNotFound {
			t.Errorf("Update() error = %v, want %v", err, announcement.ErrNotFound)
		}
	})
}

func TestService_Send(t *testing.T) {
	ctx := context.Background()

	createDraft := func(t *testing.T, svc *announcement.Service, recipients ...string) announcement.Announcement {
		t.Helper()
		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:      "Meetup",
			Message:    "<p>see you there</p>",
			Scope:      announcement.ScopeSpecific,
			Recipients: recipients,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return ann
	}

	t.Run("partial failure still counts as sent", func(t *testing.T) {
		sender := newFakeSender("b@x.org")
		svc, _ := setup(t, &stubDirectory{}, sender)
		ann := createDraft(t, svc, "a@x.org", "b@x.org", "c@x.org")

		res, err := svc.Send(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if res.Sent != 2 || res.Failed != 1 {
			t.Errorf("result = %+v, want 2 sent / 1 failed", res)
		}

		got, err := svc.GetByID(ctx, ann.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Status != announcement.StatusSent {
			t.Errorf("Status = %v, want %v", got.Status, announcement.StatusSent)
		}

		stats, err := svc.Stats(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		want := announcement.Stats{Sent: 2, Failed: 1, Total: 3}
		if stats != want {
			t.Errorf("Stats() = %+v, want %+v", stats, want)
		}
		if stats.Sent+stats.Failed+stats.Pending != stats.Total {
			t.Errorf("stats do not add up: %+v", stats)
		}
	})

	t.Run("failed deliveries carry the provider error", func(t *testing.T) {
		sender := newFakeSender("a@x.org")
		svc, repo := setup(t, &stubDirectory{}, sender)
		ann := createDraft(t, svc, "a@x.org")

		if _, err := svc.Send(ctx, ann.ID); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		deliveries, err := repo.QueryDeliveries(ctx, ann.ID)
		if err != nil {
			t.Fatalf("QueryDeliveries() error = %v", err)
		}
		if len(deliveries) != 1 {
			t.Fatalf("got %d deliveries, want 1", len(deliveries))
		}
		d := deliveries[0]
		if d.Status != announcement.DeliveryFailed {
			t.Errorf("status = %v, want %v", d.Status, announcement.DeliveryFailed)
		}
		if d.Error == "" {
			t.Error("failed delivery has no error message")
		}
		if d.SentAt != nil {
			t.Errorf("SentAt = %v, want nil", d.SentAt)
		}
	})

	t.Run("total failure marks failed without SentAt", func(t *testing.T) {
		sender := newFakeSender("a@x.org", "b@x.org")
		svc, _ := setup(t, &stubDirectory{}, sender)
		ann := createDraft(t, svc, "a@x.org", "b@x.org")

		res, err := svc.Send(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if res.Sent != 0 || res.Failed != 2 {
			t.Errorf("result = %+v, want 0 sent / 2 failed", res)
		}

		got, err := svc.GetByID(ctx, ann.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Status != announcement.StatusFailed {
			t.Errorf("Status = %v, want %v", got.Status, announcement.StatusFailed)
		}
		if got.SentAt != nil {
			t.Errorf("SentAt = %v, want nil", got.SentAt)
		}
	})

	t.Run("all scope resolves via the directory", func(t *testing.T) {
		sender := newFakeSender()
		svc, _ := setup(t, &stubDirectory{emails: []string{"m1@x.org", "m2@x.org"}}, sender)
		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title: "T", Message: "m", Scope: announcement.ScopeAll,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		res, err := svc.Send(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if res.Requested != 2 || res.Sent != 2 {
			t.Errorf("result = %+v, want 2 requested / 2 sent", res)
		}
	})

	t.Run("directory failure surfaces", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{err: errors.New("db gone")}, newFakeSender())
		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title: "T", Message: "m", Scope: announcement.ScopeAll,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err = svc.Send(ctx, ann.ID); err == nil {
			t.Fatal("Send() expected error, got nil")
		}
	})

	t.Run("sending twice is rejected", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())
		ann := createDraft(t, svc, "a@x.org")

		if _, err := svc.Send(ctx, ann.ID); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		_, err := svc.Send(ctx, ann.ID)
		assertValidationErr(t, err, announcement.ErrAlreadySent)
	})

	t.Run("unknown announcement", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())
		if _, err := svc.Send(ctx, "missing"); errors.Cause(err) != announcement.ErrNotFound {
			t.Errorf("Send() error = %v, want %v", err, announcement.ErrNotFound)
		}
	})
}

func TestService_Resend(t *testing.T) {
	ctx := context.Background()

	sendOnce := func(t *testing.T, svc *announcement.Service, recipients ...string) announcement.Announcement {
		t.Helper()
		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title:      "Newsletter",
			Message:    "<p>news</p>",
			Scope:      announcement.ScopeSpecific,
			Recipients: recipients,
			SendNow:    true,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		return ann
	}

	t.Run("draft cannot be resent", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())
		ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
			Title: "T", Message: "m", Scope: announcement.ScopeSpecific, Recipients: []string{"a@x.org"},
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_, err = svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendAll})
		assertValidationErr(t, err, announcement.ErrNotSentYet)
	})

	t.Run("failed mode retries only latest failures", func(t *testing.T) {
		sender := newFakeSender("b@x.org", "c@x.org")
		svc, repo := setup(t, &stubDirectory{}, sender)
		ann := sendOnce(t, svc, "a@x.org", "b@x.org", "c@x.org")

		sender.recover()

		res, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendFailed})
		if err != nil {
			t.Fatalf("Resend() error = %v", err)
		}
		if res.Requested != 2 || res.Sent != 2 {
			t.Errorf("result = %+v, want 2 requested / 2 sent", res)
		}

		// history is additive: 3 original rows + 2 retries
		deliveries, err := repo.QueryDeliveries(ctx, ann.ID)
		if err != nil {
			t.Fatalf("QueryDeliveries() error = %v", err)
		}
		if len(deliveries) != 5 {
			t.Errorf("got %d delivery rows, want 5", len(deliveries))
		}

		// everyone's latest attempt succeeded; nothing left to retry
		_, err = svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendFailed})
		assertValidationErr(t, err, announcement.ErrNothingToRetry)
	})

	t.Run("failed announcement recovers to sent on retry", func(t *testing.T) {
		sender := newFakeSender("a@x.org")
		svc, _ := setup(t, &stubDirectory{}, sender)
		ann := sendOnce(t, svc, "a@x.org")

		got, _ := svc.GetByID(ctx, ann.ID)
		if got.Status != announcement.StatusFailed {
			t.Fatalf("Status = %v, want %v", got.Status, announcement.StatusFailed)
		}

		sender.recover()
		if _, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendFailed}); err != nil {
			t.Fatalf("Resend() error = %v", err)
		}

		got, _ = svc.GetByID(ctx, ann.ID)
		if got.Status != announcement.StatusSent {
			t.Errorf("Status = %v, want %v", got.Status, announcement.StatusSent)
		}
		if got.SentAt == nil {
			t.Error("SentAt not stamped on first successful dispatch")
		}
	})

	t.Run("all mode re-dispatches to every recipient", func(t *testing.T) {
		sender := newFakeSender()
		svc, repo := setup(t, &stubDirectory{}, sender)
		ann := sendOnce(t, svc, "a@x.org", "b@x.org")
		firstSentAt := ann.SentAt

		res, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendAll})
		if err != nil {
			t.Fatalf("Resend() error = %v", err)
		}
		if res.Requested != 2 || res.Sent != 2 {
			t.Errorf("result = %+v, want 2 requested / 2 sent", res)
		}
		deliveries, _ := repo.QueryDeliveries(ctx, ann.ID)
		if len(deliveries) != 4 {
			t.Errorf("got %d delivery rows, want 4", len(deliveries))
		}

		// SentAt records the first send only
		got, _ := svc.GetByID(ctx, ann.ID)
		if got.SentAt == nil || firstSentAt == nil || !got.SentAt.Equal(*firstSentAt) {
			t.Errorf("SentAt = %v, want %v", got.SentAt, firstSentAt)
		}
	})

	t.Run("specific mode targets the given subset", func(t *testing.T) {
		sender := newFakeSender()
		svc, _ := setup(t, &stubDirectory{}, sender)
		ann := sendOnce(t, svc, "a@x.org", "b@x.org")

		res, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{
			Mode:          announcement.ResendSpecific,
			Recipients:    []string{"b@x.org"},
			RecipientText: "late-joiner@x.org",
		})
		if err != nil {
			t.Fatalf("Resend() error = %v", err)
		}
		if res.Requested != 2 {
			t.Errorf("Requested = %d, want 2", res.Requested)
		}

		stats, err := svc.Stats(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.Total != 4 {
			t.Errorf("Total = %d, want 4", stats.Total)
		}
	})

	t.Run("specific mode with no valid addresses", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())
		ann := sendOnce(t, svc, "a@x.org")

		_, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{
			Mode:          announcement.ResendSpecific,
			RecipientText: "junk",
		})
		assertValidationErr(t, err, announcement.ErrNoRecipients)
	})

	t.Run("invalid mode rejected", func(t *testing.T) {
		svc, _ := setup(t, &stubDirectory{}, newFakeSender())
		ann := sendOnce(t, svc, "a@x.org")

		if _, err := svc.Resend(ctx, ann.ID, announcement.ResendRequest{Mode: announcement.ResendMode("nope")}); err == nil {
			t.Fatal("Resend() expected error, got nil")
		}
	})
}

func TestService_Deliveries(t *testing.T) {
	ctx := context.Background()
	svc, repo := setup(t, &stubDirectory{}, newFakeSender())

	ann, _, err := svc.Create(ctx, announcement.NewAnnouncement{
		Title: "T", Message: "m", Scope: announcement.ScopeSpecific, Recipients: []string{"x@x.org"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// seed one row per status; `delivered` and `bounced` come from provider
	// webhooks in production.
	seed := []announcement.DeliveryStatus{
		announcement.DeliverySent,
		announcement.DeliveryDelivered,
		announcement.DeliveryFailed,
		announcement.DeliveryBounced,
		announcement.DeliveryPending,
	}
	for i, status := range seed {
		if _, err := repo.CreateDelivery(ctx, announcement.Delivery{
			ID:             fmt.Sprintf("%s-%d", ann.ID, i),
			AnnouncementID: ann.ID,
			Email:          fmt.Sprintf("r%d@x.org", i),
			Status:         status,
		}); err != nil {
			t.Fatalf("CreateDelivery() error = %v", err)
		}
	}

	tests := []struct {
		filter announcement.DeliveryFilter
		want   int
	}{
		{filter: "", want: 5},
		{filter: announcement.FilterAll, want: 5},
		{filter: announcement.FilterSent, want: 2},   // sent + delivered
		{filter: announcement.FilterFailed, want: 2}, // failed + bounced
		{filter: announcement.FilterPending, want: 1},
	}
	for _, tt := range tests {
		name := tt.filter.String()
		if name == "" {
			name = "unset"
		}
		t.Run(name, func(t *testing.T) {
			got, err := svc.Deliveries(ctx, ann.ID, tt.filter)
			if err != nil {
				t.Fatalf("Deliveries() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d deliveries, want %d", len(got), tt.want)
			}
		})
	}

	t.Run("stats group the same way", func(t *testing.T) {
		stats, err := svc.Stats(ctx, ann.ID)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		want := announcement.Stats{Sent: 2, Failed: 2, Pending: 1, Total: 5}
		if stats != want {
			t.Errorf("Stats() = %+v, want %+v", stats, want)
		}
	})

	t.Run("unknown announcement", func(t *testing.T) {
		_, err := svc.Deliveries(ctx, "missing", announcement.FilterAll)
		if errors.Cause(err) != announcement.ErrNotFound {
			t.Errorf("Deliveries() error = %v, want %v", err, announcement.ErrNotFound)
		}
	})
}

func TestService_bigBatchEstimate(t *testing.T) {
	ctx := context.Background()
	sender := newFakeSender()
	svc, _ := setup(t, &stubDirectory{}, sender)

	recipients := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		recipients = append(recipients, fmt.Sprintf("r%d@x.org", i))
	}

	_, res, err := svc.Create(ctx, announcement.NewAnnouncement{
		Title:      "Big",
		Message:    "m",
		Scope:      announcement.ScopeSpecific,
		Recipients: recipients,
		SendNow:    true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.EstimatedDuration == "" {
		t.Error("EstimatedDuration not set for a big batch")
	}
	if res.Sent != len(recipients) {
		t.Errorf("Sent = %d, want %d", res.Sent, len(recipients))
	}
}

// ctxCheckingRepo refuses writes on a dead context, the way a real
// database-backed repository would.
type ctxCheckingRepo struct {
	announcement.Repository
}

func (r *ctxCheckingRepo) CreateDelivery(ctx context.Context, d announcement.Delivery) (announcement.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return announcement.Delivery{}, err
	}
	return r.Repository.CreateDelivery(ctx, d)
}

// cancellingSender cancels the dispatch context mid-send, then succeeds.
type cancellingSender struct {
	cancel context.CancelFunc
}

func (s *cancellingSender) SendMessage(ctx context.Context, msg *core.EmailMessage) (string, error) {
	s.cancel()
	return "prov-" + msg.To[0].Address, nil
}

func TestService_deliveryRecordedAfterInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &ctxCheckingRepo{Repository: inmemdb.NewAnnouncementRepository(inmemdb.NewDB())}
	sender := &cancellingSender{cancel: cancel}
	svc := announcement.NewService(repo, &stubDirectory{}, sender, nopLogger{}, testConf())

	ann, _, err := svc.Create(context.Background(), announcement.NewAnnouncement{
		Title:      "Outage",
		Message:    "<p>maintenance window</p>",
		Scope:      announcement.ScopeSpecific,
		Recipients: []string{"a@x.org"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	res, err := svc.Send(ctx, ann.ID)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("Sent = %d, want 1", res.Sent)
	}

	// the send went out before cancellation; its row must still land.
	deliveries, err := repo.QueryDeliveries(context.Background(), ann.ID)
	if err != nil {
		t.Fatalf("QueryDeliveries() error = %v", err)
	}
	if len(deliveries) != 1 {
		t.Fatalf("got %d deliveries, want 1", len(deliveries))
	}
	if deliveries[0].Status != announcement.DeliverySent {
		t.Errorf("status = %v, want %v", deliveries[0].Status, announcement.DeliverySent)
	}
}
