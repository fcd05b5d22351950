package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/techsoc/clubhub/core/announcement"
	"github.com/techsoc/clubhub/core/member"
)

func seedApprovedMember(t *testing.T, app *testApp, email string) {
	t.Helper()
	now := nowUTC()
	_, err := app.appRepo.CreateApplication(context.Background(), member.Application{
		ID:        email, // any unique key will do
		FirstName: "Member",
		LastName:  "One",
		Email:     email,
		Status:    member.StatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
}

func TestAnnouncementAPI_authGuards(t *testing.T) {
	app := setup(t)
	memberToken := app.getToken(t, app.createMemberUser(t))

	tests := []httpTest{
		{
			name: "anonymous gets 401", method: http.MethodGet, path: "/v1/announcements",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "non-admin gets 403", method: http.MethodGet, path: "/v1/announcements", token: memberToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "non-admin cannot send", method: http.MethodPost, path: "/v1/announcements/some-id/send", token: memberToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestAnnouncementAPI_create(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))

	t.Run("draft", func(t *testing.T) {
		body := marchallObj(t, announcement.NewAnnouncement{
			Title:   "AGM",
			Message: "<p>Annual general meeting</p>",
			Scope:   announcement.ScopeAll,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var got struct {
			announcement.Announcement
			Dispatch *announcement.DispatchResult `json:"dispatch"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Status != announcement.StatusDraft {
			t.Errorf("status = %v, want %v", got.Status, announcement.StatusDraft)
		}
		if got.Dispatch != nil {
			t.Errorf("dispatch = %+v, want nil", got.Dispatch)
		}
	})

	t.Run("send now with dispatch summary", func(t *testing.T) {
		seedApprovedMember(t, app, "m1@x.org")
		seedApprovedMember(t, app, "m2@x.org")

		body := marchallObj(t, announcement.NewAnnouncement{
			Title:   "Hack Night",
			Message: "<p>Friday 7pm</p>",
			Scope:   announcement.ScopeAll,
			SendNow: true,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		app.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, want %d; body %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var got struct {
			announcement.Announcement
			Dispatch *announcement.DispatchResult `json:"dispatch"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Status != announcement.StatusSent {
			t.Errorf("status = %v, want %v", got.Status, announcement.StatusSent)
		}
		if got.Dispatch == nil || got.Dispatch.Sent != 2 {
			t.Errorf("dispatch = %+v, want 2 sent", got.Dispatch)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, []byte(`{}`))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}

func TestAnnouncementAPI_sendAndResend(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))
	ctx := context.Background()

	draft := func(t *testing.T, recipients ...string) announcement.Announcement {
		t.Helper()
		body := marchallObj(t, announcement.NewAnnouncement{
			Title:      "Meetup",
			Message:    "<p>see you</p>",
			Scope:      announcement.ScopeSpecific,
			Recipients: recipients,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var ann announcement.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &ann); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		return ann
	}

	t.Run("send then resend all", func(t *testing.T) {
		ann := draft(t, "a@x.org", "b@x.org")

		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements/"+ann.ID+"/send", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("send: code = %d; body %s", rec.Code, rec.Body.String())
		}
		var res announcement.DispatchResult
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if res.Sent != 2 {
			t.Errorf("Sent = %d, want 2", res.Sent)
		}

		// repeat send is rejected
		req, rec = newAuthRequest(http.MethodPost, "/v1/announcements/"+ann.ID+"/send", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("resend via send: code = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		// explicit resend appends history
		body := marchallObj(t, announcement.ResendRequest{Mode: announcement.ResendAll})
		req, rec = newAuthRequest(http.MethodPost, "/v1/announcements/"+ann.ID+"/resend", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("resend: code = %d; body %s", rec.Code, rec.Body.String())
		}

		deliveries, err := app.annRepo.QueryDeliveries(ctx, ann.ID)
		if err != nil {
			t.Fatalf("QueryDeliveries() failed: %v", err)
		}
		if len(deliveries) != 4 {
			t.Errorf("got %d delivery rows, want 4", len(deliveries))
		}
	})

	t.Run("resend draft rejected", func(t *testing.T) {
		ann := draft(t, "a@x.org")
		body := marchallObj(t, announcement.ResendRequest{Mode: announcement.ResendAll})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements/"+ann.ID+"/resend", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("resend with bad mode rejected by validation", func(t *testing.T) {
		ann := draft(t, "a@x.org")
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements/"+ann.ID+"/resend", adminToken, []byte(`{"mode":"nope"}`))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown announcement", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements/missing/send", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestAnnouncementAPI_deliveriesAndStats(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))

	body := marchallObj(t, announcement.NewAnnouncement{
		Title:      "Stats",
		Message:    "m",
		Scope:      announcement.ScopeSpecific,
		Recipients: []string{"a@x.org", "b@x.org"},
		SendNow:    true,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
	}
	var ann announcement.Announcement
	if err := json.Unmarshal(rec.Body.Bytes(), &ann); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	t.Run("deliveries", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements/"+ann.ID+"/deliveries", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var deliveries []announcement.Delivery
		if err := json.Unmarshal(rec.Body.Bytes(), &deliveries); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(deliveries) != 2 {
			t.Errorf("got %d deliveries, want 2", len(deliveries))
		}
	})

	t.Run("deliveries filtered", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements/"+ann.ID+"/deliveries?status=failed", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var deliveries []announcement.Delivery
		if err := json.Unmarshal(rec.Body.Bytes(), &deliveries); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(deliveries) != 0 {
			t.Errorf("got %d failed deliveries, want 0", len(deliveries))
		}
	})

	t.Run("invalid filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements/"+ann.ID+"/deliveries?status=nope", adminToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "invalid delivery status filter"}),
		}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("stats", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements/"+ann.ID+"/stats", adminToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusOK,
			wantData: []byte(`{"sent":2,"failed":0,"pending":0,"total":2}`),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func TestAnnouncementAPI_list(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))

	for i := 0; i < 3; i++ {
		body := marchallObj(t, announcement.NewAnnouncement{
			Title:   fmt.Sprintf("News %d", i),
			Message: "m",
			Scope:   announcement.ScopeSpecific,
			Recipients: []string{
				fmt.Sprintf("r%d@x.org", i),
			},
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
	}

	t.Run("all", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var anns []announcement.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &anns); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(anns) != 3 {
			t.Errorf("got %d announcements, want 3", len(anns))
		}
	})

	t.Run("search", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements?search=News+1", adminToken)
		app.server.ServeHTTP(rec, req)
		var anns []announcement.Announcement
		if err := json.Unmarshal(rec.Body.Bytes(), &anns); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(anns) != 1 || anns[0].Title != "News 1" {
			t.Errorf("got %v, want [News 1]", anns)
		}
	})

	t.Run("status filter", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/announcements?status=sent", adminToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}
		checkCodeAndData(t, tt, rec)
	})
}
