package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	. "github.com/techsoc/clubhub/apps/api/echo"
	"github.com/techsoc/clubhub/core/user"
)

func TestUserAPI_login(t *testing.T) {
	app := setup(t)
	app.createUser(t, "Jane", "janedoe", "jane@techsoc.org", "S3cr3t!Pass", user.MemberRoles, true)
	app.createUser(t, "Gone", "gonedoe", "gone@techsoc.org", "S3cr3t!Pass", user.MemberRoles, false)

	tests := []httpTest{
		{
			name: "by username", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "janedoe", Password: "S3cr3t!Pass"}),
			wantCode: http.StatusOK,
		},
		{
			name: "by email", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "Jane@techsoc.org", Password: "S3cr3t!Pass"}),
			wantCode: http.StatusOK,
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "janedoe", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "nobody", Password: "S3cr3t!Pass"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, LoginRequest{Username: "gonedoe", Password: "S3cr3t!Pass"}),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.server.ServeHTTP(rec, req)

			if tt.wantData == nil {
				// successful login: just check a token came back
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %d, want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var res LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if res.Token == "" {
					t.Error("no token returned")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestUserAPI_tokenRefresh(t *testing.T) {
	app := setup(t)
	usr := app.createMemberUser(t)
	token := app.getToken(t, usr)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
	}
	var res LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if res.Token == "" {
		t.Error("no token returned")
	}

	t.Run("anonymous", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/token-refresh")
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})
}

func TestUserAPI_adminEndpoints(t *testing.T) {
	app := setup(t)
	admin := app.createAdmin(t)
	adminToken := app.getToken(t, admin)
	memberUsr := app.createMemberUser(t)
	memberToken := app.getToken(t, memberUsr)

	t.Run("guards", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "anonymous list", method: http.MethodGet, path: "/v1/users",
				wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
			},
			{
				name: "non-admin list", method: http.MethodGet, path: "/v1/users", token: memberToken,
				wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
			},
			{
				name: "non-admin roles", method: http.MethodGet, path: "/v1/users/roles", token: memberToken,
				wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(tt.method, tt.path, tt.token)
				app.server.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users", adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var users []user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("got %d users, want 2", len(users))
		}
	})

	t.Run("roles", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", adminToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("member can fetch themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+memberUsr.ID, memberToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.ID != memberUsr.ID {
			t.Errorf("ID = %q, want %q", got.ID, memberUsr.ID)
		}
	})

	t.Run("member cannot fetch others", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/users/"+admin.ID, memberToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("admin cannot delete themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("admin deletes member", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+memberUsr.ID, adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %d, want %d; body %s", rec.Code, http.StatusNoContent, rec.Body.String())
		}
	})
}

func TestUserAPI_register(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))

	t.Run("admin registers a user", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "New Member",
			Username:        "newmember",
			Email:           "new@techsoc.org",
			Password:        "V3ry!Secret",
			PasswordConfirm: "V3ry!Secret",
			Roles:           user.MemberRoles,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var got user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Username != "newmember" {
			t.Errorf("Username = %q", got.Username)
		}
	})

	t.Run("weak password rejected", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Weak",
			Username:        "weakling",
			Email:           "weak@techsoc.org",
			Password:        "password",
			PasswordConfirm: "password",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{
			Name:            "Clone",
			Username:        "newmember",
			Email:           "clone@techsoc.org",
			Password:        "V3ry!Secret",
			PasswordConfirm: "V3ry!Secret",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d; body %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})
}
