package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/techsoc/clubhub/core/project"
	"github.com/techsoc/clubhub/core/resource"
)

func TestProjectAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))
	memberToken := app.getToken(t, app.createMemberUser(t))

	body := marchallObj(t, project.NewProject{
		Name:      "Club Website",
		RepoURL:   "https://github.com/techsoc/website",
		TechStack: "Go, Vue",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/projects", adminToken, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
	}
	var prj project.Project
	if err := json.Unmarshal(rec.Body.Bytes(), &prj); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}

	t.Run("public list and detail", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/projects")
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var projects []project.Project
		if err := json.Unmarshal(rec.Body.Bytes(), &projects); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(projects) != 1 {
			t.Errorf("got %d projects, want 1", len(projects))
		}

		req, rec = newRequest(http.MethodGet, "/v1/projects/"+prj.ID)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("write requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/projects", body)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)

		req, rec = newAuthRequest(http.MethodPost, "/v1/projects", memberToken, body)
		app.server.ServeHTTP(rec, req)
		tt = httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update and delete", func(t *testing.T) {
		archived := true
		body := marchallObj(t, project.UpdateProject{Name: "Club Website v2", Archived: &archived})
		req, rec := newAuthRequest(http.MethodPut, "/v1/projects/"+prj.ID, adminToken, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodDelete, "/v1/projects/"+prj.ID, adminToken)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusNoContent)
		}
	})
}

func TestResourceAPI(t *testing.T) {
	app := setup(t)
	adminToken := app.getToken(t, app.createAdmin(t))

	body := marchallObj(t, resource.NewResource{
		Title:    "Go by Example",
		URL:      "https://gobyexample.com",
		Category: "Tutorials",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/resources", adminToken, body)
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
	}
	var res resource.Resource
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if res.Category != "tutorials" {
		t.Errorf("Category = %q, want lowercased", res.Category)
	}

	t.Run("public list and detail", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/resources")
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body %s", rec.Code, rec.Body.String())
		}
		var resources []resource.Resource
		if err := json.Unmarshal(rec.Body.Bytes(), &resources); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(resources) != 1 {
			t.Errorf("got %d resources, want 1", len(resources))
		}

		req, rec = newRequest(http.MethodGet, "/v1/resources/"+res.ID)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("code = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("write requires auth", func(t *testing.T) {
		req, rec := newRequest(http.MethodDelete, "/v1/resources/"+res.ID)
		app.server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}
		checkCodeAndData(t, tt, rec)
	})
}
