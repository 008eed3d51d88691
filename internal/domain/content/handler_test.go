package content

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/openedx/forum/internal/middleware"
	"github.com/openedx/forum/internal/pkg/jwt"
)

func setupContentAPI(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	svc := NewService(newMemoryRepository(), &spyGate{}, staticToggles{})
	jwtService := jwt.NewService("test-secret", 15*time.Minute)
	handler := NewHandler(svc)

	r := chi.NewRouter()
	r.Mount("/threads", handler.Routes(middleware.Auth(jwtService)))

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	token, err := jwtService.GenerateAccessToken(uuid.New(), jwt.RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	return server, token
}

func postJSON(t *testing.T, server *httptest.Server, path, token string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCreateThreadEndpoint(t *testing.T) {
	server, token := setupContentAPI(t)

	resp := postJSON(t, server, "/threads", token, CreateThreadRequest{
		CourseID: "course-v1:edX+Demo+2026",
		Title:    "Office hours",
		Body:     "When are office hours this week?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var result struct {
		Data Thread `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Data.ID == "" {
		t.Error("created thread has no id")
	}
	if result.Data.IsSpam {
		t.Error("fresh thread marked as spam")
	}

	// The created thread is readable without auth.
	getResp, err := server.Client().Get(server.URL + "/threads/" + result.Data.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("GET status = %d, want 200", getResp.StatusCode)
	}
}

func TestCreateThreadRequiresAuth(t *testing.T) {
	server, _ := setupContentAPI(t)

	resp := postJSON(t, server, "/threads", "", CreateThreadRequest{
		CourseID: "course-v1:edX+Demo+2026",
		Title:    "t",
		Body:     "b",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateThreadValidation(t *testing.T) {
	server, token := setupContentAPI(t)

	resp := postJSON(t, server, "/threads", token, CreateThreadRequest{
		CourseID: "course-v1:edX+Demo+2026",
		Title:    "",
		Body:     strings.Repeat("x", 10),
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422 for missing title", resp.StatusCode)
	}
}

func TestCreateCommentEndpoint(t *testing.T) {
	server, token := setupContentAPI(t)

	resp := postJSON(t, server, "/threads", token, CreateThreadRequest{
		CourseID: "course-v1:edX+Demo+2026",
		Title:    "parent",
		Body:     "thread body",
	})
	var created struct {
		Data Thread `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}

	commentResp := postJSON(t, server, "/threads/"+created.Data.ID+"/comments", token, CreateCommentRequest{
		Body: "a reply",
	})
	if commentResp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", commentResp.StatusCode)
	}

	missingResp := postJSON(t, server, "/threads/"+uuid.New().String()+"/comments", token, CreateCommentRequest{
		Body: "orphan",
	})
	if missingResp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d for missing thread, want 404", missingResp.StatusCode)
	}
}
