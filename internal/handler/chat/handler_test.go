package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/jobmate/backend/internal/service/chat"
	"github.com/jobmate/backend/internal/service/completion"
	"github.com/jobmate/backend/internal/storage"
)

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req completion.Request) (string, error) {
	return "recap", nil
}

func (echoCompleter) Stream(_ context.Context, req completion.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("echo: "+req.Prompt, nil)
	}
}

func setupRouter(t *testing.T) (*chi.Mux, *chatservice.Service, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	chatSvc, err := chatservice.NewService(chatservice.Options{Completer: echoCompleter{}, Recorder: store})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	r := chi.NewRouter()
	New(chatSvc, store).RegisterRoutes(r)
	return r, chatSvc, store
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestCreateSessionWithProfile(t *testing.T) {
	r, _, _ := setupRouter(t)
	payload := []byte(`{"profile":{"name":"Ada","location":"Leeds","experienceLevel":"Senior Level","jobInterest":"Go"}}`)

	resp := do(r, http.MethodPost, "/session", payload)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var session struct {
		ID      string `json:"id"`
		Profile struct {
			ExperienceLevel string `json:"experienceLevel"`
		} `json:"profile"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&session)
	if session.ID == "" || session.Profile.ExperienceLevel != "senior" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateSessionWithoutBody(t *testing.T) {
	r, _, _ := setupRouter(t)

	if resp := do(r, http.MethodPost, "/session", nil); resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestCreateSessionInvalidProfile(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/session", []byte(`{"profile":{"name":"Ada","location":"Leeds","experienceLevel":"wizard","jobInterest":"Go"}}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/session", []byte(`{"profile":{"name":"Ada"}}`))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for incomplete profile, got %d", resp.Code)
	}
}

func TestWindowAndEndSession(t *testing.T) {
	r, chatSvc, _ := setupRouter(t)
	session, _ := chatSvc.CreateSession(context.Background(), nil)
	for range chatSvc.Submit(context.Background(), session.ID, "hello") {
	}

	resp := do(r, http.MethodGet, "/session/"+session.ID+"/window", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		State string            `json:"state"`
		Turns []json.RawMessage `json:"turns"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.State != "idle" || len(body.Turns) != 2 {
		t.Fatalf("unexpected window body: %+v", body)
	}

	if resp := do(r, http.MethodDelete, "/session/"+session.ID, nil); resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/session/"+session.ID+"/window", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after end, got %d", resp.Code)
	}
}

func TestListAndDeleteChats(t *testing.T) {
	r, _, store := setupRouter(t)
	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three", "four"} {
		if _, err := store.Append(ctx, msg, "ok"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	resp := do(r, http.MethodGet, "/chats?target=last_three_chats", nil)
	var listed struct {
		Records []struct {
			UserMessage string `json:"userMessage"`
		} `json:"records"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&listed)
	if resp.Code != http.StatusOK || len(listed.Records) != 3 || listed.Records[0].UserMessage != "four" {
		t.Fatalf("unexpected recent listing %d: %+v", resp.Code, listed)
	}

	resp = do(r, http.MethodDelete, "/chats/2?target=all_chats", nil)
	var deleted struct {
		Found bool `json:"found"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&deleted)
	if resp.Code != http.StatusOK || !deleted.Found {
		t.Fatalf("expected found=true, got %d %+v", resp.Code, deleted)
	}

	resp = do(r, http.MethodDelete, "/chats/99?target=all_chats", nil)
	deleted.Found = true
	_ = json.NewDecoder(resp.Body).Decode(&deleted)
	if resp.Code != http.StatusOK || deleted.Found {
		t.Fatalf("expected found=false, got %d %+v", resp.Code, deleted)
	}

	if resp := do(r, http.MethodDelete, "/chats/1?target=users", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid target, got %d", resp.Code)
	}
	if resp := do(r, http.MethodGet, "/chats?target=users", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid list target, got %d", resp.Code)
	}
}
