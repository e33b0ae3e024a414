package profile

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newRouter() *chi.Mux {
	r := chi.NewRouter()
	New().RegisterRoutes(r)
	return r
}

func TestListLevels(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/profile/levels", nil))

	var options []levelOption
	if err := json.NewDecoder(resp.Body).Decode(&options); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(options) != 3 || options[0].Label != "Entry Level" || options[2].Value != "senior" {
		t.Fatalf("unexpected options %+v", options)
	}
}

func TestValidateProfile(t *testing.T) {
	r := newRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/profile/validate",
		strings.NewReader(`{"name":" Ada ","location":"Leeds","experienceLevel":"Mid Level","jobInterest":"Go"}`)))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"experienceLevel":"mid"`) {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/profile/validate", strings.NewReader(`{"name":"Ada"}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
