package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jobmate/backend/internal/apperr"
)

func TestJobsClientSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "reed-key" || pass != "" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}
		q := r.URL.Query()
		if r.URL.Path != "/search" || q.Get("keywords") != "golang" || q.Get("resultsToSkip") != "25" || q.Get("resultsToTake") != "25" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"results":[{"jobId":42,"employerName":" Acme ","jobTitle":"Go Developer","locationName":"London","minimumSalary":50000,"jobUrl":"https://jobs/42"}],"totalResults":1}`))
	}))
	defer srv.Close()

	c := &JobsClient{BaseURL: srv.URL, APIKey: "reed-key"}
	jobs, err := c.Search(context.Background(), JobQuery{Keywords: "golang", Skip: 25})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
	j := jobs[0]
	if j.ExternalID != "42" || j.Employer != "Acme" || j.MinSalary == nil || *j.MinSalary != 50000 || j.MaxSalary != nil {
		t.Fatalf("unexpected job: %+v", j)
	}
}

func TestJobsClientWrapsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := &JobsClient{BaseURL: srv.URL}
	if _, err := c.Search(context.Background(), JobQuery{}); !errors.Is(err, apperr.ServiceUnavailable) {
		t.Fatalf("expected ServiceUnavailable, got %v", err)
	}
}

func TestNewsClientTop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer news-token" {
			t.Errorf("missing bearer token")
		}
		if r.URL.Query().Get("take") != "10" || r.URL.Query().Get("skip") != "0" {
			t.Errorf("unexpected paging: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":[{"uuid":"n-1","title":"Tech hiring rebounds","published_at":"2024-04-02T09:30:00Z","url":"https://news/1","snippet":"Employers are hiring again."}]}`))
	}))
	defer srv.Close()

	c := &NewsClient{BaseURL: srv.URL, Token: "news-token"}
	articles, err := c.Top(context.Background(), NewsQuery{Take: 10})
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected one article, got %d", len(articles))
	}
	a := articles[0]
	if a.ExternalID != "n-1" || a.Content != "Employers are hiring again." || !a.Published.Equal(time.Date(2024, 4, 2, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected article: %+v", a)
	}
}
