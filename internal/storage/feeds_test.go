package storage

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/jobmate/backend/internal/model/feed"
)

func newTestFeedStore(t *testing.T) *FeedStore {
	t.Helper()
	store, err := NewFeedStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("NewFeedStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func salary(v float64) *float64 { return &v }

func TestFeedStoreUpsertJobsIsIdempotent(t *testing.T) {
	store := newTestFeedStore(t)
	ctx := context.Background()
	jobs := []feed.Job{
		{ExternalID: "r-1", Title: "Go Developer", Employer: "Acme", Location: "London", MinSalary: salary(50000)},
		{ExternalID: "r-2", Title: "Data Analyst", Employer: "Beta", Location: "Leeds"},
	}

	for i := 0; i < 2; i++ {
		if _, err := store.UpsertJobs(ctx, jobs); err != nil {
			t.Fatalf("UpsertJobs: %v", err)
		}
	}
	jobs[0].Title = "Senior Go Developer"
	if _, err := store.UpsertJobs(ctx, jobs[:1]); err != nil {
		t.Fatalf("UpsertJobs update: %v", err)
	}

	all, err := store.ListJobs(ctx, JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}
	if all[0].Title != "Senior Go Developer" || all[0].MinSalary == nil || *all[0].MinSalary != 50000 {
		t.Fatalf("unexpected first job: %+v", all[0])
	}
	if all[1].MaxSalary != nil {
		t.Fatalf("expected nil max salary, got %v", *all[1].MaxSalary)
	}
}

func TestFeedStoreListJobsFilters(t *testing.T) {
	store := newTestFeedStore(t)
	ctx := context.Background()
	_, _ = store.UpsertJobs(ctx, []feed.Job{
		{ExternalID: "1", Title: "Go Developer", Location: "London"},
		{ExternalID: "2", Title: "Python Developer", Location: "London"},
		{ExternalID: "3", Title: "Go Engineer", Location: "Manchester"},
	})

	got, err := store.ListJobs(ctx, JobFilter{Keyword: "go", Location: "london"})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "1" {
		t.Fatalf("unexpected filter result: %+v", got)
	}

	paged, _ := store.ListJobs(ctx, JobFilter{Skip: 1, Take: 1})
	if len(paged) != 1 || paged[0].ExternalID != "2" {
		t.Fatalf("unexpected page: %+v", paged)
	}
}

func TestFeedStoreArticlesNewestFirstAndDelete(t *testing.T) {
	store := newTestFeedStore(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.UpsertArticles(ctx, []feed.Article{
		{ExternalID: "a", Title: "Old", Published: day},
		{ExternalID: "b", Title: "New", Published: day.Add(48 * time.Hour)},
	})
	if err != nil {
		t.Fatalf("UpsertArticles: %v", err)
	}

	got, err := store.ListArticles(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListArticles: %v", err)
	}
	if len(got) != 2 || got[0].Title != "New" || !got[1].Published.Equal(day) {
		t.Fatalf("unexpected articles: %+v", got)
	}

	found, err := store.DeleteArticle(ctx, got[0].ID)
	if err != nil || !found {
		t.Fatalf("DeleteArticle = %v, %v", found, err)
	}
	found, _ = store.DeleteArticle(ctx, got[0].ID)
	if found {
		t.Fatal("second delete should report not found")
	}
	if found, _ := store.DeleteJob(ctx, 42); found {
		t.Fatal("deleting a missing job should report not found")
	}
}

func TestFeedStoreSearchPassagesRanksByTermHits(t *testing.T) {
	store := newTestFeedStore(t)
	ctx := context.Background()
	_, _ = store.UpsertJobs(ctx, []feed.Job{
		{ExternalID: "1", Title: "Backend Engineer", Employer: "Acme", Location: "Remote", Description: "Go services, Go tooling"},
		{ExternalID: "2", Title: "Chef", Description: "kitchen"},
	})
	_, _ = store.UpsertArticles(ctx, []feed.Article{
		{ExternalID: "n1", Title: "Hiring trends for backend roles", Content: "demand for engineers grows", URL: "https://news.example/1"},
	})

	got, err := store.SearchPassages(ctx, "backend engineer", 5)
	if err != nil {
		t.Fatalf("SearchPassages: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 snippets, got %+v", got)
	}
	if got[0].Kind != "job" || got[1].Kind != "article" {
		t.Fatalf("unexpected ranking: %+v", got)
	}

	if none, _ := store.SearchPassages(ctx, "a b", 5); len(none) != 0 {
		t.Fatalf("short terms should not match: %+v", none)
	}
	if one, _ := store.SearchPassages(ctx, "backend", 1); len(one) != 1 {
		t.Fatalf("limit not applied: %+v", one)
	}
}

func TestFeedStoreListJobsTreatsWildcardsLiterally(t *testing.T) {
	store := newTestFeedStore(t)
	ctx := context.Background()
	_, _ = store.UpsertJobs(ctx, []feed.Job{
		{ExternalID: "1", Title: "Go Developer", Location: "London"},
		{ExternalID: "2", Title: "100% Remote Engineer", Location: "Remote"},
		{ExternalID: "3", Title: "C_Sharp Developer", Location: "Leeds"},
	})

	for _, tc := range []struct {
		keyword string
		want    string
	}{
		{keyword: "%", want: "2"},
		{keyword: "_", want: "3"},
	} {
		got, err := store.ListJobs(ctx, JobFilter{Keyword: tc.keyword})
		if err != nil {
			t.Fatalf("ListJobs(%q): %v", tc.keyword, err)
		}
		if len(got) != 1 || got[0].ExternalID != tc.want {
			t.Fatalf("keyword %q matched %+v, want only %s", tc.keyword, got, tc.want)
		}
	}
}

func TestFeedStoreSearchPassagesCapsCandidates(t *testing.T) {
	if got := searchCandidates(1); got != minSearchCandidates {
		t.Fatalf("searchCandidates(1) = %d", got)
	}
	if got := searchCandidates(20); got != 20*searchCandidateFactor {
		t.Fatalf("searchCandidates(20) = %d", got)
	}

	store := newTestFeedStore(t)
	ctx := context.Background()
	jobs := make([]feed.Job, 0, minSearchCandidates+20)
	for i := range minSearchCandidates + 20 {
		jobs = append(jobs, feed.Job{ExternalID: strconv.Itoa(i), Title: "Backend Engineer"})
	}
	if _, err := store.UpsertJobs(ctx, jobs); err != nil {
		t.Fatalf("UpsertJobs: %v", err)
	}

	got, err := store.SearchPassages(ctx, "backend", 3)
	if err != nil {
		t.Fatalf("SearchPassages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 snippets, got %d", len(got))
	}
	if got[0].Title != "Backend Engineer" {
		t.Fatalf("unexpected snippet: %+v", got[0])
	}
}
