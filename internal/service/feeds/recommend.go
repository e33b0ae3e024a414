package feeds

import (
	"context"

	"github.com/jobmate/backend/internal/model/feed"
	"github.com/jobmate/backend/internal/model/profile"
	"github.com/jobmate/backend/internal/storage"
)

// JobLister is the catalog query used for recommendations.
type JobLister interface {
	ListJobs(ctx context.Context, f storage.JobFilter) ([]feed.Job, error)
}

// Recommend lists catalog jobs matching the profile's interest, preferring
// the profile's location and widening to any location when nothing matches.
func Recommend(ctx context.Context, jobs JobLister, p profile.Profile, take int) ([]feed.Job, error) {
	if take <= 0 {
		take = 10
	}
	got, err := jobs.ListJobs(ctx, storage.JobFilter{Keyword: p.JobInterest, Location: p.Location, Take: take})
	if err != nil || len(got) > 0 || p.Location == "" {
		return got, err
	}
	return jobs.ListJobs(ctx, storage.JobFilter{Keyword: p.JobInterest, Take: take})
}
