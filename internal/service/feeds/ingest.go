package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jobmate/backend/internal/model/feed"
	"github.com/jobmate/backend/internal/observability"
)

// DefaultWorkers is the size of the fetch pool.
const DefaultWorkers = 5

type JobSource interface {
	Search(ctx context.Context, q JobQuery) ([]feed.Job, error)
}

type NewsSource interface {
	Top(ctx context.Context, q NewsQuery) ([]feed.Article, error)
}

// Catalog receives ingested rows.
type Catalog interface {
	UpsertJobs(ctx context.Context, jobs []feed.Job) (int, error)
	UpsertArticles(ctx context.Context, articles []feed.Article) (int, error)
}

// IngestPlan describes which pages to fetch. Page i of a query is fetched
// with Skip = i*PageSize.
type IngestPlan struct {
	Jobs      []JobQuery
	News      []NewsQuery
	Pages     int
	PageSize  int
	PageLimit time.Duration // per page fetch
}

// IngestReport summarizes one run.
type IngestReport struct {
	Jobs        int `json:"jobs"`
	Articles    int `json:"articles"`
	FailedPages int `json:"failedPages"`
}

// Ingestor fans page fetches out over a fixed pool of workers.
type Ingestor struct {
	jobs    JobSource
	news    NewsSource
	catalog Catalog
	workers int
	log     zerolog.Logger
	metrics *observability.Metrics
}

type IngestorOptions struct {
	Jobs    JobSource
	News    NewsSource
	Workers int
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

func NewIngestor(catalog Catalog, opts IngestorOptions) *Ingestor {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Ingestor{
		jobs:    opts.Jobs,
		news:    opts.News,
		catalog: catalog,
		workers: workers,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Run fetches every planned page and writes the results to the catalog.
// A page that fails is logged and counted; the run continues.
func (in *Ingestor) Run(ctx context.Context, plan IngestPlan) (IngestReport, error) {
	pages := max(plan.Pages, 1)
	size := pageSize(plan.PageSize)
	limit := plan.PageLimit
	if limit <= 0 {
		limit = 30 * time.Second
	}

	var (
		mu       sync.Mutex
		jobs     []feed.Job
		articles []feed.Article
		failed   int
	)

	g := new(errgroup.Group)
	g.SetLimit(in.workers)

	if in.jobs != nil {
		for _, q := range plan.Jobs {
			for p := 0; p < pages; p++ {
				q := q
				q.Skip, q.Take = p*size, size
				g.Go(func() error {
					pageCtx, cancel := context.WithTimeout(ctx, limit)
					defer cancel()
					got, err := in.jobs.Search(pageCtx, q)
					in.metrics.ObserveFeedPage("jobs", err)

					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failed++
						in.log.Warn().Err(err).Str("keywords", q.Keywords).Int("skip", q.Skip).Msg("job page failed")
						return nil
					}
					jobs = append(jobs, got...)
					return nil
				})
			}
		}
	}

	if in.news != nil {
		for _, q := range plan.News {
			for p := 0; p < pages; p++ {
				q := q
				q.Skip, q.Take = p*size, size
				g.Go(func() error {
					pageCtx, cancel := context.WithTimeout(ctx, limit)
					defer cancel()
					got, err := in.news.Top(pageCtx, q)
					in.metrics.ObserveFeedPage("news", err)

					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						failed++
						in.log.Warn().Err(err).Str("query", q.Query).Int("skip", q.Skip).Msg("news page failed")
						return nil
					}
					articles = append(articles, got...)
					return nil
				})
			}
		}
	}

	_ = g.Wait()

	report := IngestReport{FailedPages: failed}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	n, err := in.catalog.UpsertJobs(ctx, jobs)
	if err != nil {
		return report, err
	}
	report.Jobs = n

	n, err = in.catalog.UpsertArticles(ctx, articles)
	if err != nil {
		return report, err
	}
	report.Articles = n

	in.log.Info().
		Int("jobs", report.Jobs).
		Int("articles", report.Articles).
		Int("failed_pages", report.FailedPages).
		Msg("feed ingestion finished")
	return report, nil
}
