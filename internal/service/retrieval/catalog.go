package retrieval

import (
	"context"
	"iter"

	"github.com/jobmate/backend/internal/model/feed"
)

// PassageSearcher is the keyword search exposed by the feed catalog.
type PassageSearcher interface {
	SearchPassages(ctx context.Context, query string, limit int) ([]feed.Snippet, error)
}

// CatalogRetriever serves passages from locally ingested jobs and news.
type CatalogRetriever struct {
	Searcher PassageSearcher
	Limit    int
}

func (c *CatalogRetriever) Retrieve(ctx context.Context, query string) iter.Seq2[Passage, error] {
	return func(yield func(Passage, error) bool) {
		limit := c.Limit
		if limit <= 0 {
			limit = 3
		}
		snippets, err := c.Searcher.SearchPassages(ctx, query, limit)
		if err != nil {
			yield(Passage{}, err)
			return
		}
		for _, s := range snippets {
			if !yield(Passage{Text: s.Text, Source: s.Source, Score: s.Score}, nil) {
				return
			}
		}
	}
}
