package retrieval

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/jobmate/backend/internal/model/feed"
)

func fixed(passages ...Passage) Retriever {
	return Func(func(context.Context, string) iter.Seq2[Passage, error] {
		return func(yield func(Passage, error) bool) {
			for _, p := range passages {
				if !yield(p, nil) {
					return
				}
			}
		}
	})
}

func failing(err error) Retriever {
	return Func(func(context.Context, string) iter.Seq2[Passage, error] {
		return func(yield func(Passage, error) bool) {
			yield(Passage{}, err)
		}
	})
}

func TestEmptyYieldsNothing(t *testing.T) {
	got, err := Collect(Empty{}.Retrieve(context.Background(), "anything"), 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("Empty returned %v, %v", got, err)
	}
}

func TestChainSkipsFailingRetrievers(t *testing.T) {
	var failed []string
	chain := Chain{
		Retrievers: []Named{
			{Name: "vector", Retriever: failing(errors.New("qdrant down"))},
			{Name: "catalog", Retriever: fixed(Passage{Text: "a"}, Passage{Text: "b"})},
		},
		OnError: func(name string, _ error) { failed = append(failed, name) },
	}

	got, err := Collect(chain.Retrieve(context.Background(), "go jobs"), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 2 || got[0].Text != "a" {
		t.Fatalf("unexpected passages: %+v", got)
	}
	if len(failed) != 1 || failed[0] != "vector" {
		t.Fatalf("expected vector failure to be reported, got %v", failed)
	}
}

func TestCollectHonoursLimit(t *testing.T) {
	got, err := Collect(fixed(Passage{Text: "1"}, Passage{Text: "2"}, Passage{Text: "3"}).Retrieve(context.Background(), "q"), 2)
	if err != nil || len(got) != 2 {
		t.Fatalf("Collect = %v, %v", got, err)
	}
}

type stubSearcher struct {
	snippets []feed.Snippet
	err      error
	gotLimit int
}

func (s *stubSearcher) SearchPassages(_ context.Context, _ string, limit int) ([]feed.Snippet, error) {
	s.gotLimit = limit
	return s.snippets, s.err
}

func TestCatalogRetrieverMapsSnippets(t *testing.T) {
	searcher := &stubSearcher{snippets: []feed.Snippet{{Kind: "job", Text: "Go Developer at Acme", Source: "https://jobs/1", Score: 2}}}
	r := &CatalogRetriever{Searcher: searcher}

	got, err := Collect(r.Retrieve(context.Background(), "go"), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].Source != "https://jobs/1" || got[0].Score != 2 {
		t.Fatalf("unexpected passages: %+v", got)
	}
	if searcher.gotLimit != 3 {
		t.Fatalf("expected default limit 3, got %d", searcher.gotLimit)
	}

	searcher.err = errors.New("db locked")
	if _, err := Collect(r.Retrieve(context.Background(), "go"), 0); err == nil {
		t.Fatal("expected search error to surface")
	}
}

type stubEinoRetriever struct{ docs []*schema.Document }

func (s stubEinoRetriever) Retrieve(context.Context, string, ...retriever.Option) ([]*schema.Document, error) {
	return s.docs, nil
}

func TestEinoAdapter(t *testing.T) {
	doc := &schema.Document{ID: "doc-1", Content: "CV tips"}
	doc.WithScore(0.8)
	r := Eino{R: stubEinoRetriever{docs: []*schema.Document{doc, {ID: "blank"}}}}

	got, err := Collect(r.Retrieve(context.Background(), "cv"), 0)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(got) != 1 || got[0].Source != "doc-1" || got[0].Score != 0.8 {
		t.Fatalf("unexpected passages: %+v", got)
	}
}
