// Package retrieval looks up passages relevant to a chat message.
package retrieval

import (
	"context"
	"iter"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/rs/zerolog"
)

// Passage is one retrieved chunk of text. Score is backend specific.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}

// Retriever returns a finite, single-pass sequence of passages in the
// backend's native order. An error ends the sequence.
type Retriever interface {
	Retrieve(ctx context.Context, query string) iter.Seq2[Passage, error]
}

// Func adapts a function to Retriever.
type Func func(ctx context.Context, query string) iter.Seq2[Passage, error]

func (f Func) Retrieve(ctx context.Context, query string) iter.Seq2[Passage, error] {
	return f(ctx, query)
}

// Empty never returns passages.
type Empty struct{}

func (Empty) Retrieve(context.Context, string) iter.Seq2[Passage, error] {
	return func(func(Passage, error) bool) {}
}

// Named tags a retriever for logs and metrics.
type Named struct {
	Name string
	Retriever
}

// Chain concatenates the output of several retrievers. A retriever that
// fails is skipped and reported through OnError; the rest still run.
type Chain struct {
	Retrievers []Named
	OnError    func(name string, err error)
}

func (c Chain) Retrieve(ctx context.Context, query string) iter.Seq2[Passage, error] {
	return func(yield func(Passage, error) bool) {
		for _, r := range c.Retrievers {
			if r.Retriever == nil {
				continue
			}
			for p, err := range r.Retrieve(ctx, query) {
				if err != nil {
					if c.OnError != nil {
						c.OnError(r.Name, err)
					}
					break
				}
				if !yield(p, nil) {
					return
				}
			}
			if ctx.Err() != nil {
				yield(Passage{}, ctx.Err())
				return
			}
		}
	}
}

// Collect drains seq into a slice, stopping at limit when limit > 0.
func Collect(seq iter.Seq2[Passage, error], limit int) ([]Passage, error) {
	var out []Passage
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Eino wraps an eino retriever component.
type Eino struct {
	R   retriever.Retriever
	Log zerolog.Logger
}

func (e Eino) Retrieve(ctx context.Context, query string) iter.Seq2[Passage, error] {
	return func(yield func(Passage, error) bool) {
		docs, err := e.R.Retrieve(ctx, query)
		if err != nil {
			yield(Passage{}, err)
			return
		}
		for _, d := range docs {
			if d == nil || d.Content == "" {
				continue
			}
			source, _ := d.MetaData["source"].(string)
			if source == "" {
				source = d.ID
			}
			if !yield(Passage{Text: d.Content, Source: source, Score: d.Score()}, nil) {
				return
			}
		}
		e.Log.Debug().Int("documents", len(docs)).Msg("eino retriever returned documents")
	}
}
