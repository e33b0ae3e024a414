package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

// HTTPEmbedder calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEmbedder struct {
	URL    string // full endpoint URL
	Model  string
	APIKey string
	Client *http.Client
}

var _ embedding.Embedder = (*HTTPEmbedder)(nil)

func (e *HTTPEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(map[string]any{"model": e.Model, "input": texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := httpClient(e.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding gateway returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embeddings: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	out := make([][]float64, len(texts))
	for i, d := range result.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

// QdrantIndex is an eino retriever that embeds the query and runs a vector
// search against one Qdrant collection. Document content comes from the
// point payload "content"; "source" lands in the document metadata.
type QdrantIndex struct {
	BaseURL    string
	Collection string
	TopK       int
	Embedder   embedding.Embedder
	Client     *http.Client
}

var _ retriever.Retriever = (*QdrantIndex)(nil)

func (q *QdrantIndex) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = 3
	}
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK, Embedding: q.Embedder}, opts...)
	if options.Embedding == nil {
		return nil, errors.New("qdrant retriever has no embedder")
	}

	vectors, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding response")
	}

	limit := topK
	if options.TopK != nil && *options.TopK > 0 {
		limit = *options.TopK
	}
	docs, err := q.search(ctx, vectors[0], limit)
	if err != nil {
		return nil, err
	}
	if options.ScoreThreshold != nil {
		kept := docs[:0]
		for _, d := range docs {
			if d.Score() >= *options.ScoreThreshold {
				kept = append(kept, d)
			}
		}
		docs = kept
	}
	return docs, nil
}

func (q *QdrantIndex) search(ctx context.Context, vector []float64, limit int) ([]*schema.Document, error) {
	searchURL := fmt.Sprintf("%s/collections/%s/points/search", strings.TrimRight(q.BaseURL, "/"), q.Collection)
	body, err := json.Marshal(map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(q.Client).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qdrant search failed with status %d", resp.StatusCode)
	}

	var searchResponse struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResponse); err != nil {
		return nil, fmt.Errorf("decode qdrant response: %w", err)
	}

	docs := make([]*schema.Document, 0, len(searchResponse.Result))
	for _, item := range searchResponse.Result {
		content, ok := item.Payload["content"].(string)
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		doc := &schema.Document{ID: fmt.Sprint(item.ID), Content: content, MetaData: map[string]any{}}
		if source, _ := item.Payload["source"].(string); source != "" {
			doc.MetaData["source"] = source
		}
		docs = append(docs, doc.WithScore(item.Score))
	}
	return docs, nil
}

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return defaultHTTPClient
}
