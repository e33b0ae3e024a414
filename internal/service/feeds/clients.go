// Package feeds pulls job listings and news articles from third-party APIs
// into the local catalog.
package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/model/feed"
)

// JobQuery selects one page of job search results.
type JobQuery struct {
	Keywords string
	Location string
	Skip     int
	Take     int
}

// NewsQuery selects one page of top news.
type NewsQuery struct {
	Query string
	Skip  int
	Take  int
}

// JobsClient talks to a job board search API. The API key is sent as the
// basic auth username with an empty password.
type JobsClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type jobsResponse struct {
	Results []struct {
		JobID          int64    `json:"jobId"`
		EmployerName   string   `json:"employerName"`
		JobTitle       string   `json:"jobTitle"`
		LocationName   string   `json:"locationName"`
		MinimumSalary  *float64 `json:"minimumSalary"`
		MaximumSalary  *float64 `json:"maximumSalary"`
		JobDescription string   `json:"jobDescription"`
		JobURL         string   `json:"jobUrl"`
	} `json:"results"`
	TotalResults int `json:"totalResults"`
}

func (c *JobsClient) Search(ctx context.Context, q JobQuery) ([]feed.Job, error) {
	const op = "feeds.JobsClient.Search"

	params := url.Values{}
	if q.Keywords != "" {
		params.Set("keywords", q.Keywords)
	}
	if q.Location != "" {
		params.Set("locationName", q.Location)
	}
	params.Set("resultsToSkip", strconv.Itoa(max(q.Skip, 0)))
	params.Set("resultsToTake", strconv.Itoa(pageSize(q.Take)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.New(apperr.InvalidRequest, op, err)
	}
	req.SetBasicAuth(c.APIKey, "")
	req.Header.Set("Accept", "application/json")

	var body jobsResponse
	if err := doJSON(c.HTTP, req, &body); err != nil {
		return nil, apperr.New(apperr.ServiceUnavailable, op, err)
	}

	jobs := make([]feed.Job, 0, len(body.Results))
	for _, r := range body.Results {
		jobs = append(jobs, feed.Job{
			ExternalID:  strconv.FormatInt(r.JobID, 10),
			Title:       strings.TrimSpace(r.JobTitle),
			Employer:    strings.TrimSpace(r.EmployerName),
			Location:    strings.TrimSpace(r.LocationName),
			MinSalary:   r.MinimumSalary,
			MaxSalary:   r.MaximumSalary,
			Description: strings.TrimSpace(r.JobDescription),
			URL:         r.JobURL,
		})
	}
	return jobs, nil
}

// NewsClient talks to a news API authenticated with a bearer token.
type NewsClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

type newsResponse struct {
	Data []struct {
		UUID        string `json:"uuid"`
		Title       string `json:"title"`
		PublishedAt string `json:"published_at"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Snippet     string `json:"snippet"`
	} `json:"data"`
}

func (c *NewsClient) Top(ctx context.Context, q NewsQuery) ([]feed.Article, error) {
	const op = "feeds.NewsClient.Top"

	params := url.Values{}
	if q.Query != "" {
		params.Set("search", q.Query)
	}
	params.Set("skip", strconv.Itoa(max(q.Skip, 0)))
	params.Set("take", strconv.Itoa(pageSize(q.Take)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.BaseURL, "/")+"/news/top?"+params.Encode(), nil)
	if err != nil {
		return nil, apperr.New(apperr.InvalidRequest, op, err)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")

	var body newsResponse
	if err := doJSON(c.HTTP, req, &body); err != nil {
		return nil, apperr.New(apperr.ServiceUnavailable, op, err)
	}

	articles := make([]feed.Article, 0, len(body.Data))
	for _, d := range body.Data {
		content := d.Description
		if content == "" {
			content = d.Snippet
		}
		var published time.Time
		if d.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, d.PublishedAt); err == nil {
				published = t.UTC()
			}
		}
		articles = append(articles, feed.Article{
			ExternalID: d.UUID,
			Title:      strings.TrimSpace(d.Title),
			Published:  published,
			URL:        d.URL,
			Content:    strings.TrimSpace(content),
		})
	}
	return articles, nil
}

var defaultHTTP = &http.Client{Timeout: 20 * time.Second}

func doJSON(client *http.Client, req *http.Request, out any) error {
	if client == nil {
		client = defaultHTTP
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func pageSize(take int) int {
	switch {
	case take <= 0:
		return 25
	case take > 100:
		return 100
	default:
		return take
	}
}
