// Package feed holds the job listings and news articles ingested from
// third-party APIs into the local catalog.
package feed

import "time"

// Job is one job listing.
type Job struct {
	ID          int64    `json:"id"`
	ExternalID  string   `json:"externalId"`
	Title       string   `json:"title"`
	Employer    string   `json:"employer"`
	Location    string   `json:"location"`
	MinSalary   *float64 `json:"minSalary,omitempty"`
	MaxSalary   *float64 `json:"maxSalary,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Article is one news article.
type Article struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"externalId"`
	Title      string    `json:"title"`
	Published  time.Time `json:"published"`
	URL        string    `json:"url"`
	Content    string    `json:"content,omitempty"`
}

// Snippet is a catalog row matched by a keyword search, flattened for use as
// chat context.
type Snippet struct {
	Kind   string  `json:"kind"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}
