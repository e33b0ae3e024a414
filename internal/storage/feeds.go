package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jobmate/backend/internal/model/feed"
)

const feedSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	jobtitle TEXT NOT NULL,
	employername TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	minsalary REAL,
	maxsalary REAL,
	jobdescription TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	published INTEGER NOT NULL DEFAULT 0,
	url TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT ''
);
`

const defaultPageSize = 20

// SearchPassages scores at most this many matching rows per table.
const (
	searchCandidateFactor = 10
	minSearchCandidates   = 50
)

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	Keyword  string
	Location string
	Skip     int
	Take     int
}

// FeedStore is the local catalog of ingested jobs and articles.
type FeedStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewFeedStore(ctx context.Context, path string) (*FeedStore, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, feedSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init feed schema: %w", err)
	}
	return &FeedStore{db: db}, nil
}

// UpsertJobs inserts or refreshes jobs by external id and returns how many
// rows were written.
func (s *FeedStore) UpsertJobs(ctx context.Context, jobs []feed.Job) (int, error) {
	if len(jobs) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert jobs: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO jobs (external_id, jobtitle, employername, location, minsalary, maxsalary, jobdescription, url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			jobtitle = excluded.jobtitle,
			employername = excluded.employername,
			location = excluded.location,
			minsalary = excluded.minsalary,
			maxsalary = excluded.maxsalary,
			jobdescription = excluded.jobdescription,
			url = excluded.url`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert jobs: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, j := range jobs {
		if strings.TrimSpace(j.ExternalID) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, j.ExternalID, j.Title, j.Employer, j.Location,
			nullFloat(j.MinSalary), nullFloat(j.MaxSalary), j.Description, j.URL); err != nil {
			return 0, fmt.Errorf("upsert job %s: %w", j.ExternalID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert jobs: %w", err)
	}
	return written, nil
}

// UpsertArticles inserts or refreshes articles by external id.
func (s *FeedStore) UpsertArticles(ctx context.Context, articles []feed.Article) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert articles: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO articles (external_id, title, published, url, content)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			title = excluded.title,
			published = excluded.published,
			url = excluded.url,
			content = excluded.content`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert articles: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, a := range articles {
		if strings.TrimSpace(a.ExternalID) == "" {
			continue
		}
		var published int64
		if !a.Published.IsZero() {
			published = a.Published.UTC().Unix()
		}
		if _, err := stmt.ExecContext(ctx, a.ExternalID, a.Title, published, a.URL, a.Content); err != nil {
			return 0, fmt.Errorf("upsert article %s: %w", a.ExternalID, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert articles: %w", err)
	}
	return written, nil
}

func (s *FeedStore) ListJobs(ctx context.Context, f JobFilter) ([]feed.Job, error) {
	var (
		where []string
		args  []any
	)
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		where = append(where, `(jobtitle LIKE ? ESCAPE '\' OR jobdescription LIKE ? ESCAPE '\')`)
		args = append(args, like(kw), like(kw))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, `location LIKE ? ESCAPE '\'`)
		args = append(args, like(loc))
	}
	q := `SELECT id, external_id, jobtitle, employername, location, minsalary, maxsalary, jobdescription, url FROM jobs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, ` AND `)
	}
	q += ` ORDER BY id ASC LIMIT ? OFFSET ?`
	take, skip := page(f.Take, f.Skip)
	args = append(args, take, skip)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	out := make([]feed.Job, 0)
	for rows.Next() {
		var (
			j              feed.Job
			minSal, maxSal sql.NullFloat64
		)
		if err := rows.Scan(&j.ID, &j.ExternalID, &j.Title, &j.Employer, &j.Location, &minSal, &maxSal, &j.Description, &j.URL); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.MinSalary = floatPtr(minSal)
		j.MaxSalary = floatPtr(maxSal)
		out = append(out, j)
	}
	return out, rows.Err()
}

// ListArticles returns articles, most recently published first.
func (s *FeedStore) ListArticles(ctx context.Context, skip, take int) ([]feed.Article, error) {
	take, skip = page(take, skip)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, external_id, title, published, url, content FROM articles ORDER BY published DESC, id DESC LIMIT ? OFFSET ?`,
		take, skip)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	out := make([]feed.Article, 0)
	for rows.Next() {
		var (
			a         feed.Article
			published int64
		)
		if err := rows.Scan(&a.ID, &a.ExternalID, &a.Title, &published, &a.URL, &a.Content); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		if published > 0 {
			a.Published = time.Unix(published, 0).UTC()
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *FeedStore) DeleteJob(ctx context.Context, id int64) (bool, error) {
	return s.delete(ctx, `DELETE FROM jobs WHERE id = ?`, id)
}

func (s *FeedStore) DeleteArticle(ctx context.Context, id int64) (bool, error) {
	return s.delete(ctx, `DELETE FROM articles WHERE id = ?`, id)
}

func (s *FeedStore) delete(ctx context.Context, q string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchPassages matches query terms against job and article text and
// returns the best snippets, highest score first.
func (s *FeedStore) SearchPassages(ctx context.Context, query string, limit int) ([]feed.Snippet, error) {
	terms := searchTerms(query)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	jobClauses := make([]string, 0, len(terms))
	articleClauses := make([]string, 0, len(terms))
	jobArgs := make([]any, 0, len(terms)*2)
	articleArgs := make([]any, 0, len(terms)*2)
	for _, t := range terms {
		jobClauses = append(jobClauses, `(lower(jobtitle) LIKE ? ESCAPE '\' OR lower(jobdescription) LIKE ? ESCAPE '\')`)
		jobArgs = append(jobArgs, like(t), like(t))
		articleClauses = append(articleClauses, `(lower(title) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\')`)
		articleArgs = append(articleArgs, like(t), like(t))
	}

	candidates := searchCandidates(limit)
	var out []feed.Snippet

	rows, err := s.db.QueryContext(ctx,
		`SELECT jobtitle, employername, location, jobdescription, url FROM jobs WHERE `+strings.Join(jobClauses, ` OR `)+
			` ORDER BY id DESC LIMIT ?`,
		append(jobArgs, candidates)...)
	if err != nil {
		return nil, fmt.Errorf("search jobs: %w", err)
	}
	for rows.Next() {
		var title, employer, location, desc, url string
		if err := rows.Scan(&title, &employer, &location, &desc, &url); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan job snippet: %w", err)
		}
		text := strings.TrimSpace(fmt.Sprintf("%s at %s (%s). %s", title, employer, location, desc))
		out = append(out, feed.Snippet{
			Kind:   "job",
			Title:  title,
			Text:   text,
			Source: url,
			Score:  termScore(terms, title+" "+desc),
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT title, url, content FROM articles WHERE `+strings.Join(articleClauses, ` OR `)+
			` ORDER BY published DESC, id DESC LIMIT ?`,
		append(articleArgs, candidates)...)
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var title, url, content string
		if err := rows.Scan(&title, &url, &content); err != nil {
			return nil, fmt.Errorf("scan article snippet: %w", err)
		}
		out = append(out, feed.Snippet{
			Kind:   "article",
			Title:  title,
			Text:   strings.TrimSpace(title + ". " + content),
			Source: url,
			Score:  termScore(terms, title+" "+content),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FeedStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func searchTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

func termScore(terms []string, text string) float64 {
	text = strings.ToLower(text)
	var score float64
	for _, t := range terms {
		score += float64(strings.Count(text, t))
	}
	return score
}

func searchCandidates(limit int) int {
	return max(limit*searchCandidateFactor, minSearchCandidates)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// like builds a contains-pattern for LIKE ... ESCAPE '\'.
func like(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func page(take, skip int) (int, int) {
	if take <= 0 {
		take = defaultPageSize
	}
	if skip < 0 {
		skip = 0
	}
	return take, skip
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
