// Package storage persists chat exchanges and the feed catalog.
package storage

import (
	"context"
	"strings"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/model/chat"
)

// RecentLimit is the number of exchanges kept in last_three_chats.
const RecentLimit = 3

// Target names one of the two chat tables.
type Target string

const (
	TargetAll    Target = "all_chats"
	TargetRecent Target = "last_three_chats"
)

// ParseTarget validates a table name coming from a request.
func ParseTarget(raw string) (Target, error) {
	switch t := Target(strings.TrimSpace(raw)); t {
	case TargetAll, TargetRecent:
		return t, nil
	default:
		return "", apperr.Errorf(apperr.InvalidTarget, "storage.ParseTarget", "unknown table %q", raw)
	}
}

// ChatStore is the durable log of chat exchanges.
type ChatStore interface {
	// Append records one exchange in all_chats and last_three_chats and
	// trims last_three_chats, all in one transaction.
	Append(ctx context.Context, userMessage, botResponse string) (int64, error)
	// ListAll returns every exchange, oldest first.
	ListAll(ctx context.Context) ([]chat.Record, error)
	// ListRecent returns at most RecentLimit exchanges, newest first.
	ListRecent(ctx context.Context) ([]chat.Record, error)
	// Delete removes the row with id from target and reports whether it existed.
	Delete(ctx context.Context, id int64, target Target) (bool, error)
	Close() error
}

// Config selects and configures the chat store backend.
type Config struct {
	DatabaseURL string // postgres when set
	SQLitePath  string
}

// Open picks Postgres when a database URL is configured, otherwise SQLite.
func Open(ctx context.Context, cfg Config) (ChatStore, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	}
	path := cfg.SQLitePath
	if strings.TrimSpace(path) == "" {
		path = "jobmate.db"
	}
	return NewSQLiteStore(ctx, path)
}
