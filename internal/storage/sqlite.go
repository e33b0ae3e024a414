package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/model/chat"
)

const chatSchema = `
CREATE TABLE IF NOT EXISTS all_chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	bot_response TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS last_three_chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER NOT NULL,
	user_message TEXT NOT NULL,
	bot_response TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_all_chats_ts ON all_chats(timestamp, id);
`

// SQLiteStore is a ChatStore on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteStore opens (creating when needed) the database at path.
// ":memory:" gives a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, chatSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init chat schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(3000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

func (s *SQLiteStore) Append(ctx context.Context, userMessage, botResponse string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now().UTC().UnixMicro()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO all_chats (timestamp, user_message, bot_response) VALUES (?, ?, ?)`,
		ts, userMessage, botResponse)
	if err != nil {
		return 0, fmt.Errorf("insert all_chats: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("all_chats id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO last_three_chats (timestamp, user_message, bot_response) VALUES (?, ?, ?)`,
		ts, userMessage, botResponse); err != nil {
		return 0, fmt.Errorf("insert last_three_chats: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM last_three_chats WHERE id NOT IN (
			SELECT id FROM last_three_chats ORDER BY timestamp DESC, id DESC LIMIT ?
		)`, RecentLimit); err != nil {
		return 0, fmt.Errorf("trim last_three_chats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]chat.Record, error) {
	return s.query(ctx, `SELECT id, timestamp, user_message, bot_response FROM all_chats ORDER BY timestamp ASC, id ASC`)
}

func (s *SQLiteStore) ListRecent(ctx context.Context) ([]chat.Record, error) {
	return s.query(ctx, `SELECT id, timestamp, user_message, bot_response FROM last_three_chats ORDER BY timestamp DESC, id DESC LIMIT ?`, RecentLimit)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]chat.Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Record, 0)
	for rows.Next() {
		var (
			rec chat.Record
			ts  int64
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.UserMessage, &rec.BotResponse); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		rec.Timestamp = time.UnixMicro(ts).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64, target Target) (bool, error) {
	table, err := ParseTarget(string(target))
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id)
	if err != nil {
		return false, apperr.New(apperr.ServiceUnavailable, "storage.Delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
