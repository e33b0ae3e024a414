package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobmate/backend/internal/apperr"
	"github.com/jobmate/backend/internal/model/chat"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS all_chats (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_message TEXT NOT NULL,
	bot_response TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS last_three_chats (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
	user_message TEXT NOT NULL,
	bot_response TEXT NOT NULL
);
`

// appendLockKey is the transaction-scoped advisory lock that serializes
// appends so concurrent trims of last_three_chats see each other's rows.
const appendLockKey int64 = 0x6a6f626d617465

// PostgresStore is a ChatStore on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init chat schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, userMessage, botResponse string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return 0, fmt.Errorf("lock append: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO all_chats (timestamp, user_message, bot_response)
		 VALUES (clock_timestamp(), $1, $2) RETURNING id`,
		userMessage, botResponse).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert all_chats: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO last_three_chats (timestamp, user_message, bot_response)
		 VALUES (clock_timestamp(), $1, $2)`,
		userMessage, botResponse); err != nil {
		return 0, fmt.Errorf("insert last_three_chats: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM last_three_chats WHERE id NOT IN (
			SELECT id FROM last_three_chats ORDER BY timestamp DESC, id DESC LIMIT $1
		)`, RecentLimit); err != nil {
		return 0, fmt.Errorf("trim last_three_chats: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]chat.Record, error) {
	return s.query(ctx, `SELECT id, timestamp, user_message, bot_response FROM all_chats ORDER BY timestamp ASC, id ASC`)
}

func (s *PostgresStore) ListRecent(ctx context.Context) ([]chat.Record, error) {
	return s.query(ctx, `SELECT id, timestamp, user_message, bot_response FROM last_three_chats ORDER BY timestamp DESC, id DESC LIMIT $1`, RecentLimit)
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]chat.Record, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	out := make([]chat.Record, 0)
	for rows.Next() {
		var rec chat.Record
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.UserMessage, &rec.BotResponse); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id int64, target Target) (bool, error) {
	table, err := ParseTarget(string(target))
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return false, apperr.New(apperr.ServiceUnavailable, "storage.Delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}
