package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const tokensSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	token           TEXT PRIMARY KEY,
	channel_name    TEXT NOT NULL,
	channel_version TEXT NOT NULL,
	expires_ms      INTEGER NOT NULL,
	play_url        TEXT UNIQUE NOT NULL
)`

// SQLiteStore persists tokens in the tokens table. Expiry is stored as unix
// milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the tokens table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, tokensSchema); err != nil {
		return nil, fmt.Errorf("create tokens table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.Save.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tokens (token, channel_name, channel_version, expires_ms, play_url) VALUES (?, ?, ?, ?, ?)`,
		rec.Token, rec.Channel.Name, rec.Channel.Version, rec.ExpiresAt.UnixMilli(), rec.PlayURL)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, tok string) (Record, bool, error) {
	var (
		rec       Record
		expiresMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, channel_name, channel_version, expires_ms, play_url FROM tokens WHERE token = ?`, tok).
		Scan(&rec.Token, &rec.Channel.Name, &rec.Channel.Version, &expiresMs, &rec.PlayURL)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get token: %w", err)
	}
	rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	return rec, true, nil
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, tok string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = ?`, tok); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// PurgeExpired implements Store.PurgeExpired.
func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE expires_ms < ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return int(n), nil
}
