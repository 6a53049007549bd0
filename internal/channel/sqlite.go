package channel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const channelsSchema = `
CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	version    TEXT NOT NULL,
	source_url TEXT NOT NULL,
	UNIQUE(name, version)
)`

// SQLiteRegistry is a Registry persisted in the channels table.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates the channels table if needed and returns a registry backed by db.
func NewSQLiteRegistry(ctx context.Context, db *sql.DB) (*SQLiteRegistry, error) {
	if _, err := db.ExecContext(ctx, channelsSchema); err != nil {
		return nil, fmt.Errorf("create channels table: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

// Add implements Registry.Add.
func (r *SQLiteRegistry) Add(ctx context.Context, src Source) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO channels (name, version, source_url) VALUES (?, ?, ?)
		 ON CONFLICT(name, version) DO NOTHING`,
		src.ID.Name, src.ID.Version, src.URL)
	if err != nil {
		return fmt.Errorf("insert channel %s: %w", src.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert channel %s: %w", src.ID, err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Remove implements Registry.Remove.
func (r *SQLiteRegistry) Remove(ctx context.Context, id ID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM channels WHERE name = ? AND version = ?`, id.Name, id.Version)
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete channel %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get implements Registry.Get.
func (r *SQLiteRegistry) Get(ctx context.Context, id ID) (Source, error) {
	var url string
	err := r.db.QueryRowContext(ctx,
		`SELECT source_url FROM channels WHERE name = ? AND version = ?`, id.Name, id.Version).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, ErrNotFound
	}
	if err != nil {
		return Source{}, fmt.Errorf("get channel %s: %w", id, err)
	}
	return Source{ID: id, URL: url}, nil
}

// List implements Registry.List.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, version, source_url FROM channels ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID.Name, &src.ID.Version, &src.URL); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
