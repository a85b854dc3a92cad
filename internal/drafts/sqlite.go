// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores drafts in a local SQLite file, for single-node
// deployments without Valkey.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// drafts table exists. Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS drafts (
			owner TEXT NOT NULL,
			template_id TEXT NOT NULL,
			data BLOB NOT NULL,
			saved_at INTEGER NOT NULL,
			PRIMARY KEY (owner, template_id)
		);
		CREATE INDEX IF NOT EXISTS idx_drafts_owner_saved ON drafts(owner, saved_at);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure drafts schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// Put upserts the draft.
func (b *SQLiteBackend) Put(ctx context.Context, owner, key string, data []byte, savedAt time.Time, _ time.Duration) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO drafts (owner, template_id, data, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (owner, template_id) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		owner, key, data, savedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite put draft: %w", err)
	}
	return nil
}

// Get returns the entry for owner/key, or nil.
func (b *SQLiteBackend) Get(ctx context.Context, owner, key string) (*Entry, error) {
	var (
		data  []byte
		saved int64
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT data, saved_at FROM drafts WHERE owner = ? AND template_id = ?`, owner, key,
	).Scan(&data, &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get draft: %w", err)
	}
	return &Entry{Key: key, Data: data, Size: int64(len(data)), SavedAt: time.UnixMilli(saved)}, nil
}

// Delete removes owner/key.
func (b *SQLiteBackend) Delete(ctx context.Context, owner, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM drafts WHERE owner = ? AND template_id = ?`, owner, key); err != nil {
		return fmt.Errorf("sqlite delete draft: %w", err)
	}
	return nil
}

// List returns owner's entries without data.
func (b *SQLiteBackend) List(ctx context.Context, owner string) ([]Entry, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT template_id, length(data), saved_at FROM drafts WHERE owner = ? ORDER BY saved_at`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite list drafts: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			saved int64
		)
		if err := rows.Scan(&e.Key, &e.Size, &saved); err != nil {
			return nil, fmt.Errorf("sqlite scan draft: %w", err)
		}
		e.SavedAt = time.UnixMilli(saved)
		out = append(out, e)
	}
	return out, rows.Err()
}
