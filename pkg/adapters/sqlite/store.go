// Package sqlite stores flags in a SQLite database, for hosts that keep their save in one.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/callgate/internal/logging"
	"github.com/aretw0/callgate/pkg/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS flags (
	save       TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (save, key)
)`

// Store implements ports.FlagStore over a flags table.
// Values are stored as their JSON encoding.
type Store struct {
	db     *sql.DB
	save   string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger that reports undecodable rows.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens or creates the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(path, save string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create flags table: %w", err)
	}
	if save == "" {
		save = "default"
	}
	s := &Store{db: db, save: save, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (domain.Value, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM flags WHERE save = ? AND key = ?", s.save, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Value{}, domain.ErrFlagNotFound
	}
	if err != nil {
		return domain.Value{}, fmt.Errorf("query flag %s: %w", key, err)
	}
	return decodeValue(key, raw)
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value domain.Value) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal flag %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO flags (save, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (save, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.save, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write flag %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM flags WHERE save = ? AND key = ?", s.save, key); err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	return nil
}

// Snapshot returns every flag of the save.
// Rows other apps wrote in a foreign encoding are logged and left out.
func (s *Store) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM flags WHERE save = ?", s.save)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	snap := make(domain.Snapshot)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		v, err := decodeValue(key, raw)
		if err != nil {
			s.logger.Warn("skipping undecodable flag", "key", key, "err", err)
			continue
		}
		if !v.IsZero() {
			snap[key] = v
		}
	}
	return snap, rows.Err()
}

func decodeValue(key, raw string) (domain.Value, error) {
	var v domain.Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return domain.Value{}, fmt.Errorf("flag %s holds an invalid value: %w", key, err)
	}
	return v, nil
}
