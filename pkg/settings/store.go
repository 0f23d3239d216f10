// Package settings persists operator preferences that never leave the
// machine, such as the n8n instance address and key.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"stockton/pkg/workflows"
)

// Known keys.
const (
	KeyN8nBaseURL = "stockton_n8n_base_url"
	KeyN8nAPIKey  = "stockton_n8n_api_key"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS local_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Store is a key/value table in a local SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the settings database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping settings db: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on settings db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply settings schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close settings db: %w", err)
	}
	return nil
}

// Get returns the value for key, or "" when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM local_settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

// Set stores value under key, trimmed.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, strings.TrimSpace(value), s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Entry is one stored setting.
type Entry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// All lists every setting ordered by key.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value, updated_at FROM local_settings ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// N8nConfig returns the saved n8n instance. A base URL that normalizes is
// returned normalized; anything else is returned as typed so the caller can
// surface the validation error.
func (s *Store) N8nConfig(ctx context.Context) (workflows.Config, error) {
	base, err := s.Get(ctx, KeyN8nBaseURL)
	if err != nil {
		return workflows.Config{}, err
	}
	key, err := s.Get(ctx, KeyN8nAPIKey)
	if err != nil {
		return workflows.Config{}, err
	}
	if normalized, err := workflows.NormalizeBaseURL(base); err == nil {
		base = normalized
	}
	return workflows.Config{BaseURL: base, APIKey: key}, nil
}

// SaveN8nConfig stores both n8n fields in one transaction.
func (s *Store) SaveN8nConfig(ctx context.Context, cfg workflows.Config) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ts := s.now().UTC().Format(time.RFC3339)
	for key, value := range map[string]string{
		KeyN8nBaseURL: cfg.BaseURL,
		KeyN8nAPIKey:  cfg.APIKey,
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO local_settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, strings.TrimSpace(value), ts); err != nil {
			return fmt.Errorf("save %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}

// Redact masks a secret for display, keeping the last four characters.
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	r := []rune(secret)
	if len(r) <= 4 {
		return strings.Repeat("•", len(r))
	}
	return strings.Repeat("•", len(r)-4) + string(r[len(r)-4:])
}
