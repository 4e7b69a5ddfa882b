package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheBackend = (*CacheStore)(nil)

// fingerprintKey names the cache_meta row holding the credential fingerprint.
const fingerprintKey = "credential_fingerprint"

// CacheStore is the SQLite implementation of the CacheBackend port interface.
type CacheStore struct {
	db *DB
}

// NewCacheStore creates a new CacheStore backed by the given DB.
func NewCacheStore(db *DB) *CacheStore {
	return &CacheStore{db: db}
}

// Load reads every cached entry and the recorded credential fingerprint.
func (s *CacheStore) Load(ctx context.Context) (model.CacheSnapshot, error) {
	var fingerprint string
	err := s.db.Reader.QueryRowContext(ctx,
		`SELECT value FROM cache_meta WHERE name = ?`, fingerprintKey,
	).Scan(&fingerprint)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.CacheSnapshot{}, fmt.Errorf("load credential fingerprint: %w", err)
	}

	snap := model.NewCacheSnapshot(fingerprint)

	rows, err := s.db.Reader.QueryContext(ctx, `SELECT namespace, key, data, stored_at FROM cache_entries`)
	if err != nil {
		return model.CacheSnapshot{}, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ns       string
			key      string
			data     string
			storedAt string
		)
		if err := rows.Scan(&ns, &key, &data, &storedAt); err != nil {
			return model.CacheSnapshot{}, fmt.Errorf("scan cache entry: %w", err)
		}

		namespace := model.CacheNamespace(ns)
		if !namespace.Valid() {
			continue
		}

		t, err := parseTime(storedAt)
		if err != nil {
			return model.CacheSnapshot{}, fmt.Errorf("parse stored_at of %s/%s: %w", ns, key, err)
		}

		snap.Namespace(namespace)[key] = model.CacheEntry{Data: []byte(data), StoredAt: t}
	}

	if err := rows.Err(); err != nil {
		return model.CacheSnapshot{}, fmt.Errorf("iterate cache entries: %w", err)
	}

	return snap, nil
}

// Save replaces the entire cache content with snap in one transaction.
func (s *CacheStore) Save(ctx context.Context, snap model.CacheSnapshot) error {
	tx, err := s.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("clear cache entries: %w", err)
	}

	if snap.CredentialFingerprint == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_meta WHERE name = ?`, fingerprintKey); err != nil {
			return fmt.Errorf("clear credential fingerprint: %w", err)
		}
	} else {
		const upsert = `INSERT INTO cache_meta (name, value) VALUES (?, ?)
			ON CONFLICT(name) DO UPDATE SET value = excluded.value`
		if _, err := tx.ExecContext(ctx, upsert, fingerprintKey, snap.CredentialFingerprint); err != nil {
			return fmt.Errorf("store credential fingerprint: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cache_entries (namespace, key, data, stored_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cache entry insert: %w", err)
	}
	defer stmt.Close()

	for ns, entries := range snap.Entries {
		for key, entry := range entries {
			storedAt := entry.StoredAt.UTC().Format(time.RFC3339Nano)
			if _, err := stmt.ExecContext(ctx, string(ns), key, string(entry.Data), storedAt); err != nil {
				return fmt.Errorf("insert cache entry %s/%s: %w", ns, key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
