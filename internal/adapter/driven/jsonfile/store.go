// Package jsonfile implements the CacheBackend port as a single JSON document
// on disk, replaced atomically on every save.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CacheBackend = (*Store)(nil)

// document is the on-disk shape:
//
//	{"users": {id: {data, timestamp}}, "projects": {...}, "credentialFingerprint": "..."}
//
// timestamp is milliseconds since the Unix epoch.
type document struct {
	Users                 map[string]entry `json:"users"`
	Projects              map[string]entry `json:"projects"`
	CredentialFingerprint string           `json:"credentialFingerprint,omitempty"`
}

type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// Store persists cache snapshots to a JSON file.
type Store struct {
	path string
}

// NewStore returns a Store writing to path. Nothing touches the disk until
// the first Load or Save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document. A missing file is created empty, together with
// its directory, and yields an empty unlabeled snapshot.
func (s *Store) Load(_ context.Context) (model.CacheSnapshot, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.write(document{}); err != nil {
			return model.CacheSnapshot{}, err
		}
		return model.NewCacheSnapshot(""), nil
	}
	if err != nil {
		return model.CacheSnapshot{}, fmt.Errorf("reading cache file %s: %w", s.path, err)
	}

	var doc document
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return model.CacheSnapshot{}, fmt.Errorf("decoding cache file %s: %w", s.path, err)
		}
	}

	snap := model.NewCacheSnapshot(doc.CredentialFingerprint)
	copyIn(snap.Namespace(model.NamespaceUsers), doc.Users)
	copyIn(snap.Namespace(model.NamespaceProjects), doc.Projects)
	return snap, nil
}

// Save replaces the document with snap.
func (s *Store) Save(_ context.Context, snap model.CacheSnapshot) error {
	return s.write(document{
		Users:                 copyOut(snap.Entries[model.NamespaceUsers]),
		Projects:              copyOut(snap.Entries[model.NamespaceProjects]),
		CredentialFingerprint: snap.CredentialFingerprint,
	})
}

func (s *Store) write(doc document) error {
	if doc.Users == nil {
		doc.Users = map[string]entry{}
	}
	if doc.Projects == nil {
		doc.Projects = map[string]entry{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache document: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing cache file %s: %w", s.path, err)
	}
	return nil
}

func copyIn(dst map[string]model.CacheEntry, src map[string]entry) {
	for key, e := range src {
		dst[key] = model.CacheEntry{Data: e.Data, StoredAt: time.UnixMilli(e.Timestamp).UTC()}
	}
}

func copyOut(src map[string]model.CacheEntry) map[string]entry {
	out := make(map[string]entry, len(src))
	for key, e := range src {
		out[key] = entry{Data: e.Data, Timestamp: e.StoredAt.UnixMilli()}
	}
	return out
}
