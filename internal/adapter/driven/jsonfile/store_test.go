package jsonfile_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/activityreport/internal/adapter/driven/jsonfile"
	"github.com/ericfisherdev/activityreport/internal/domain/model"
)

func TestLoad_CreatesMissingFileAndDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache", "activity-cache.json")
	store := jsonfile.NewStore(path)

	snap, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snap.CredentialFingerprint)
	assert.Empty(t, snap.Entries[model.NamespaceUsers])
	assert.Empty(t, snap.Entries[model.NamespaceProjects])

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users": {}, "projects": {}}`, string(raw))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := jsonfile.NewStore(filepath.Join(t.TempDir(), "cache.json"))
	stored := time.Date(2025, 3, 10, 9, 30, 0, 123_000_000, time.UTC)

	snap := model.NewCacheSnapshot("abc123")
	snap.Namespace(model.NamespaceProjects)["42"] = model.CacheEntry{Data: json.RawMessage(`{"id":42,"name":"alpha"}`), StoredAt: stored}
	snap.Namespace(model.NamespaceUsers)["7"] = model.CacheEntry{Data: json.RawMessage(`{"id":7}`), StoredAt: stored}

	require.NoError(t, store.Save(ctx, snap))
	got, err := store.Load(ctx)

	require.NoError(t, err)
	assert.Equal(t, "abc123", got.CredentialFingerprint)
	require.Contains(t, got.Entries[model.NamespaceProjects], "42")
	assert.JSONEq(t, `{"id":42,"name":"alpha"}`, string(got.Entries[model.NamespaceProjects]["42"].Data))
	assert.Equal(t, stored, got.Entries[model.NamespaceProjects]["42"].StoredAt)
	assert.Contains(t, got.Entries[model.NamespaceUsers], "7")
}

func TestSave_DocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	store := jsonfile.NewStore(path)

	snap := model.NewCacheSnapshot("fp")
	snap.Namespace(model.NamespaceProjects)["42"] = model.CacheEntry{
		Data:     json.RawMessage(`{"id":42}`),
		StoredAt: time.UnixMilli(1741599000000),
	}
	require.NoError(t, store.Save(context.Background(), snap))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"users": {},
		"projects": {"42": {"data": {"id": 42}, "timestamp": 1741599000000}},
		"credentialFingerprint": "fp"
	}`, string(raw))
}

func TestLoad_EmptyAndLegacyFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantFP  string
		wantLen int
	}{
		{name: "empty file", content: ""},
		{name: "empty object", content: "{}"},
		{
			name:    "unlabeled data",
			content: `{"users": {}, "projects": {"1": {"data": {"id": 1}, "timestamp": 1741599000000}}}`,
			wantLen: 1,
		},
		{
			name:    "labeled data",
			content: `{"users": {}, "projects": {}, "credentialFingerprint": "fp"}`,
			wantFP:  "fp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			snap, err := jsonfile.NewStore(path).Load(context.Background())

			require.NoError(t, err)
			assert.Equal(t, tt.wantFP, snap.CredentialFingerprint)
			assert.Len(t, snap.Entries[model.NamespaceProjects], tt.wantLen)
		})
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := jsonfile.NewStore(path).Load(context.Background())

	require.Error(t, err)
}
