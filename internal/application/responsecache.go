package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/activityreport/internal/domain/model"
	"github.com/ericfisherdev/activityreport/internal/domain/port/driven"
)

// DefaultCacheDuration is how long a cached response stays valid.
const DefaultCacheDuration = 24 * time.Hour

// ResponseCache is a time-bounded, credential-scoped key-value store for
// remote API responses. Every operation is one read-modify-write of the
// whole backend snapshot under a mutex. Backend I/O failures are logged and
// degrade to cache misses and dropped writes; no method returns an error.
//
// A snapshot with no recorded fingerprint is adopted by the active
// credential without being wiped. This lets data written before
// fingerprints existed survive; it is not a security guarantee.
type ResponseCache struct {
	mu          sync.Mutex
	backend     driven.CacheBackend
	fingerprint string
	duration    time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// CacheOption configures a ResponseCache.
type CacheOption func(*ResponseCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *ResponseCache) { c.now = now }
}

// WithCacheLogger overrides the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *ResponseCache) { c.logger = logger }
}

// NewResponseCache creates a cache over backend scoped to credential.
// A non-positive duration selects DefaultCacheDuration.
func NewResponseCache(backend driven.CacheBackend, credential string, duration time.Duration, opts ...CacheOption) *ResponseCache {
	if duration <= 0 {
		duration = DefaultCacheDuration
	}
	c := &ResponseCache{
		backend:     backend,
		fingerprint: Fingerprint(credential),
		duration:    duration,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint derives the credential fingerprint stored alongside cached data.
func Fingerprint(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// Init loads the store once so a credential change wipes it before the
// first read of the run.
func (c *ResponseCache) Init(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.load(ctx)
}

// Get returns the payload cached under ns/key. Absent and expired entries
// both report false.
func (c *ResponseCache) Get(ctx context.Context, ns model.CacheNamespace, key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.load(ctx)
	if !ok {
		return nil, false
	}

	entry, found := snap.Namespace(ns)[key]
	if !found || !c.valid(entry) {
		c.logger.Debug("cache miss", "namespace", ns, "key", key)
		return nil, false
	}

	c.logger.Debug("cache hit", "namespace", ns, "key", key)
	return entry.Data, true
}

// Set stores data under ns/key stamped with the current time, replacing
// any previous entry.
func (c *ResponseCache) Set(ctx context.Context, ns model.CacheNamespace, key string, data json.RawMessage) {
	if !ns.Valid() {
		c.logger.Warn("cache write dropped: unknown namespace", "namespace", ns, "key", key)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.load(ctx)
	if !ok {
		return
	}

	snap.Namespace(ns)[key] = model.CacheEntry{Data: data, StoredAt: c.now()}
	if c.save(ctx, snap) {
		c.logger.Debug("cache set", "namespace", ns, "key", key)
	}
}

// GetJSON decodes the payload cached under ns/key into v. Undecodable
// payloads are reported as misses.
func (c *ResponseCache) GetJSON(ctx context.Context, ns model.CacheNamespace, key string, v any) bool {
	data, ok := c.Get(ctx, ns, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		c.logger.Warn("cache entry undecodable", "namespace", ns, "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON encodes v and stores it under ns/key.
func (c *ResponseCache) SetJSON(ctx context.Context, ns model.CacheNamespace, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache write dropped: encode payload", "namespace", ns, "key", key, "error", err)
		return
	}
	c.Set(ctx, ns, key, data)
}

// ClearExpired removes every entry older than the cache duration.
func (c *ResponseCache) ClearExpired(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.load(ctx)
	if !ok {
		return
	}

	removed := 0
	for _, ns := range model.CacheNamespaces {
		entries := snap.Namespace(ns)
		for key, entry := range entries {
			if !c.valid(entry) {
				delete(entries, key)
				removed++
			}
		}
	}

	if removed == 0 {
		return
	}
	if c.save(ctx, snap) {
		c.logger.Info("expired cache entries cleared", "removed", removed)
	}
}

// ClearAll resets the store to empty, stamped with the active fingerprint.
func (c *ResponseCache) ClearAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.save(ctx, model.NewCacheSnapshot(c.fingerprint)) {
		c.logger.Info("all cache cleared")
	}
}

// Stats reports per-namespace entry counts.
func (c *ResponseCache) Stats(ctx context.Context) model.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.load(ctx)
	if !ok {
		snap = model.NewCacheSnapshot(c.fingerprint)
	}

	stats := model.CacheStats{Namespaces: make([]model.NamespaceStats, 0, len(model.CacheNamespaces))}
	for _, ns := range model.CacheNamespaces {
		s := model.NamespaceStats{Namespace: ns}
		for _, entry := range snap.Namespace(ns) {
			s.Entries++
			if !c.valid(entry) {
				s.Expired++
			}
			if s.Oldest.IsZero() || entry.StoredAt.Before(s.Oldest) {
				s.Oldest = entry.StoredAt
			}
			if entry.StoredAt.After(s.Newest) {
				s.Newest = entry.StoredAt
			}
		}
		stats.Namespaces = append(stats.Namespaces, s)
	}
	return stats
}

// Duration returns the validity window of an entry.
func (c *ResponseCache) Duration() time.Duration {
	return c.duration
}

func (c *ResponseCache) valid(entry model.CacheEntry) bool {
	return c.now().Sub(entry.StoredAt) < c.duration
}

// load reads the snapshot and applies the credential policy. Callers hold mu.
func (c *ResponseCache) load(ctx context.Context) (model.CacheSnapshot, bool) {
	snap, err := c.backend.Load(ctx)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "error", err)
		return model.CacheSnapshot{}, false
	}

	switch {
	case snap.CredentialFingerprint == "":
		snap.CredentialFingerprint = c.fingerprint
		c.save(ctx, snap)
	case snap.CredentialFingerprint != c.fingerprint:
		c.logger.Info("credential changed, clearing all cache",
			"previous", shortFingerprint(snap.CredentialFingerprint),
			"current", shortFingerprint(c.fingerprint),
		)
		// The wiped snapshot is served even when persisting it fails.
		snap = model.NewCacheSnapshot(c.fingerprint)
		c.save(ctx, snap)
	}

	return snap, true
}

// save writes the snapshot. Callers hold mu.
func (c *ResponseCache) save(ctx context.Context, snap model.CacheSnapshot) bool {
	if err := c.backend.Save(ctx, snap); err != nil {
		c.logger.Warn("cache write failed, dropping", "error", err)
		return false
	}
	return true
}

func shortFingerprint(fp string) string {
	if len(fp) > 8 {
		return fp[:8]
	}
	return fp
}
