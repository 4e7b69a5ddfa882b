package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// CacheEntry is one cached payload and the instant it was stored.
type CacheEntry struct {
	Data     json.RawMessage
	StoredAt time.Time
}

// CacheSnapshot is the complete persisted cache state.
type CacheSnapshot struct {
	Entries               map[CacheNamespace]map[string]CacheEntry
	CredentialFingerprint string
}

// NewCacheSnapshot returns an empty snapshot stamped with fingerprint.
func NewCacheSnapshot(fingerprint string) CacheSnapshot {
	entries := make(map[CacheNamespace]map[string]CacheEntry, len(CacheNamespaces))
	for _, ns := range CacheNamespaces {
		entries[ns] = map[string]CacheEntry{}
	}
	return CacheSnapshot{Entries: entries, CredentialFingerprint: fingerprint}
}

// Namespace returns the entry map of ns, creating it when missing.
func (s *CacheSnapshot) Namespace(ns CacheNamespace) map[string]CacheEntry {
	if s.Entries == nil {
		s.Entries = make(map[CacheNamespace]map[string]CacheEntry, len(CacheNamespaces))
	}
	m, ok := s.Entries[ns]
	if !ok {
		m = map[string]CacheEntry{}
		s.Entries[ns] = m
	}
	return m
}

// NamespaceStats describes one cache namespace.
type NamespaceStats struct {
	Namespace CacheNamespace
	Entries   int
	Expired   int
	Oldest    time.Time
	Newest    time.Time
}

// CacheStats is read-only cache introspection.
type CacheStats struct {
	Namespaces []NamespaceStats
}

// Count returns the number of entries stored under ns.
func (s CacheStats) Count(ns CacheNamespace) int {
	for _, n := range s.Namespaces {
		if n.Namespace == ns {
			return n.Entries
		}
	}
	return 0
}

// CacheKey formats a numeric entity id as a cache key.
func CacheKey(id int64) string {
	return formatID(id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
