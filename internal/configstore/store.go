// ABOUTME: Store caching the last fetched and classified configuration entries
// ABOUTME: Typed accessors fall back to defaults when a bucket is missing or malformed

package configstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/edushare/internal/api"
)

// Lister fetches every configuration entry.
type Lister interface {
	ListConfigs(ctx context.Context) ([]api.ConfigEntry, error)
}

// Store caches the classification of the most recent successful fetch.
type Store struct {
	lister Lister
	logger *slog.Logger

	mu      sync.RWMutex
	loaded  bool
	entries []api.ConfigEntry
	cls     Classification
}

// NewStore creates an empty store. Nothing is fetched until LoadAll.
func NewStore(lister Lister) *Store {
	return &Store{
		lister: lister,
		logger: slog.Default().With("component", "configstore"),
		cls:    Classify(nil),
	}
}

// LoadAll fetches and classifies every entry. On error the previous cache is kept.
func (s *Store) LoadAll(ctx context.Context) error {
	entries, err := s.lister.ListConfigs(ctx)
	if err != nil {
		return fmt.Errorf("loading configs: %w", err)
	}
	cls := Classify(entries)

	s.mu.Lock()
	s.entries = append([]api.ConfigEntry(nil), entries...)
	s.cls = cls
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("configs loaded", "entries", len(entries), "other", len(cls.Other))
	return nil
}

// Apply records an entry returned by a create or update, replacing the cached
// entry with the same id, and reclassifies. The next LoadAll supersedes it.
func (s *Store) Apply(entry api.ConfigEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append([]api.ConfigEntry(nil), s.entries...)
	replaced := false
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	s.entries = entries
	s.cls = Classify(entries)
}

// Loaded reports whether LoadAll has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Classification returns a copy of the cached classification.
func (s *Store) Classification() Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cls.clone()
}

// Lookup returns the server entry currently holding a typed bucket.
func (s *Store) Lookup(b Bucket) (api.ConfigEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e := s.cls.Entry(b); e != nil {
		return *e, true
	}
	return api.ConfigEntry{}, false
}

// LookupKey returns the cached entry with exactly this key, including
// entries hidden from every bucket.
func (s *Store) LookupKey(key string) (api.ConfigEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Key == key {
			return s.entries[i], true
		}
	}
	return api.ConfigEntry{}, false
}

// Other returns the entries of the Other bucket in fetch order.
func (s *Store) Other() []api.ConfigEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]api.ConfigEntry{}, s.cls.Other...)
}

// PointRules returns the point rules document and whether it came from the server.
func (s *Store) PointRules() (PointRules, bool) {
	var doc PointRules
	if s.decode(BucketPointRules, &doc) {
		return doc, true
	}
	return DefaultPointRules(), false
}

// UserLevels returns the user levels document and whether it came from the server.
func (s *Store) UserLevels() (UserLevels, bool) {
	var doc UserLevels
	if s.decode(BucketUserLevels, &doc) {
		return doc, true
	}
	return DefaultUserLevels(), false
}

// SystemSettings returns the system settings document and whether it came from the server.
func (s *Store) SystemSettings() (SystemSettings, bool) {
	var doc SystemSettings
	if s.decode(BucketSystemSettings, &doc) {
		return doc, true
	}
	return DefaultSystemSettings(), false
}

func (s *Store) decode(b Bucket, v any) bool {
	e, ok := s.Lookup(b)
	if !ok {
		return false
	}
	if err := decodeDocument(e.Value, v); err != nil {
		s.logger.Warn("malformed config document, showing defaults",
			"bucket", b.String(), "config_key", e.Key, "error", err)
		return false
	}
	return true
}
