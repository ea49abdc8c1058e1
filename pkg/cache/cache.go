// Package cache keeps API responses on disk for a limited time.
//
// Entries are JSON files named after the SHA-256 of their key, stored under
// the XDG cache directory:
//
//	store, _ := cache.New("cmsctl", time.Hour)
//	var paths []resources.WarehousePath
//	if err := store.Load(url, &paths); errors.Is(err, cache.ErrMiss) {
//	    paths = fetch()
//	    _ = store.Save(url, paths)
//	}
//
// # Cache Locations
//
//   - Linux: ~/.cache/cmsctl/responses/
//   - macOS: ~/Library/Caches/cmsctl/responses/
//   - Windows: %LOCALAPPDATA%\cmsctl\responses\
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// DefaultTTL is how long entries stay valid when no TTL is configured.
const DefaultTTL = time.Hour

// ErrMiss is returned when an entry is missing or expired.
var ErrMiss = errors.New("cache miss")

// Entry is the on-disk form of a cached response.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Stats describes the content of a store.
type Stats struct {
	Dir     string `json:"dir" yaml:"dir"`
	Entries int    `json:"entries" yaml:"entries"`
	Expired int    `json:"expired" yaml:"expired"`
	Size    int64  `json:"size" yaml:"size"`
}

// Store is a directory of cached responses.
type Store struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu sync.Mutex
}

// DefaultDir returns the cache directory of cliName.
func DefaultDir(cliName string) string {
	return filepath.Join(xdg.CacheHome, cliName, "responses")
}

// New creates a store in the XDG cache directory of cliName.
func New(cliName string, ttl time.Duration) (*Store, error) {
	return NewWithDir(DefaultDir(cliName), ttl)
}

// NewWithDir creates a store in dir.
func NewWithDir(dir string, ttl time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// TTL returns how long entries stay valid.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Load decodes the entry of key into out. Missing, expired and unreadable
// entries are reported as ErrMiss.
func (s *Store) Load(key string, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.read(s.path(key))
	if err != nil || entry.Key != key || s.expired(entry) {
		return ErrMiss
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		return ErrMiss
	}
	return nil
}

// Save stores v under key.
func (s *Store) Save(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	raw, err := json.Marshal(&Entry{Key: key, Data: data, FetchedAt: s.now()})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.path(key), raw, 0600); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Invalidate removes the entry of key.
func (s *Store) Invalidate(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear() (int, error) {
	return s.remove(func(*Entry) bool { return true })
}

// Prune removes the expired entries and returns how many were removed.
func (s *Store) Prune() (int, error) {
	return s.remove(func(e *Entry) bool { return e == nil || s.expired(e) })
}

// Stats counts the entries of the store.
func (s *Store) Stats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.files()
	if err != nil {
		return nil, err
	}

	stats := &Stats{Dir: s.dir}
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Size += info.Size()
		if entry, err := s.read(path); err != nil || s.expired(entry) {
			stats.Expired++
		}
	}
	return stats, nil
}

// remove deletes the entries matching match. Unreadable entries are passed
// as nil.
func (s *Store) remove(match func(*Entry) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		entry, err := s.read(path)
		if err != nil {
			entry = nil
		}
		if !match(entry) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	return files, nil
}

func (s *Store) read(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) expired(e *Entry) bool {
	return s.now().Sub(e.FetchedAt) >= s.ttl
}

func (s *Store) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:])+".json")
}
