package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	s, err := NewWithDir(filepath.Join(t.TempDir(), "responses"), ttl)
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestStore_SaveAndLoad(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)

	want := []record{{ID: "p1", Name: "/wikipedia"}}
	require.NoError(t, s.Save("https://cms.example.org/v1/warehouse-paths", want))

	var got []record
	require.NoError(t, s.Load("https://cms.example.org/v1/warehouse-paths", &got))
	assert.Equal(t, want, got)

	err := s.Load("https://other.example.org/v1/warehouse-paths", &got)
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestStore_Expiry(t *testing.T) {
	s, now := newTestStore(t, time.Minute)
	require.NoError(t, s.Save("key", record{ID: "a"}))

	*now = now.Add(59 * time.Second)
	var got record
	require.NoError(t, s.Load("key", &got))

	*now = now.Add(time.Second)
	assert.ErrorIs(t, s.Load("key", &got), ErrMiss)
}

func TestStore_CorruptEntry(t *testing.T) {
	s, _ := newTestStore(t, time.Minute)
	require.NoError(t, os.WriteFile(s.path("key"), []byte("{not json"), 0600))

	var got record
	assert.ErrorIs(t, s.Load("key", &got), ErrMiss)

	removed, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStore_InvalidateClearPrune(t *testing.T) {
	s, now := newTestStore(t, time.Minute)
	require.NoError(t, s.Save("old", record{ID: "old"}))
	*now = now.Add(2 * time.Minute)
	require.NoError(t, s.Save("new", record{ID: "new"}))
	require.NoError(t, s.Save("other", record{ID: "other"}))

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 1, stats.Expired)
	assert.Positive(t, stats.Size)
	assert.Equal(t, s.Dir(), stats.Dir)

	pruned, err := s.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	require.NoError(t, s.Invalidate("other"))
	require.NoError(t, s.Invalidate("missing"))

	cleared, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 1, cleared)

	stats, err = s.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}

func TestNewWithDir_DefaultTTL(t *testing.T) {
	s, err := NewWithDir(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, s.TTL())
}
