package storage

import (
	"context"
	"sync"
	"time"

	"github.com/openzim/cmsctl/pkg/auth/types"
)

// MemoryStorage implements in-memory token storage.
// This storage is ephemeral and tokens are lost when the process exits.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewMemoryStorage creates a new in-memory storage.
func NewMemoryStorage(lifetime time.Duration) *MemoryStorage {
	return &MemoryStorage{lifetime: lifetime, now: time.Now}
}

// SaveToken saves a token to memory.
func (m *MemoryStorage) SaveToken(ctx context.Context, token *types.StoredToken) error {
	data, err := encodeEntry(token, m.lifetime, m.now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// LoadToken loads a token from memory.
func (m *MemoryStorage) LoadToken(ctx context.Context) (*types.StoredToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, ErrNotFound
	}
	return decodeEntry(m.data, m.now())
}

// DeleteToken deletes the token from memory.
func (m *MemoryStorage) DeleteToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = nil
	return nil
}

// SetRaw replaces the stored entry with arbitrary bytes.
func (m *MemoryStorage) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// Location reports that entries only live in this process.
func (m *MemoryStorage) Location() string {
	return "memory"
}
