// Package state persists small pieces of CLI state between runs.
//
// The state file replaces what the browser console keeps in cookies and local
// storage: the page size chosen for each table, the provider of the last
// login, and recently used record IDs offered for shell completion. It lives
// in the XDG state directory and is written as YAML:
//
//	mgr, _ := state.NewManager("cmsctl")
//	limit := mgr.TableLimit("titles-table-limit")
//	_ = mgr.SaveTableLimit("titles-table-limit", 50)
//
// State location:
//
//   - Linux: ~/.local/state/cmsctl/state.yaml
//   - macOS: ~/Library/Application Support/cmsctl/state.yaml
//   - Windows: %LOCALAPPDATA%\cmsctl\state.yaml
//
// The Manager is safe for concurrent use and writes the file atomically.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/openzim/cmsctl/pkg/auth/types"
	"gopkg.in/yaml.v3"
)

// Manager handles loading, saving, and updating CLI state.
type Manager struct {
	statePath string
	state     *State
	mu        sync.RWMutex
}

// State is the persisted CLI state.
type State struct {
	// ActiveProvider is the provider of the last login.
	ActiveProvider types.ProviderType `yaml:"active_provider,omitempty" json:"active_provider,omitempty"`

	// TableLimits maps a table key to its page size.
	TableLimits map[string]int `yaml:"table_limits,omitempty" json:"table_limits,omitempty"`

	// Recent holds recently used IDs per resource.
	Recent *Recent `yaml:"recent,omitempty" json:"recent,omitempty"`

	LastModified time.Time `yaml:"last_modified,omitempty" json:"last_modified,omitempty"`
}

// NewManager creates a state manager for the XDG state file of cliName.
func NewManager(cliName string) (*Manager, error) {
	return NewManagerWithPath(DefaultPath(cliName))
}

// NewManagerWithPath creates a state manager backed by statePath. A missing
// file yields the default state.
func NewManagerWithPath(statePath string) (*Manager, error) {
	m := &Manager{
		statePath: statePath,
		state:     newDefaultState(),
	}

	if err := m.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return m, nil
}

// NewDefaultManager creates a state manager backed by statePath holding the
// default state, without reading the file. The next save replaces it.
func NewDefaultManager(statePath string) *Manager {
	return &Manager{
		statePath: statePath,
		state:     newDefaultState(),
	}
}

// DefaultPath returns the state file location of cliName.
func DefaultPath(cliName string) string {
	return filepath.Join(xdg.StateHome, cliName, "state.yaml")
}

func newDefaultState() *State {
	return &State{
		TableLimits: make(map[string]int),
		Recent:      NewRecent(),
	}
}

// Load loads state from disk.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		return err
	}

	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	if state.TableLimits == nil {
		state.TableLimits = make(map[string]int)
	}
	if state.Recent == nil {
		state.Recent = NewRecent()
	}
	state.Recent.normalize()
	if !state.ActiveProvider.Valid() {
		state.ActiveProvider = ""
	}

	m.state = &state
	return nil
}

// Save saves state to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save()
}

func (m *Manager) save() error {
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	m.state.LastModified = time.Now()

	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmpPath := m.statePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmpPath, m.statePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save state file: %w", err)
	}
	return nil
}

// TableLimit returns the saved page size of a table, zero when unset.
func (m *Manager) TableLimit(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.TableLimits[table]
}

// SaveTableLimit records the page size of a table and saves the state.
func (m *Manager) SaveTableLimit(table string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("page size must be positive, got %d", limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.TableLimits[table] = limit
	return m.save()
}

// ActiveProvider returns the provider of the last login, empty when unknown.
func (m *Manager) ActiveProvider() types.ProviderType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.ActiveProvider
}

// SaveActiveProvider records the provider of the last login and saves the state.
func (m *Manager) SaveActiveProvider(provider types.ProviderType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ActiveProvider = provider
	return m.save()
}

// AddRecentValue records a recently used value. Call Save to persist it.
func (m *Manager) AddRecentValue(listName, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Recent.Add(listName, value, time.Now())
}

// RecentValues returns the recent values of a list, most recent first.
func (m *Manager) RecentValues(listName string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Recent.Get(listName)
}

// Path returns the path of the state file.
func (m *Manager) Path() string {
	return m.statePath
}

// Reset restores the default state in memory.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newDefaultState()
}
