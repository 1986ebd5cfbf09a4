package theme

import "sync"

// DefaultPreferenceKey is the storage key of the persisted mode.
const DefaultPreferenceKey = "theme.mode"

// Preferences is the persistence boundary for the theme mode. The database
// store satisfies it.
type Preferences interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// MemoryPreferences is an in-process Preferences.
type MemoryPreferences struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryPreferences returns an empty MemoryPreferences.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{values: make(map[string]string)}
}

func (m *MemoryPreferences) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPreferences) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
