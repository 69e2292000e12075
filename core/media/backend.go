package media

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// BackendConfig carries the settings a platform backend may need.
type BackendConfig struct {
	ThumbnailMaxBytes int
	IconSize          int
	FetchTimeout      time.Duration
}

// BackendFactory opens a platform backend.
type BackendFactory func(cfg BackendConfig) (Platform, error)

// BackendManager maps backend names to factories.
// Backends register themselves from their package init, database/sql style.
type BackendManager struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

// NewBackendManager creates an empty backend manager.
func NewBackendManager() *BackendManager {
	return &BackendManager{factories: make(map[string]BackendFactory)}
}

// Backends is the process-wide backend manager.
var Backends = NewBackendManager()

// Register adds a backend under name, replacing any previous one.
func (m *BackendManager) Register(name string, factory BackendFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = factory
}

// Open creates the backend registered under name.
func (m *BackendManager) Open(name string, cfg BackendConfig) (Platform, error) {
	m.mu.RLock()
	factory, ok := m.factories[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown media backend %q (available: %v)", name, m.Names())
	}
	return factory(cfg)
}

// Names lists registered backends.
func (m *BackendManager) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.factories))
	for name := range m.factories {
		names = append(names, name)
	}
	m.mu.RUnlock()
	sort.Strings(names)
	return names
}
