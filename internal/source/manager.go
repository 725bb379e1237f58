package source

import "sync"

// Manager tracks the background controllers keyed by page id.
type Manager struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{controllers: make(map[string]*Controller)}
}

// Add registers a controller for a page, replacing and closing any previous
// one.
func (m *Manager) Add(pageID string, c *Controller) {
	m.mu.Lock()
	prev := m.controllers[pageID]
	m.controllers[pageID] = c
	m.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Get returns the controller for a page, if one is registered.
func (m *Manager) Get(pageID string) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.controllers[pageID]
	return c, ok
}

// CloseAll cancels every controller's in-flight load.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.controllers {
		c.Close()
	}
}
