// Package shutdown releases run resources (camera, detector, database) in
// reverse order of acquisition.
package shutdown

import (
	"sync"
	"time"

	"applimon/internal/logger"
)

// DefaultTimeout bounds how long one component may take to release.
const DefaultTimeout = 10 * time.Second

type component struct {
	name  string
	close func()
}

type Manager struct {
	components []component
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	done       bool
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		logger:  log,
		timeout: DefaultTimeout,
	}
}

// Register adds a release func. Components are released last-in first-out.
func (m *Manager) Register(name string, close func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.components = append(m.components, component{name: name, close: close})
}

// Shutdown releases every registered component once. A component that
// does not return within the timeout is logged and left behind.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return
	}
	m.done = true

	for i := len(m.components) - 1; i >= 0; i-- {
		c := m.components[i]

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.close()
		}()

		select {
		case <-done:
			m.logger.Debug("ShutdownManager", "component released", map[string]interface{}{
				"component": c.name,
			})
		case <-time.After(m.timeout):
			m.logger.Warning("ShutdownManager", "component shutdown timeout", map[string]interface{}{
				"component": c.name,
			})
		}
	}
}
