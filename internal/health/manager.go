// Package health checks the external dependencies a strategy call relies on
package health

import (
	"context"
	"sync"

	"leverage_builder/internal/core"
)

// Check tests one component
type Check func(ctx context.Context) error

// Status is the outcome of one check
type Status struct {
	Component string `json:"component"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
}

// Manager aggregates health checks from different components
type Manager struct {
	logger core.ILogger
	mu     sync.RWMutex
	order  []string
	checks map[string]Check
}

// NewManager creates a new health manager
func NewManager(logger core.ILogger) *Manager {
	m := &Manager{checks: make(map[string]Check)}
	if logger != nil {
		m.logger = logger.WithField("component", "health_manager")
	}
	return m
}

// Register adds or replaces the check of a component
func (m *Manager) Register(component string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.checks[component]; !ok {
		m.order = append(m.order, component)
	}
	m.checks[component] = check
}

// Status runs every check in registration order
func (m *Manager) Status(ctx context.Context) []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.order))
	for _, component := range m.order {
		s := Status{Component: component, Healthy: true}
		if err := m.checks[component](ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			if m.logger != nil {
				m.logger.Warn("Health check failed", "check", component, "error", err)
			}
		}
		out = append(out, s)
	}
	return out
}

// IsHealthy reports whether every check passes
func IsHealthy(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
