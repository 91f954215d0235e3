package stream

import (
	"fmt"
	"sync"

	"github.com/sakura-lang/sakura/internal/logging"
)

// Manager fans an Event out to every registered Observer concurrently,
// isolating each observer's panics and errors from the caller and from
// each other.
type Manager struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *logging.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used to report observer failures.
func WithLogger(l *logging.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds an empty Manager.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an observer, rejecting a duplicate name.
func (m *Manager) Register(obs Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.observers {
		if existing.Name() == obs.Name() {
			return fmt.Errorf("stream: observer %q already registered", obs.Name())
		}
	}
	m.observers = append(m.observers, obs)
	return nil
}

// Unregister removes an observer by name.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, obs := range m.observers {
		if obs.Name() == name {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("stream: observer %q not found", name)
}

// Count returns the number of registered observers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.observers)
}

// Notify delivers event to every registered observer on its own
// goroutine. It never blocks the caller and never propagates an
// observer's error or panic.
func (m *Manager) Notify(event Event) {
	m.mu.RLock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.RUnlock()

	for _, obs := range observers {
		go m.notifyOne(obs, event)
	}
}

func (m *Manager) notifyOne(obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("observer panic recovered",
				"observer", obs.Name(), "event_type", string(event.Type), "panic", r)
		}
	}()

	if filter := obs.Filter(); filter != nil && !filter.ShouldNotify(event) {
		return
	}
	if err := obs.OnEvent(event); err != nil && m.logger != nil {
		m.logger.Error("observer notification failed",
			"observer", obs.Name(), "event_type", string(event.Type), "error", err)
	}
}
