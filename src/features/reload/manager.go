package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
)

const defaultBuffer = 64

// Observer receives registry and dispatch statistics. It is optional.
type Observer interface {
	SubscriptionsChanged(delta int)
	EventDispatched(kind EventKind, notified int)
}

// Options controls manager behavior.
type Options struct {
	Clock    clock.Clock
	Buffer   int
	Observer Observer
}

// Manager owns the path -> subscriptions registry. A single dispatcher
// goroutine drains the event channel fed by the watch backend and fulfils the
// subscriptions registered for each event's path.
type Manager struct {
	clock    clock.Clock
	observer Observer
	events   chan FileEvent

	mu            sync.Mutex
	subscriptions map[string]map[string]*Subscription
	backend       Backend
	running       bool

	quit     chan struct{}
	stopped  chan struct{}
	closing  chan struct{}
	stopOnce sync.Once
}

// NewManager creates a Manager. It does not watch anything until Start.
func NewManager(options Options) *Manager {
	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}
	buffer := options.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Manager{
		clock:         clk,
		observer:      options.Observer,
		events:        make(chan FileEvent, buffer),
		subscriptions: make(map[string]map[string]*Subscription),
		quit:          make(chan struct{}),
		stopped:       make(chan struct{}),
		closing:       make(chan struct{}),
	}
}

// Sink is the channel watch backends publish events to.
func (m *Manager) Sink() chan<- FileEvent {
	return m.events
}

// Start launches the dispatcher and then the backend over root. The
// dispatcher keeps running when the backend fails to start, so waits still
// end by timing out.
func (m *Manager) Start(ctx context.Context, backend Backend, root string) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("subscription manager already started")
	}
	m.running = true
	m.backend = backend
	m.mu.Unlock()

	go m.dispatch()

	if backend == nil {
		return nil
	}
	if err := backend.Start(ctx, root); err != nil {
		return fmt.Errorf("failed to start watch backend: %w", err)
	}
	slog.Info("Subscription manager started", "root", root)
	return nil
}

// Stop stops the backend, flushes pending events and releases every waiter.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		backend := m.backend
		running := m.running
		m.mu.Unlock()

		if backend != nil {
			backend.Stop()
		}
		close(m.quit)
		if running {
			<-m.stopped
		}
		close(m.closing)
		slog.Info("Subscription manager stopped")
	})
}

// Subscribe registers a wait on path. The registration is live when Subscribe
// returns.
func (m *Manager) Subscribe(path string) *Subscription {
	path = filepath.Clean(path)
	subscription := newSubscription(m, path)

	m.mu.Lock()
	set, ok := m.subscriptions[path]
	if !ok {
		set = make(map[string]*Subscription)
		m.subscriptions[path] = set
	}
	set[subscription.ID] = subscription
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.SubscriptionsChanged(1)
	}
	slog.Debug("Subscribed", "path", path, "id", subscription.ID)
	return subscription
}

func (m *Manager) unsubscribe(subscription *Subscription) {
	m.mu.Lock()
	set := m.subscriptions[subscription.Path]
	_, ok := set[subscription.ID]
	if ok {
		delete(set, subscription.ID)
		if len(set) == 0 {
			delete(m.subscriptions, subscription.Path)
		}
	}
	m.mu.Unlock()

	if ok && m.observer != nil {
		m.observer.SubscriptionsChanged(-1)
	}
}

// Count reports the live subscriptions for path.
func (m *Manager) Count(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions[filepath.Clean(path)])
}

func (m *Manager) dispatch() {
	defer close(m.stopped)
	for {
		select {
		case event := <-m.events:
			m.handle(event)
		case <-m.quit:
			m.flush()
			return
		}
	}
}

func (m *Manager) flush() {
	for {
		select {
		case event := <-m.events:
			m.handle(event)
		default:
			return
		}
	}
}

func (m *Manager) handle(event FileEvent) {
	if !event.Kind.Notifies() {
		slog.Debug("Ignoring file event", "path", event.Path, "kind", event.Kind)
		if m.observer != nil {
			m.observer.EventDispatched(event.Kind, 0)
		}
		return
	}

	path := filepath.Clean(event.Path)
	notified := 0
	m.mu.Lock()
	for _, subscription := range m.subscriptions[path] {
		if subscription.notify() {
			notified++
		}
	}
	m.mu.Unlock()

	if event.Kind == EventMoved {
		slog.Debug("Moved file", "from", event.OldPath, "to", path, "notified", notified)
	} else {
		slog.Debug("File event", "path", path, "kind", event.Kind, "notified", notified)
	}
	if m.observer != nil {
		m.observer.EventDispatched(event.Kind, notified)
	}
}
