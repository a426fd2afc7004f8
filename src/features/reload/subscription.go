package reload

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Subscription is a single-shot wait handle on one path. It is fulfilled by
// the manager's dispatcher and must always be released with Unsubscribe.
type Subscription struct {
	ID   string
	Path string

	manager *Manager

	mu       sync.Mutex
	done     chan struct{}
	fired    bool
	consumed bool
	retired  bool
}

func newSubscription(manager *Manager, path string) *Subscription {
	return &Subscription{
		ID:      uuid.NewString(),
		Path:    path,
		manager: manager,
		done:    make(chan struct{}),
	}
}

// notify fulfils the subscription. It reports false when the subscription
// was already fulfilled and not reset, or has been retired.
func (s *Subscription) notify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired || s.retired {
		return false
	}
	s.fired = true
	close(s.done)
	return true
}

// Wait blocks until the subscription is notified, the timeout elapses, ctx is
// done or the manager shuts down. It returns true only when notified. Once Wait
// has returned the subscription is consumed and further calls return false
// until Reset is called.
func (s *Subscription) Wait(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	if s.consumed || s.retired {
		s.mu.Unlock()
		return false
	}
	done := s.done
	s.mu.Unlock()

	notified := false
	if timeout <= 0 {
		select {
		case <-done:
			notified = true
		default:
		}
	} else {
		timer := s.manager.clock.Timer(timeout)
		select {
		case <-done:
			notified = true
		case <-timer.C:
		case <-ctx.Done():
		case <-s.manager.closing:
		}
		timer.Stop()
	}

	s.mu.Lock()
	s.consumed = true
	s.mu.Unlock()
	return notified
}

// Reset re-arms a consumed or fulfilled subscription so it can be waited on again.
func (s *Subscription) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retired {
		return
	}
	if s.fired {
		s.done = make(chan struct{})
		s.fired = false
	}
	s.consumed = false
}

// Unsubscribe removes the subscription from the manager. It is safe to call
// more than once and after Wait has returned.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		return
	}
	s.retired = true
	s.mu.Unlock()
	s.manager.unsubscribe(s)
}
