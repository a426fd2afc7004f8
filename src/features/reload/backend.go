package reload

import (
	"context"
	"time"
)

// Backend defines the interface for file system watchers feeding the manager.
// Implementations push events into the channel returned by Manager.Sink and
// must not send after Stop returns.
type Backend interface {
	Start(ctx context.Context, root string) error
	Stop()
}

// EventKind represents the type of file system event
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventMoved    EventKind = "moved"
	EventClosed   EventKind = "closed"
	EventRemoved  EventKind = "removed"
)

// Notifies reports whether events of this kind resolve subscriptions.
func (k EventKind) Notifies() bool {
	switch k {
	case EventCreated, EventModified, EventMoved:
		return true
	}
	return false
}

// FileEvent represents a file system event. For moves, Path is the destination.
type FileEvent struct {
	Path      string
	OldPath   string
	Kind      EventKind
	Timestamp time.Time
}
