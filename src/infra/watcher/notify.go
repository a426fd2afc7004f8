package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/contre95/mdlive/src/features/reload"
	"github.com/rjeczalik/notify"
)

// NotifyWatcher watches a tree with rjeczalik/notify, which handles recursion
// natively through the "/..." path suffix. A recursive watch cannot exclude
// subtrees, so ignore patterns only drop events; ignored directories are
// still watched.
type NotifyWatcher struct {
	patterns  []string
	ignore    []string
	filter    *Filter
	raw       chan notify.EventInfo
	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	done      chan struct{}
	eventChan chan<- reload.FileEvent
}

// NewNotifyWatcher creates a watcher publishing to eventChan.
func NewNotifyWatcher(eventChan chan<- reload.FileEvent, patterns, ignore []string) *NotifyWatcher {
	return &NotifyWatcher{
		patterns:  patterns,
		ignore:    ignore,
		raw:       make(chan notify.EventInfo, 64),
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		eventChan: eventChan,
	}
}

// Start begins watching root recursively.
func (w *NotifyWatcher) Start(ctx context.Context, root string) error {
	filter, err := NewFilter(root, w.patterns, w.ignore)
	if err != nil {
		return err
	}
	w.filter = filter
	slog.Info("Starting file watcher", "path", root, "backend", "notify")

	recursivePath := filepath.Join(root, "...")
	if err := notify.Watch(recursivePath, w.raw, notify.Create, notify.Write, notify.Rename, notify.Remove); err != nil {
		return err
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *NotifyWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	notify.Stop(w.raw)
	close(w.stopChan)
	<-w.done
	slog.Info("File watcher stopped", "backend", "notify")
}

func (w *NotifyWatcher) watchLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case info := <-w.raw:
			w.handleEvent(info)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *NotifyWatcher) handleEvent(info notify.EventInfo) {
	path := info.Path()
	if !w.filter.Match(path) {
		return
	}

	var kind reload.EventKind
	switch info.Event() {
	case notify.Create:
		kind = reload.EventCreated
	case notify.Write:
		kind = reload.EventModified
	case notify.Rename:
		// both ends of a rename are reported; the one that exists is the destination
		if _, err := os.Stat(path); err == nil {
			kind = reload.EventMoved
		} else {
			kind = reload.EventRemoved
		}
	case notify.Remove:
		kind = reload.EventRemoved
	default:
		return
	}

	select {
	case w.eventChan <- reload.FileEvent{Path: path, Kind: kind, Timestamp: time.Now()}:
	case <-w.stopChan:
	}
}
