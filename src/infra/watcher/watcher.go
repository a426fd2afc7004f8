package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/contre95/mdlive/src/features/reload"
	"github.com/fsnotify/fsnotify"
)

// Watcher monitors a directory tree with fsnotify and emits events for
// matching source files. fsnotify is not recursive, so every directory is
// registered individually and new directories are added as they appear.
type Watcher struct {
	watcher   *fsnotify.Watcher
	patterns  []string
	ignore    []string
	filter    *Filter
	mu        sync.Mutex
	running   bool
	stopChan  chan struct{}
	done      chan struct{}
	eventChan chan<- reload.FileEvent
}

// NewWatcher creates a new file system watcher
func NewWatcher(eventChan chan<- reload.FileEvent, patterns, ignore []string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:   watcher,
		patterns:  patterns,
		ignore:    ignore,
		eventChan: eventChan,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching root and all of its sub-directories.
func (w *Watcher) Start(ctx context.Context, root string) error {
	filter, err := NewFilter(root, w.patterns, w.ignore)
	if err != nil {
		return err
	}
	w.filter = filter
	slog.Info("Starting file watcher", "path", root, "backend", "fsnotify")

	if _, err := w.addTree(root); err != nil {
		return err
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	go w.watchLoop(ctx)

	slog.Info("File watcher started successfully")
	return nil
}

// Stop stops the file watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	slog.Info("Stopping file watcher")
	close(w.stopChan)
	<-w.done
	w.watcher.Close()
}

// addTree registers dir and its sub-directories, skipping ignored ones, and
// returns the matching files found along the way.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if !entry.IsDir() {
			if w.filter.Match(path) {
				files = append(files, path)
			}
			return nil
		}
		if w.filter.Ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			if path == dir {
				return err
			}
			slog.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	return files, err
}

// watchLoop processes file system events
func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				slog.Warn("File watcher queue overflowed, events were lost", "error", err)
				continue
			}
			slog.Error("File watcher error", "error", err)

		case <-w.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent translates a single fsnotify event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.handleNewDirectory(event.Name)
			return
		}
	}

	if !w.filter.Match(event.Name) {
		return
	}

	var kind reload.EventKind
	switch {
	case event.Has(fsnotify.Create):
		kind = reload.EventCreated
	case event.Has(fsnotify.Write):
		kind = reload.EventModified
	case event.Has(fsnotify.Rename), event.Has(fsnotify.Remove):
		// the destination of a rename arrives as its own Create event
		kind = reload.EventRemoved
	default:
		return
	}
	w.emit(reload.FileEvent{Path: event.Name, Kind: kind, Timestamp: time.Now()})
}

// handleNewDirectory watches a directory created after Start. Files written
// into it before the watch was registered are reported as created.
func (w *Watcher) handleNewDirectory(dir string) {
	if w.filter.Ignored(dir) {
		return
	}
	files, err := w.addTree(dir)
	if err != nil {
		slog.Warn("Failed to watch new directory", "path", dir, "error", err)
		return
	}
	slog.Debug("Watching new directory", "path", dir)
	for _, file := range files {
		w.emit(reload.FileEvent{Path: file, Kind: reload.EventCreated, Timestamp: time.Now()})
	}
}

// emit blocks until the dispatcher accepts the event or the watcher stops.
func (w *Watcher) emit(event reload.FileEvent) {
	select {
	case w.eventChan <- event:
		slog.Debug("Emitted file event", "path", event.Path, "kind", event.Kind)
	case <-w.stopChan:
	}
}
