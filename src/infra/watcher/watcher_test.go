package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/contre95/mdlive/src/features/reload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempRoot(t *testing.T) string {
	t.Helper()
	// tmpdir may live behind a symlink (macOS), event paths are resolved
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return root
}

func nextEvent(t *testing.T, events <-chan reload.FileEvent, path string) reload.FileEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Path == path {
				return event
			}
		case <-deadline:
			t.Fatalf("no event received for %s", path)
		}
	}
}

func TestFilter(t *testing.T) {
	filter, err := NewFilter("/docs", []string{"**/*.md"}, []string{"**/.git", "**/node_modules"})
	require.NoError(t, err)

	assert.True(t, filter.Match("/docs/a.md"))
	assert.True(t, filter.Match("/docs/sub/deep/b.md"))
	assert.False(t, filter.Match("/docs/a.txt"))
	assert.False(t, filter.Match("/docs/.git/README.md"))
	assert.False(t, filter.Match("/docs/pkg/node_modules/x/README.md"))
	assert.False(t, filter.Match("/elsewhere/a.md"))

	assert.False(t, filter.Ignored("/docs"))
	assert.True(t, filter.Ignored("/docs/.git"))
	assert.True(t, filter.Ignored("/other"))

	_, err = NewFilter("/docs", []string{"[unterminated"}, nil)
	var patternErr *PatternError
	assert.ErrorAs(t, err, &patternErr)
}

func TestWatcher_ReportsRecursiveChanges(t *testing.T) {
	root := tempRoot(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	existing := filepath.Join(root, "sub", "a.md")
	require.NoError(t, os.WriteFile(existing, []byte("one"), 0644))

	events := make(chan reload.FileEvent, 64)
	w, err := NewWatcher(events, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	require.NoError(t, os.WriteFile(existing, []byte("two"), 0644))
	event := nextEvent(t, events, existing)
	assert.True(t, event.Kind.Notifies())

	created := filepath.Join(root, "b.md")
	require.NoError(t, os.WriteFile(created, []byte("new"), 0644))
	event = nextEvent(t, events, created)
	assert.True(t, event.Kind.Notifies())
}

func TestWatcher_PicksUpNewDirectories(t *testing.T) {
	root := tempRoot(t)
	events := make(chan reload.FileEvent, 64)
	w, err := NewWatcher(events, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	dir := filepath.Join(root, "later")
	require.NoError(t, os.Mkdir(dir, 0755))
	// give the watcher a moment to register the directory before writing
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(dir, "c.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	event := nextEvent(t, events, file)
	assert.Equal(t, reload.EventCreated, event.Kind)
}

func TestWatcher_IgnoresNonMatchingFiles(t *testing.T) {
	root := tempRoot(t)
	events := make(chan reload.FileEvent, 64)
	w, err := NewWatcher(events, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
	marker := filepath.Join(root, "marker.md")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			require.NotEqual(t, filepath.Join(root, "notes.txt"), event.Path)
			if event.Path == marker {
				w.Stop()
				return
			}
		case <-deadline:
			t.Fatal("marker event never arrived")
		}
	}
}

func TestWatcher_RenameOverSave(t *testing.T) {
	root := tempRoot(t)
	doc := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(doc, []byte("one"), 0644))

	events := make(chan reload.FileEvent, 64)
	w, err := NewWatcher(events, []string{"**/*.md"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	// editors save by writing a temporary file and renaming it over the original
	tmp := filepath.Join(root, ".doc.md.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("two"), 0644))
	require.NoError(t, os.Rename(tmp, doc))

	event := nextEvent(t, events, doc)
	assert.Equal(t, reload.EventCreated, event.Kind)
	assert.True(t, event.Kind.Notifies())
}

func TestWatcher_StopIsSafeWithoutStart(t *testing.T) {
	w, err := NewWatcher(make(chan reload.FileEvent), []string{"**/*.md"}, nil)
	require.NoError(t, err)
	w.Stop()
	w.Stop()
}
