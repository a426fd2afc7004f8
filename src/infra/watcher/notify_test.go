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

func TestNotifyWatcher_ReportsWrites(t *testing.T) {
	root := tempRoot(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	file := filepath.Join(root, "sub", "a.md")
	require.NoError(t, os.WriteFile(file, []byte("one"), 0644))

	events := make(chan reload.FileEvent, 64)
	w := NewNotifyWatcher(events, []string{"**/*.md"}, []string{"**/.git"})
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	require.NoError(t, os.WriteFile(file, []byte("two"), 0644))
	event := nextEvent(t, events, file)
	assert.True(t, event.Kind.Notifies())
}

func TestNotifyWatcher_FiltersIgnoredDirectories(t *testing.T) {
	root := tempRoot(t)
	ignored := filepath.Join(root, "node_modules", "x.md")
	require.NoError(t, os.MkdirAll(filepath.Dir(ignored), 0755))

	events := make(chan reload.FileEvent, 64)
	w := NewNotifyWatcher(events, []string{"**/*.md"}, []string{"**/node_modules"})
	require.NoError(t, w.Start(context.Background(), root))
	defer w.Stop()

	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0644))
	marker := filepath.Join(root, "marker.md")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-events:
			require.NotEqual(t, ignored, event.Path)
			if event.Path == marker {
				return
			}
		case <-deadline:
			t.Fatal("marker event never arrived")
		}
	}
}

func TestNotifyWatcher_RejectsBadPatterns(t *testing.T) {
	w := NewNotifyWatcher(make(chan reload.FileEvent), []string{"[bad"}, nil)
	assert.Error(t, w.Start(context.Background(), tempRoot(t)))
	w.Stop()
}
