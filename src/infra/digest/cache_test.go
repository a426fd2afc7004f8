package digest

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	hits     atomic.Int64
	computed atomic.Int64
}

func (o *countingObserver) DigestHit()      { o.hits.Add(1) }
func (o *countingObserver) DigestComputed() { o.computed.Add(1) }

func writeFile(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestGetOrRefresh_IsIdempotentForUnchangedFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, path, "# Title\n", time.Now().Add(-time.Hour))

	observer := &countingObserver{}
	cache := NewCache(observer)

	first, err := cache.GetOrRefresh(path)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := cache.GetOrRefresh(path)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, int64(1), observer.computed.Load(), "unchanged file must be hashed once")
	assert.Equal(t, int64(10), observer.hits.Load())
}

func TestGetOrRefresh_DetectsChangesOnceMtimeAdvances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, "hello", base)

	cache := NewCache(nil)
	before, err := cache.GetOrRefresh(path)
	require.NoError(t, err)

	writeFile(t, path, "hello!", base.Add(time.Second))
	after, err := cache.GetOrRefresh(path)
	require.NoError(t, err)

	assert.NotEqual(t, before.Digest, after.Digest)
	assert.True(t, after.ModTime.After(before.ModTime))
}

func TestGetOrRefresh_TrustsEntryWhileMtimeUnchanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.md")
	base := time.Now().Add(-time.Hour)
	writeFile(t, path, "one", base)

	cache := NewCache(nil)
	before, err := cache.GetOrRefresh(path)
	require.NoError(t, err)

	// content changes but the mtime is forced back: the stored entry still wins
	writeFile(t, path, "two", base)
	after, err := cache.GetOrRefresh(path)
	require.NoError(t, err)
	assert.Equal(t, before.Digest, after.Digest)
}

func TestGetOrRefresh_MissingFile(t *testing.T) {
	cache := NewCache(nil)
	_, err := cache.GetOrRefresh(filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestGetOrRefresh_RejectsDirectories(t *testing.T) {
	cache := NewCache(nil)
	_, err := cache.GetOrRefresh(t.TempDir())
	assert.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}

func TestGetOrRefresh_ConcurrentPaths(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Now().Add(-time.Minute)
	paths := make([]string, 8)
	for i := range paths {
		paths[i] = filepath.Join(dir, strings.Repeat("x", i+1)+".md")
		writeFile(t, paths[i], strings.Repeat("y", i+1), mtime)
	}

	cache := NewCache(nil)
	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for _, path := range paths {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				_, err := cache.GetOrRefresh(path)
				assert.NoError(t, err)
			}(path)
		}
	}
	wg.Wait()

	assert.Equal(t, len(paths), cache.Len())
	for _, path := range paths {
		entry, err := cache.GetOrRefresh(path)
		require.NoError(t, err)
		expected, err := SumFile(path)
		require.NoError(t, err)
		assert.Equal(t, expected, entry.Digest)
	}
}

func TestSum_KnownVector(t *testing.T) {
	sum, err := Sum(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", sum)
	assert.True(t, Valid(sum))
	assert.False(t, Valid("not-a-digest"))
	assert.False(t, Valid(strings.Repeat("z", 32)))
}
