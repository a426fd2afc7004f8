package digest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// chunkSize is the read buffer used when streaming a file through the hash.
const chunkSize = 0x1000

// Entry is the memoized digest of a file and the modification time it was computed at.
type Entry struct {
	Digest  string
	ModTime time.Time
}

// Observer receives cache outcomes. It is optional.
type Observer interface {
	DigestHit()
	DigestComputed()
}

// Cache maps filesystem paths to content digests. Entries live as long as the
// cache does; they are refreshed when the file's modification time moves past
// the stored one and are never evicted.
type Cache struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	observer Observer
}

// NewCache creates an empty digest cache. observer may be nil.
func NewCache(observer Observer) *Cache {
	return &Cache{
		entries:  make(map[string]Entry),
		observer: observer,
	}
}

// GetOrRefresh returns the digest of path, hashing the file only when no entry
// exists or the file was modified after the stored entry was computed.
// A missing file yields an error matching fs.ErrNotExist.
func (c *Cache) GetOrRefresh(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	if info.IsDir() {
		return Entry{}, fmt.Errorf("cannot digest directory %s", path)
	}
	mtime := info.ModTime()

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && !entry.ModTime.Before(mtime) {
		if c.observer != nil {
			c.observer.DigestHit()
		}
		return entry, nil
	}

	sum, err := SumFile(path)
	if err != nil {
		return Entry{}, err
	}
	if c.observer != nil {
		c.observer.DigestComputed()
	}
	return c.store(path, Entry{Digest: sum, ModTime: mtime}), nil
}

// store records entry unless a concurrent refresh already stored one computed
// at a later modification time, in which case that one is returned.
func (c *Cache) store(path string, entry Entry) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.entries[path]; ok && current.ModTime.After(entry.ModTime) {
		return current
	}
	c.entries[path] = entry
	return entry
}

// Len reports how many paths are memoized.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// SumFile streams the file at path through the hash.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum, err := Sum(f)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return sum, nil
}

// Sum hashes r in fixed-size chunks and returns the hex digest.
func Sum(r io.Reader) (string, error) {
	hash := md5.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		hash.Write(buf[:n])
		if err == io.EOF {
			return hex.EncodeToString(hash.Sum(nil)), nil
		}
		if err != nil {
			return "", err
		}
	}
}

// Valid reports whether s has the shape of a digest produced by Sum.
func Valid(s string) bool {
	if len(s) != md5.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
