package speech

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/filosofo/internal/logger"
)

// AudioCache keeps synthesized audio in memory, and optionally on disk,
// keyed by sha256(voice + ":" + text). Memory holds at most maxEntries
// clips; the oldest is evicted first. The disk layer is unbounded and is
// read even when writing to it is disabled.
type AudioCache struct {
	voice      string
	dir        string
	diskWrite  bool
	maxEntries int
	log        *logger.Logger

	mu      sync.Mutex
	entries map[string][]byte
	order   []string
	hits    int64
	misses  int64
}

// NewAudioCache creates a cache for one voice. An empty dir disables the
// disk layer.
func NewAudioCache(voice, dir string, diskWrite bool, maxEntries int, log *logger.Logger) *AudioCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	c := &AudioCache{
		voice:      voice,
		dir:        dir,
		diskWrite:  diskWrite,
		maxEntries: maxEntries,
		log:        log.Named("cache"),
		entries:    make(map[string][]byte),
	}
	if dir != "" && diskWrite {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			c.log.Error("create cache dir %s: %v", dir, err)
			c.diskWrite = false
		}
	}
	return c
}

// Get returns cached audio for text.
func (c *AudioCache) Get(text string) ([]byte, bool) {
	key := c.key(text)

	c.mu.Lock()
	if data, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return data, true
	}
	c.mu.Unlock()

	if c.dir != "" {
		if data, err := os.ReadFile(c.path(key)); err == nil {
			c.mu.Lock()
			c.hits++
			c.storeLocked(key, data)
			c.mu.Unlock()
			c.log.Debug("disk hit: %s", truncate(text, 40))
			return data, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores audio for text.
func (c *AudioCache) Put(text string, audio []byte) {
	key := c.key(text)

	c.mu.Lock()
	c.storeLocked(key, audio)
	c.mu.Unlock()

	if c.dir != "" && c.diskWrite {
		if err := os.WriteFile(c.path(key), audio, 0o644); err != nil {
			c.log.Error("disk write %s: %v", key[:12], err)
		}
	}
}

// Len returns the number of clips held in memory.
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *AudioCache) storeLocked(key string, audio []byte) {
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = audio
	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

func (c *AudioCache) key(text string) string {
	h := sha256.Sum256([]byte(c.voice + ":" + text))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) path(key string) string {
	return filepath.Join(c.dir, key+".wav")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
