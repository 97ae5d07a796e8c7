package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ResponseCache memoizes raw provider output on disk, one JSON file per key.
// It is a pure recomputation skip: a hit must reproduce the exact text the
// provider returned, so downstream behavior is identical either way.
type ResponseCache struct {
	dir string
	mu  sync.Mutex
}

type cacheEntry struct {
	Response string `json:"response"`
}

// NewResponseCache returns a cache rooted at dir. The directory is created
// lazily on the first write.
func NewResponseCache(dir string) *ResponseCache {
	return &ResponseCache{dir: dir}
}

// Key derives a deterministic cache key from everything that influences the
// provider's output.
func (c *ResponseCache) Key(providerName, model string, temperature float64, maxTokens int, prompt string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%g\x00%d\x00%s", providerName, model, temperature, maxTokens, prompt)
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response for key, or ("", false) on a miss. A
// corrupt cache file counts as a miss.
func (c *ResponseCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	return entry.Response, true
}

// Set stores a response under key. Write failures are returned so callers
// can log them; a failed write never affects pipeline output.
func (c *ResponseCache) Set(key, response string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}
	data, err := json.Marshal(cacheEntry{Response: response})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		return fmt.Errorf("cache: write entry: %w", err)
	}
	return nil
}

func (c *ResponseCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}
