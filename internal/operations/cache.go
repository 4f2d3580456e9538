package operations

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finsheet/pkg/contracts/domain"
)

// FileFingerprint identifies one input file for cache keying. Any change
// to name, size or modification time produces a different key.
type FileFingerprint struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// CacheKey hashes the file fingerprint together with the serialized
// import options. Same file, same options, same key.
func CacheKey(fp FileFingerprint, options interface{}) (string, error) {
	encodedOptions, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("serializing options for cache key: %w", err)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|", fp.Name, fp.Size, fp.ModTime.UnixNano())
	h.Write(encodedOptions)
	return hex.EncodeToString(h.Sum(nil)), nil
}

type cacheEntry struct {
	payload  []byte
	expires  time.Time
	storedAt time.Time
}

// ResultCache is a TTL cache of serialized pipeline output. Results are
// stored as encoded bytes so a cache hit returns byte-identical output
// to the run that populated it. Expired entries are evicted lazily on
// access; when the size cap is hit the oldest entry goes first.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewResultCache creates a cache. Non-positive ttl disables expiry
// checks being meaningful, so callers should pass the configured TTL.
func NewResultCache(ttl time.Duration, maxSize int) *ResultCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &ResultCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached result for key, decoding a fresh copy so
// callers cannot mutate the cached bytes.
func (c *ResultCache) Get(key string) (*domain.ImportResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}

	var result domain.ImportResult
	if err := json.Unmarshal(entry.payload, &result); err != nil {
		delete(c.entries, key)
		return nil, false
	}
	return &result, true
}

// Put stores a result under key.
func (c *ResultCache) Put(key string, result *domain.ImportResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("serializing result for cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}
	now := c.now()
	c.entries[key] = cacheEntry{
		payload:  payload,
		expires:  now.Add(c.ttl),
		storedAt: now,
	}
	return nil
}

// Len reports the current entry count, expired entries included until
// their lazy eviction.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey, oldest = key, entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
