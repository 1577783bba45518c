package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Response is the cached payload for one generation.
type Response struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

type entry struct {
	response     Response
	createdAt    time.Time
	expiresAt    time.Time
	hits         int64
	lastAccessed time.Time
}

type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// ResponseCache is a content-addressed store mapping (backend, model,
// normalized prompt) to a prior response. Entries are immutable once written
// except for hit-count and last-accessed bookkeeping.
type ResponseCache struct {
	mutex      sync.Mutex
	entries    map[string]*entry
	defaultTTL time.Duration
	hits       int64
	misses     int64
	group      singleflight.Group
}

func New(defaultTTL time.Duration) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}

	return &ResponseCache{
		entries:    make(map[string]*entry),
		defaultTTL: defaultTTL,
	}
}

// Key derives the content hash. Identical prompts to the same backend and
// model always collide; different backends or models never do.
func Key(backend, model, prompt string) string {
	normalized := strings.ToLower(strings.TrimSpace(prompt))

	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(normalized))

	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached response, or ok=false on a miss. An entry past its
// expiry is evicted and treated as absent, never served.
func (c *ResponseCache) Get(backend, model, prompt string) (Response, bool) {
	key := Key(backend, model, prompt)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, exists := c.entries[key]
	if !exists {
		c.misses++
		return Response{}, false
	}

	now := time.Now()
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return Response{}, false
	}

	e.hits++
	e.lastAccessed = now
	c.hits++

	return e.response, true
}

// Set stores the response under the derived key, overwriting any existing
// entry and re-arming the expiry. A non-positive ttl uses the default.
func (c *ResponseCache) Set(backend, model, prompt string, response Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	key := Key(backend, model, prompt)
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = &entry{
		response:  response,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
}

// GetOrCompute returns the cached response or runs compute exactly once for
// concurrent callers of the same key, caching the result on success.
func (c *ResponseCache) GetOrCompute(
	ctx context.Context,
	backend, model, prompt string,
	ttl time.Duration,
	compute func(ctx context.Context) (Response, error),
) (Response, bool, error) {
	if resp, ok := c.Get(backend, model, prompt); ok {
		return resp, true, nil
	}

	result, err, _ := c.group.Do(Key(backend, model, prompt), func() (any, error) {
		// Re-check: a concurrent flight may have filled the entry.
		if resp, ok := c.Get(backend, model, prompt); ok {
			return resp, nil
		}

		resp, err := compute(ctx)
		if err != nil {
			return Response{}, err
		}

		c.Set(backend, model, prompt, resp, ttl)
		return resp, nil
	})
	if err != nil {
		return Response{}, false, err
	}

	return result.(Response), false, nil
}

// Cleanup proactively deletes all expired entries and reports how many.
func (c *ResponseCache) Cleanup() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	removed := 0

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}

	return removed
}

// ClearAll drops every entry.
func (c *ResponseCache) ClearAll() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *ResponseCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}

// Start runs the periodic expired-entry sweep until ctx is cancelled.
func (c *ResponseCache) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}
