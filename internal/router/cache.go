package router

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

const (
	// DefaultCacheTTL is how long a routed response may be reused
	DefaultCacheTTL = 5 * time.Minute
	// DefaultCacheMaxEntries caps the number of cached responses
	DefaultCacheMaxEntries = 1000
)

// CachedResponse is a stored response with the time it was stored
type CachedResponse struct {
	Response Response  `json:"response"`
	StoredAt time.Time `json:"stored_at"`
}

// ResponseCache stores routed responses by cache key. Implementations evict
// oldest-first once their capacity is exceeded; freshness is judged by the
// router from StoredAt.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, entry *CachedResponse) error
	Delete(ctx context.Context, key string) error
	Len(ctx context.Context) (int, error)
}

// CacheKey hashes the prompt with the context fields that change a response:
// mood, energy, location, available minutes and expertise
func CacheKey(prompt string, uc *models.UserContext) string {
	parts := []string{prompt, "", "", "", "", ""}
	if uc != nil {
		parts[1] = string(uc.EmotionalState.Mood)
		parts[2] = string(uc.EmotionalState.Energy)
		parts[3] = uc.Environment.Location
		parts[4] = strconv.Itoa(uc.Environment.AvailableMinutes)
		parts[5] = string(uc.Preferences.ExpertiseLevel)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

// MemoryCache is an insertion-ordered in-process ResponseCache
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*CachedResponse
	order      []string
	maxEntries int
}

// NewMemoryCache creates a cache holding at most maxEntries responses
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]*CachedResponse),
		maxEntries: maxEntries,
	}
}

// Get implements ResponseCache
func (c *MemoryCache) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	cp := *entry
	return &cp, true, nil
}

// Set implements ResponseCache. Re-storing a key moves it to the newest position.
func (c *MemoryCache) Set(_ context.Context, key string, entry *CachedResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.removeFromOrder(key)
	}
	cp := *entry
	c.entries[key] = &cp
	c.order = append(c.order, key)

	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return nil
}

// Delete implements ResponseCache
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		delete(c.entries, key)
		c.removeFromOrder(key)
	}
	return nil
}

// Len implements ResponseCache
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), nil
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
