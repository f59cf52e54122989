// Package querycache caches query-text embeddings in process memory. Query
// vectors are ephemeral and never persisted, so a small LRU in front of the
// provider is enough to make repeated queries free.
package querycache

import (
	"container/list"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 512

// CachedEmbedder is an LRU caching decorator over a domain.Embedder, keyed by
// the hash of whitespace-normalized text.
//
// Concurrent misses for the same key may both call the inner embedder; the
// later store wins. Both vectors derive from the same text, so this is safe.
type CachedEmbedder struct {
	inner      domain.Embedder
	capacity   int
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	mu      sync.Mutex
	order   *list.List // front = most recently used
	entries map[string]*list.Element
}

type entry struct {
	key    string
	vector []float32
}

// New creates a caching decorator with the given capacity.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.Embedder,
	capacity int,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CachedEmbedder{
		inner:      inner,
		capacity:   capacity,
		cacheTotal: cacheTotal,
		logger:     logger,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if vec, ok := c.get(key); ok {
		c.incCache("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}

	c.put(key, result.Embedding)
	return result, nil
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachedEmbedder) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).vector, true
}

func (c *CachedEmbedder) put(key string, vec []float32) {
	if len(vec) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		// Concurrent miss already stored it; last write wins.
		el.Value.(*entry).vector = vec
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, vector: vec})

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
		if c.logger != nil {
			c.logger.Debug("Evicted query embedding", zap.Int("size", len(c.entries)))
		}
	}
}

func cacheKey(text string) string {
	return domain.HashText(normalize(text))
}

// normalize collapses whitespace so trivially different spellings of the same
// query share one cache slot.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
