package embedding

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	QueryCacheTTL      = 10 * time.Minute
	QueryCacheCapacity = 1024
)

// CachedEmbedder remembers query embeddings. Document and similarity tasks
// pass straight through.
type CachedEmbedder struct {
	embedder Embedder
	model    string
	cache    *ttlcache.Cache[uint64, []float32]
	sfGroup  singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCachedEmbedder(embedder Embedder, model string, ttl time.Duration) *CachedEmbedder {
	if ttl <= 0 {
		ttl = QueryCacheTTL
	}
	return &CachedEmbedder{
		embedder: embedder,
		model:    model,
		cache: ttlcache.New(
			ttlcache.WithTTL[uint64, []float32](ttl),
			ttlcache.WithCapacity[uint64, []float32](QueryCacheCapacity),
		),
	}
}

func (c *CachedEmbedder) Dimension() int { return c.embedder.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if task != TaskQuery {
		return c.embedder.Embed(ctx, texts, task)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		key := c.cacheKey(task, text)
		if item := c.cache.Get(key); item != nil {
			c.hits.Add(1)
			out[i] = item.Value()
			continue
		}

		v, err, shared := c.sfGroup.Do(strconv.FormatUint(key, 16), func() (any, error) {
			c.misses.Add(1)
			vecs, err := c.embedder.Embed(ctx, []string{text}, task)
			if err != nil {
				return nil, err
			}
			if err := checkVectors(vecs, 1, c.embedder.Dimension()); err != nil {
				return nil, err
			}
			c.cache.Set(key, vecs[0], ttlcache.DefaultTTL)
			return vecs[0], nil
		})
		if err != nil {
			return nil, err
		}
		if shared {
			log.Debug().Str("model", c.model).Msg("shared in-flight query embedding")
		}
		out[i] = v.([]float32)
	}
	return out, nil
}

// Stats returns cache hits and misses.
func (c *CachedEmbedder) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CachedEmbedder) cacheKey(task TaskType, text string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(c.model)
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(string(task))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(text)
	return h.Sum64()
}
