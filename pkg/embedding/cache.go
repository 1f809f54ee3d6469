package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"finrag-go/pkg/log"
)

// CachedClient wraps a Client with a Redis cache keyed on model and text.
// Cache failures fall through to the inner client; they never fail a call.
type CachedClient struct {
	inner Client
	rdb   *redis.Client
	model string
	ttl   time.Duration
}

// NewCachedClient decorates inner with a Redis cache. ttl <= 0 disables
// expiry.
func NewCachedClient(inner Client, rdb *redis.Client, modelName string, ttl time.Duration) *CachedClient {
	return &CachedClient{
		inner: inner,
		rdb:   rdb,
		model: modelName,
		ttl:   ttl,
	}
}

// CreateEmbedding returns the cached vector when present, otherwise calls
// the inner client and stores the result.
func (c *CachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var vector []float32
		if err := json.Unmarshal(data, &vector); err == nil && len(vector) > 0 {
			return vector, nil
		}
		// Unreadable cache entry; drop it and recompute.
		_ = c.rdb.Del(ctx, key).Err()
	}

	vector, err := c.inner.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vector); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Warnf("[EmbeddingCache] failed to store vector in cache: %v", err)
		}
	}
	return vector, nil
}

func (c *CachedClient) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}
