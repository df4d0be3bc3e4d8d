package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"swarabox/model"
	"swarabox/repository"

	"github.com/redis/go-redis/v9"
)

const (
	catalogKeyPrefix = "catalog:"
	catalogTTL       = 5 * time.Minute
)

// CatalogCache caches filtered song listings in Redis. Cached rows never
// carry the per-user liked flag; handlers overlay it from the like table, so
// like/unlike needs no invalidation. Upload and delete flush the keys.
type CatalogCache struct {
	client *redis.Client
}

// NewCatalogCache creates a catalog cache over the given Redis client.
func NewCatalogCache(client *redis.Client) *CatalogCache {
	return &CatalogCache{client: client}
}

// CatalogKey builds the cache key for a filter combination.
func CatalogKey(filter repository.SongFilter) string {
	typeKey, langKey, podKey := "any", "any", "any"
	if filter.Type != nil {
		typeKey = filter.Type.String()
	}
	if filter.Language != nil {
		langKey = string(*filter.Language)
	}
	if filter.IsPodcast != nil {
		podKey = fmt.Sprintf("%t", *filter.IsPodcast)
	}
	return fmt.Sprintf("%stype=%s:lang=%s:pod=%s", catalogKeyPrefix, typeKey, langKey, podKey)
}

// Get retrieves a cached listing. A cache miss returns (nil, nil).
func (c *CatalogCache) Get(ctx context.Context, filter repository.SongFilter) ([]*model.Song, error) {
	data, err := c.client.Get(ctx, CatalogKey(filter)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog cache: %w", err)
	}

	var songs []*model.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached catalog: %w", err)
	}
	return songs, nil
}

// Set stores a listing for its filter combination.
func (c *CatalogCache) Set(ctx context.Context, filter repository.SongFilter, songs []*model.Song) error {
	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := c.client.Set(ctx, CatalogKey(filter), data, catalogTTL).Err(); err != nil {
		return fmt.Errorf("failed to set catalog cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached listing. Called after any catalog mutation.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, catalogKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete catalog key %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan catalog keys: %w", err)
	}
	return nil
}
