package orclient

import (
	"context"
	"fmt"
	"time"

	"github.com/elee1766/dextra/src/aisdk"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultModelCacheTTL  = time.Hour
	defaultModelCacheSize = 256
	listKey               = "models"
)

// ModelCache caches model metadata with a TTL.
type ModelCache struct {
	models *expirable.LRU[string, *aisdk.ModelInfo]
	lists  *expirable.LRU[string, []*aisdk.ModelInfo]
	client *Client
}

// NewModelCache creates a new model cache
func NewModelCache(client *Client, size int, ttl time.Duration) *ModelCache {
	if size <= 0 {
		size = defaultModelCacheSize
	}
	if ttl <= 0 {
		ttl = defaultModelCacheTTL
	}
	return &ModelCache{
		models: expirable.NewLRU[string, *aisdk.ModelInfo](size, nil, ttl),
		lists:  expirable.NewLRU[string, []*aisdk.ModelInfo](1, nil, ttl),
		client: client,
	}
}

// GetModel returns a model from the cache, refreshing the model list on a miss.
func (mc *ModelCache) GetModel(ctx context.Context, modelID string) (*aisdk.ModelInfo, error) {
	if m, ok := mc.models.Get(modelID); ok {
		return m, nil
	}
	models, err := mc.GetModelList(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range models {
		if m.ID == modelID {
			mc.models.Add(modelID, m)
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
}

// GetModelList gets the model list from cache or fetches it
func (mc *ModelCache) GetModelList(ctx context.Context) ([]*aisdk.ModelInfo, error) {
	if models, ok := mc.lists.Get(listKey); ok {
		return models, nil
	}
	models, err := mc.client.listModelsUncached(ctx)
	if err != nil {
		return nil, err
	}
	mc.lists.Add(listKey, models)
	return models, nil
}

// ClearCache clears the entire cache
func (mc *ModelCache) ClearCache() {
	mc.models.Purge()
	mc.lists.Purge()
}

// Len returns the number of individually cached models.
func (mc *ModelCache) Len() int {
	return mc.models.Len()
}
