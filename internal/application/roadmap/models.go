package roadmap

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/pkg/jsontree"
	"skillforge-api/pkg/logger"
	"skillforge-api/pkg/metrics"
)

// ListingTimeoutUnits /models 接口拉取列表的超时（时间单位）
const ListingTimeoutUnits = 20

const listingCacheKey = "listings"

// errListingIncomplete 列表含上游错误时不写入缓存
var errListingIncomplete = errors.New("model listing incomplete")

// ListingCache 读穿缓存
type ListingCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) ([]byte, error)) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// ModelCatalog 提供 /models 的模型列表，可选经过缓存
type ModelCatalog struct {
	collector DiagnosticCollector
	cache     ListingCache
	ttl       time.Duration
}

// NewModelCatalog cache 为 nil 时每次都直连上游
func NewModelCatalog(collector DiagnosticCollector, cache ListingCache, ttl time.Duration) *ModelCatalog {
	return &ModelCatalog{collector: collector, cache: cache, ttl: ttl}
}

// cachedListings 缓存中的序列化形式；列表保持原始 JSON 以保留字段顺序
type cachedListings struct {
	V1     json.RawMessage `json:"models_v1"`
	V1Beta json.RawMessage `json:"models_v1beta"`
}

// List 返回两个版本的模型列表；失败只体现在错误标记里
func (m *ModelCatalog) List(ctx context.Context) *entity.ModelListings {
	if m.cache == nil {
		return m.collector.Collect(ctx, ListingTimeoutUnits)
	}

	var fresh *entity.ModelListings
	raw, hit, err := m.cache.GetOrLoadSafe(ctx, listingCacheKey, m.ttl, func(ctx context.Context) ([]byte, error) {
		fresh = m.collector.Collect(ctx, ListingTimeoutUnits)
		if fresh.V1.Get("error") != nil || fresh.V1Beta.Get("error") != nil {
			return nil, errListingIncomplete
		}
		return json.Marshal(fresh)
	})
	switch {
	case errors.Is(err, errListingIncomplete) && fresh != nil:
		metrics.ModelListingCacheTotal.WithLabelValues("miss").Inc()
		return fresh
	case err != nil:
		if !errors.Is(err, errListingIncomplete) {
			metrics.ModelListingCacheTotal.WithLabelValues("error").Inc()
			logger.Warn(ctx, "model listing cache unavailable, fetching directly", "error", err.Error())
		}
		if fresh != nil {
			return fresh
		}
		return m.collector.Collect(ctx, ListingTimeoutUnits)
	case hit:
		metrics.ModelListingCacheTotal.WithLabelValues("hit").Inc()
	default:
		metrics.ModelListingCacheTotal.WithLabelValues("miss").Inc()
		if fresh != nil {
			return fresh
		}
	}

	listings, err := decodeListings(raw)
	if err != nil {
		logger.Warn(ctx, "discarding undecodable cached listings", "error", err.Error())
		return m.collector.Collect(ctx, ListingTimeoutUnits)
	}
	return listings
}

// Refresh 丢弃缓存后重新拉取；清除失败时仍直连上游，避免返回旧数据
func (m *ModelCatalog) Refresh(ctx context.Context) *entity.ModelListings {
	if m.cache == nil {
		return m.collector.Collect(ctx, ListingTimeoutUnits)
	}
	if err := m.cache.Delete(ctx, listingCacheKey); err != nil {
		metrics.ModelListingCacheTotal.WithLabelValues("error").Inc()
		logger.Warn(ctx, "model listing cache bust failed, fetching directly", "error", err.Error())
		return m.collector.Collect(ctx, ListingTimeoutUnits)
	}
	return m.List(ctx)
}

func decodeListings(raw []byte) (*entity.ModelListings, error) {
	var c cachedListings
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	v1, err := jsontree.Parse(c.V1)
	if err != nil {
		return nil, err
	}
	v1beta, err := jsontree.Parse(c.V1Beta)
	if err != nil {
		return nil, err
	}
	return &entity.ModelListings{V1: v1, V1Beta: v1beta}, nil
}
