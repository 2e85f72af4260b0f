package wire

import (
	"context"
	"fmt"
	"time"

	"github.com/google/wire"

	"skillforge-api/internal/application/roadmap"
	"skillforge-api/internal/application/salary"
	"skillforge-api/internal/application/topicfilter"
	"skillforge-api/internal/config"
	"skillforge-api/internal/domain/entity"
	"skillforge-api/internal/infrastructure/llm/gemini"
	"skillforge-api/internal/infrastructure/persistence/redis"
	"skillforge-api/internal/interfaces/http/handler"
	"skillforge-api/internal/interfaces/http/router"
	"skillforge-api/internal/workflow/prompt"
	"skillforge-api/pkg/logger"
)

const listingCachePrefix = "skillforge:models:"

// GeminiSet 上游模型 API 客户端与端点列表
var GeminiSet = wire.NewSet(
	ProvideGeminiClient,
	ProvideEndpoints,
	wire.Bind(new(roadmap.EndpointCaller), new(*gemini.Client)),
	wire.Bind(new(roadmap.ModelLister), new(*gemini.Client)),
)

// RoadmapSet 路线图生成链路
var RoadmapSet = wire.NewSet(
	GeminiSet,
	prompt.NewRegistry,
	prompt.NewRoadmapPrompter,
	roadmap.NewCollector,
	ProvideGenerationSettings,
	roadmap.NewGenerator,
	topicfilter.New,
	roadmap.NewService,
	wire.Bind(new(roadmap.PromptRenderer), new(*prompt.RoadmapPrompter)),
	wire.Bind(new(roadmap.DiagnosticCollector), new(*roadmap.Collector)),
	wire.Bind(new(roadmap.RoadmapGenerator), new(*roadmap.Generator)),
)

// CacheSet 可选的模型列表缓存
var CacheSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideListingCache,
	ProvideModelCatalog,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideSalaryGenerator,
	ProvideHealthHandler,
	handler.NewRoadmapHandler,
	handler.NewModelsHandler,
	handler.NewSalaryHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvideGeminiClient 提供上游 API 客户端
func ProvideGeminiClient(cfg *config.Config) *gemini.Client {
	return gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL)
}

// ProvideEndpoints 按配置顺序展开端点列表
func ProvideEndpoints(cfg *config.Config, client *gemini.Client) ([]entity.EndpointSpec, error) {
	endpoints := make([]entity.EndpointSpec, 0, len(cfg.Gemini.Endpoints))
	for i, ep := range cfg.Gemini.Endpoints {
		auth, err := entity.ParseAuthMode(ep.Auth)
		if err != nil {
			return nil, fmt.Errorf("gemini.endpoints[%d]: %w", i, err)
		}
		endpoints = append(endpoints, entity.EndpointSpec{
			URL:     client.GenerateURL(ep.Version, ep.Model),
			Version: ep.Version,
			Model:   ep.Model,
			Auth:    auth,
		})
	}
	return endpoints, nil
}

// ProvideGenerationSettings 提供生成参数
func ProvideGenerationSettings(cfg *config.Config) roadmap.GenerationSettings {
	return roadmap.GenerationSettings{
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		Sampling: entity.SamplingConfig{
			Temperature: cfg.Generation.Temperature,
			TopP:        cfg.Generation.TopP,
			TopK:        cfg.Generation.TopK,
		},
	}
}

// ProvideRedisClientOptional 仅在启用列表缓存时连接 Redis；不可达时降级为直连上游
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.ModelListing.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, model listing cache disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideListingCache client 为 nil 时返回 nil 接口
func ProvideListingCache(client *redis.Client) roadmap.ListingCache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client, listingCachePrefix)
}

// ProvideModelCatalog 提供 /models 数据源
func ProvideModelCatalog(collector *roadmap.Collector, cache roadmap.ListingCache, cfg *config.Config) *roadmap.ModelCatalog {
	return roadmap.NewModelCatalog(collector, cache, cfg.Cache.ModelListing.TTL)
}

// ProvideSalaryGenerator 提供使用系统时钟的薪资生成器
func ProvideSalaryGenerator() *salary.Generator {
	return salary.NewGenerator(time.Now)
}

// ProvideHealthHandler 避免把 nil *redis.Client 包装成非 nil 接口
func ProvideHealthHandler(cfg *config.Config, client *redis.Client) *handler.HealthHandler {
	if client == nil {
		return handler.NewHealthHandler(cfg.App.Version, nil)
	}
	return handler.NewHealthHandler(cfg.App.Version, client)
}
