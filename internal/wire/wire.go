//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"skillforge-api/internal/application/roadmap"
	"skillforge-api/internal/config"
	"skillforge-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RoadmapSet,
		CacheSet,
		RouterSet,
	)
	return nil, nil, nil
}

// InitializeDiagnostics 仅初始化模型列表诊断（用于 model-probe）
func InitializeDiagnostics(cfg *config.Config) (*roadmap.Collector, error) {
	wire.Build(
		GeminiSet,
		roadmap.NewCollector,
	)
	return nil, nil
}
