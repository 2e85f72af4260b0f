package roadmap

import (
	"context"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/pkg/jsontree"
)

// EndpointCaller 单端点调用原语（含超时重试）；失败以合成结果返回，不返回 error
type EndpointCaller interface {
	Call(ctx context.Context, ep entity.EndpointSpec, req entity.GenerationRequest) entity.CallOutcome
}

// ModelLister 拉取某个 API 版本的模型列表
type ModelLister interface {
	ListModels(ctx context.Context, version string, auth entity.AuthMode, timeoutUnits int) (*jsontree.Node, error)
}

// DiagnosticCollector 在所有端点失败后收集排查信息
type DiagnosticCollector interface {
	Collect(ctx context.Context, timeoutUnits int) *entity.ModelListings
}

// PromptRenderer 将主题渲染为提示词
type PromptRenderer interface {
	Render(ctx context.Context, topic string) (string, error)
}
