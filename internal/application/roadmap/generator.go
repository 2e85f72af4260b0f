package roadmap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/pkg/jsontree"
	"skillforge-api/pkg/logger"
	"skillforge-api/pkg/metrics"
	"skillforge-api/pkg/tracer"
)

const (
	// TruncationRetryMaxOutputTokens 输出被截断后重试使用的固定预算
	TruncationRetryMaxOutputTokens = 12000
	// PreviewMaxChars no_text 时首个候选预览的最大字符数
	PreviewMaxChars = 1200

	finishReasonMaxTokens = "MAX_TOKENS"
	outcomeSuccess        = "success"
)

// DiagnosticTimeoutUnits 失败路径上拉取模型列表的超时（时间单位）
const DiagnosticTimeoutUnits = 40

// GenerationSettings 构造请求所需的固定参数
type GenerationSettings struct {
	MaxOutputTokens int
	Sampling        entity.SamplingConfig
}

// Generator 按优先级依次尝试端点，直到得到可用文本
type Generator struct {
	caller      EndpointCaller
	diagnostics DiagnosticCollector
	prompter    PromptRenderer
	endpoints   []entity.EndpointSpec
	settings    GenerationSettings
}

func NewGenerator(caller EndpointCaller, diagnostics DiagnosticCollector, prompter PromptRenderer, endpoints []entity.EndpointSpec, settings GenerationSettings) *Generator {
	return &Generator{
		caller:      caller,
		diagnostics: diagnostics,
		prompter:    prompter,
		endpoints:   append([]entity.EndpointSpec(nil), endpoints...),
		settings:    settings,
	}
}

// Endpoints 返回端点列表副本
func (g *Generator) Endpoints() []entity.EndpointSpec {
	return append([]entity.EndpointSpec(nil), g.endpoints...)
}

// Generate 为主题生成路线图
//
// 返回的 error 为 *entity.GenerationError，或提示词渲染失败时的普通错误。
// 调用方断开不会中断进行中的上游请求，每次请求仍受自身超时约束。
func (g *Generator) Generate(ctx context.Context, topic string) (*entity.RoadmapResult, error) {
	prompt, err := g.prompter.Render(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}
	req := entity.NewGenerationRequest(topic, prompt, g.settings.MaxOutputTokens, g.settings.Sampling)
	return g.Run(ctx, req)
}

// Run 对已构造的请求执行端点回退
func (g *Generator) Run(ctx context.Context, req entity.GenerationRequest) (*entity.RoadmapResult, error) {
	ctx = context.WithoutCancel(ctx)
	ctx = logger.WithContext(ctx, logger.TopicKey, req.Topic())
	ctx, span := tracer.Start(ctx, "roadmap.Generate", trace.WithAttributes(
		attribute.Int("roadmap.endpoints", len(g.endpoints)),
	))
	defer span.End()

	start := time.Now()
	res, err := g.run(ctx, req)
	metrics.RoadmapGenerationDuration.Observe(time.Since(start).Seconds())

	outcome := outcomeSuccess
	if err != nil {
		outcome = "error"
		if ge, ok := err.(*entity.GenerationError); ok {
			outcome = string(ge.Reason)
		}
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "roadmap generation failed", "reason", outcome, "error", err.Error())
	} else {
		span.SetAttributes(attribute.String("roadmap.endpoint", res.Endpoint))
		logger.Info(ctx, "roadmap generated", "endpoint", res.Endpoint, "chars", len(res.Text))
	}
	metrics.RoadmapGenerationTotal.WithLabelValues(outcome).Inc()
	return res, err
}

func (g *Generator) run(ctx context.Context, req entity.GenerationRequest) (*entity.RoadmapResult, error) {
	var last entity.CallOutcome
	for i, ep := range g.endpoints {
		out := g.caller.Call(ctx, ep, req)
		if out.StatusCode != http.StatusOK {
			logger.Warn(ctx, "endpoint failed, trying next",
				"endpoint", out.Endpoint, "status", out.StatusCode, "position", i+1)
			last = out
			continue
		}
		return g.handleOK(ctx, ep, req, out)
	}
	return nil, g.exhausted(ctx, last)
}

// handleOK 处理 200 响应；任何结果都终止本次请求，不再尝试后续端点
func (g *Generator) handleOK(ctx context.Context, ep entity.EndpointSpec, req entity.GenerationRequest, out entity.CallOutcome) (*entity.RoadmapResult, error) {
	feedback := out.Body.Get("promptFeedback")
	if feedback.Get("blockReason").Truthy() {
		if !feedback.IsMapping() {
			feedback = jsontree.Map()
		}
		return nil, &entity.GenerationError{
			Reason:   entity.ReasonBlocked,
			Endpoint: out.Endpoint,
			Details:  feedback,
		}
	}

	candidates := out.Body.Get("candidates").Items()
	if len(candidates) == 0 {
		return nil, &entity.GenerationError{Reason: entity.ReasonNoCandidates, Endpoint: out.Endpoint}
	}

	if text, ok := joinTexts(candidateTexts(candidates)); ok {
		return &entity.RoadmapResult{Text: text, Endpoint: out.Endpoint}, nil
	}

	truncated := hitTokenLimit(candidates)
	if truncated {
		logger.Info(ctx, "output truncated without text, retrying with larger budget",
			"endpoint", out.Endpoint, "max_output_tokens", TruncationRetryMaxOutputTokens)
		retry := g.caller.Call(ctx, ep, req.WithMaxOutputTokens(TruncationRetryMaxOutputTokens))
		if retry.StatusCode == http.StatusOK {
			if text, ok := joinTexts(candidateTexts(retry.Body.Get("candidates").Items())); ok {
				return &entity.RoadmapResult{Text: text, Endpoint: retry.Endpoint}, nil
			}
		}
	}

	return nil, &entity.GenerationError{
		Reason:    entity.ReasonNoText,
		Endpoint:  out.Endpoint,
		Preview:   preview(candidates[0]),
		Truncated: truncated,
	}
}

func (g *Generator) exhausted(ctx context.Context, last entity.CallOutcome) error {
	logger.Error(ctx, "all endpoints failed", nil, "last_status", last.StatusCode, "last_endpoint", last.Endpoint)
	ge := &entity.GenerationError{
		Reason:     entity.ReasonUpstreamExhausted,
		Endpoint:   last.Endpoint,
		StatusCode: last.StatusCode,
		Details:    last.Body,
	}
	if ge.Details == nil {
		ge.Details = jsontree.Map()
	}
	if g.diagnostics != nil {
		ge.Listings = g.diagnostics.Collect(ctx, DiagnosticTimeoutUnits)
	}
	return ge
}

func hitTokenLimit(candidates []*jsontree.Node) bool {
	for _, c := range candidates {
		if reason, ok := c.Get("finishReason").Str(); ok && reason == finishReasonMaxTokens {
			return true
		}
	}
	return false
}

// preview 首个候选的紧凑 JSON，按字符截断
func preview(first *jsontree.Node) string {
	s := jsontree.Seq(first).String()
	r := []rune(s)
	if len(r) > PreviewMaxChars {
		return string(r[:PreviewMaxChars])
	}
	return s
}
