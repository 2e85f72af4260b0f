// Package entity 定义领域实体
package entity

import (
	"fmt"
	"strings"

	"skillforge-api/pkg/jsontree"
)

// AuthMode 凭证传递方式
type AuthMode string

const (
	// AuthHeader 通过 x-goog-api-key 请求头传递
	AuthHeader AuthMode = "header"
	// AuthQuery 通过 ?key= 查询参数传递
	AuthQuery AuthMode = "query"
)

// ParseAuthMode 解析凭证传递方式
func ParseAuthMode(s string) (AuthMode, error) {
	switch AuthMode(strings.ToLower(strings.TrimSpace(s))) {
	case AuthHeader:
		return AuthHeader, nil
	case AuthQuery:
		return AuthQuery, nil
	default:
		return "", fmt.Errorf("unknown auth mode: %q", s)
	}
}

// EndpointSpec 一个模型端点（基础地址 + 模型 + API 版本）及其认证方式
type EndpointSpec struct {
	URL     string
	Version string
	Model   string
	Auth    AuthMode
}

// SamplingConfig 采样参数
type SamplingConfig struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// GenerationRequest 一次生成请求
//
// 构造后不可变；需要不同输出预算时通过 WithMaxOutputTokens 得到新值。
type GenerationRequest struct {
	topic           string
	prompt          string
	maxOutputTokens int
	sampling        SamplingConfig
}

// NewGenerationRequest 创建生成请求
func NewGenerationRequest(topic, prompt string, maxOutputTokens int, sampling SamplingConfig) GenerationRequest {
	return GenerationRequest{
		topic:           topic,
		prompt:          prompt,
		maxOutputTokens: maxOutputTokens,
		sampling:        sampling,
	}
}

func (r GenerationRequest) Topic() string            { return r.topic }
func (r GenerationRequest) Prompt() string           { return r.prompt }
func (r GenerationRequest) MaxOutputTokens() int     { return r.maxOutputTokens }
func (r GenerationRequest) Sampling() SamplingConfig { return r.sampling }

// WithMaxOutputTokens 返回仅输出预算不同的新请求
func (r GenerationRequest) WithMaxOutputTokens(n int) GenerationRequest {
	r.maxOutputTokens = n
	return r
}

// CallOutcome 单次端点调用结果（含合成的 504/502 结果）
type CallOutcome struct {
	StatusCode int
	Body       *jsontree.Node
	Endpoint   string
}

// RoadmapResult 生成成功的结果
type RoadmapResult struct {
	Text     string
	Endpoint string
}

// ModelListings 两个版本的模型列表（或错误标记）
type ModelListings struct {
	V1     *jsontree.Node `json:"models_v1"`
	V1Beta *jsontree.Node `json:"models_v1beta"`
}

// FailureReason 生成失败原因
type FailureReason string

const (
	ReasonBlocked           FailureReason = "blocked"
	ReasonNoCandidates      FailureReason = "no_candidates"
	ReasonNoText            FailureReason = "no_text"
	ReasonUpstreamExhausted FailureReason = "upstream_exhausted"
)

// GenerationError 生成失败，携带供调用方排查的诊断信息
type GenerationError struct {
	Reason   FailureReason
	Endpoint string
	// StatusCode 最后一个端点的上游状态码（仅 upstream_exhausted）
	StatusCode int
	// Details blocked 时为 promptFeedback，upstream_exhausted 时为最后一次响应体
	Details *jsontree.Node
	// Preview no_text 时首个候选的截断预览
	Preview string
	// Truncated no_text 时是否已因 MAX_TOKENS 做过一次扩容重试
	Truncated bool
	Listings  *ModelListings
}

// Error 实现 error 接口
func (e *GenerationError) Error() string {
	switch e.Reason {
	case ReasonBlocked:
		return "Request was blocked by safety filters."
	case ReasonNoCandidates:
		return "No candidates returned from model."
	case ReasonNoText:
		return "Model returned no text."
	case ReasonUpstreamExhausted:
		return fmt.Sprintf("Upstream error %d", e.StatusCode)
	default:
		return fmt.Sprintf("generation failed: %s", e.Reason)
	}
}
