package dto

import (
	"github.com/gin-gonic/gin"

	"skillforge-api/pkg/jsontree"
	"skillforge-api/pkg/logger"
)

// ReasonContextKey 错误响应写入 gin context 的失败原因，供指标与访问日志使用
const ReasonContextKey = "error_reason"

// 机器可读的失败原因
const (
	ReasonInvalidRequest    = "invalid_request"
	ReasonTopicRequired     = "topic_required"
	ReasonTopicNotAllowed   = "topic_not_allowed"
	ReasonTechRequired      = "tech_required"
	ReasonBlocked           = "blocked"
	ReasonNoCandidates      = "no_candidates"
	ReasonNoText            = "no_text"
	ReasonUpstreamExhausted = "upstream_exhausted"
	ReasonInternal          = "internal"
)

// HeadingResponse 路线图标题
type HeadingResponse struct {
	Level int    `json:"level"`
	Title string `json:"title"`
}

// GenerateResponse 路线图生成成功响应
type GenerateResponse struct {
	Roadmap string            `json:"roadmap"`
	URL     string            `json:"url"`
	Outline []HeadingResponse `json:"outline"`
	HTML    string            `json:"html,omitempty"`
}

// ModelsResponse 两个 API 版本的模型列表
type ModelsResponse struct {
	ModelsV1     *jsontree.Node `json:"models_v1"`
	ModelsV1Beta *jsontree.Node `json:"models_v1beta"`
}

// ErrorResponse 错误响应，字段随失败原因出现
type ErrorResponse struct {
	Error          string         `json:"error"`
	Reason         string         `json:"reason"`
	Details        any            `json:"details,omitempty"`
	URL            *string        `json:"url,omitempty"`
	ContentPreview string         `json:"content_preview,omitempty"`
	Truncated      bool           `json:"truncated,omitempty"`
	ModelsV1       *jsontree.Node `json:"models_v1,omitempty"`
	ModelsV1Beta   *jsontree.Node `json:"models_v1beta,omitempty"`
	RequestID      string         `json:"request_id,omitempty"`
	TraceID        string         `json:"trace_id,omitempty"`
}

// StringPtr 返回 s 的指针
func StringPtr(s string) *string { return &s }

// Error 返回错误响应，附带请求 ID 与 trace ID，并记录失败原因
func Error(c *gin.Context, httpCode int, body ErrorResponse) {
	ctx := c.Request.Context()
	body.RequestID = logger.StringFrom(ctx, logger.RequestIDKey)
	body.TraceID = logger.StringFrom(ctx, logger.TraceIDKey)
	c.Set(ReasonContextKey, body.Reason)
	c.JSON(httpCode, body)
}

// FailureReason 本次请求的失败原因；成功请求返回 "none"
func FailureReason(c *gin.Context) string {
	if r := c.GetString(ReasonContextKey); r != "" {
		return r
	}
	return "none"
}

// BadRequest 返回 400 错误
func BadRequest(c *gin.Context, reason, message string) {
	Error(c, 400, ErrorResponse{Error: message, Reason: reason})
}

// InternalError 返回 500 错误
func InternalError(c *gin.Context, message string) {
	Error(c, 500, ErrorResponse{Error: message, Reason: ReasonInternal})
}
