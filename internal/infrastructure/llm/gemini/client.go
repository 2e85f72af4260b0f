// Package gemini 提供生成式语言 API 的 HTTP 客户端
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
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
	// APIKeyHeader 请求头认证时使用的头名
	APIKeyHeader = "x-goog-api-key"
	// APIKeyParam 查询参数认证时使用的参数名
	APIKeyParam = "key"

	// MaxAttempts 超时重试的总尝试次数
	MaxAttempts = 3

	// 以下超时均以时间单位计，生产环境单位为 1s
	GenerateTimeoutUnits = 60
	// DiagnosticListingTimeoutUnits 全部端点失败后拉取模型列表的超时
	DiagnosticListingTimeoutUnits = 40
	// ListingTimeoutUnits /models 接口拉取模型列表的超时
	ListingTimeoutUnits = 20

	defaultTimeUnit = time.Second
	maxBodyBytes    = 8 << 20
)

// Client 生成式语言 API 客户端
type Client struct {
	http    *http.Client
	apiKey  string
	baseURL string
	unit    time.Duration
}

// Option 客户端配置项
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeUnit 设置超时与退避使用的时间单位
func WithTimeUnit(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.unit = d
		}
	}
}

// NewClient 创建客户端
func NewClient(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		unit:    defaultTimeUnit,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateURL 拼接 generateContent 端点地址
func (c *Client) GenerateURL(version, model string) string {
	return fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, version, model)
}

// ListModelsURL 拼接模型列表地址
func (c *Client) ListModelsURL(version string) string {
	return fmt.Sprintf("%s/%s/models", c.baseURL, version)
}

// Call 向单个端点发送生成请求
//
// 仅在超时时重试，最多 MaxAttempts 次，两次尝试之间线性退避 1.5×n 个时间单位。
// 任何失败都以合成的 CallOutcome 返回：超时耗尽为 504，其余传输错误为 502。
func (c *Client) Call(ctx context.Context, ep entity.EndpointSpec, req entity.GenerationRequest) entity.CallOutcome {
	ctx = logger.WithContext(ctx, logger.EndpointKey, ep.URL)
	ctx, span := tracer.Start(ctx, "gemini.Call", trace.WithAttributes(
		attribute.String("llm.endpoint", ep.URL),
		attribute.String("llm.model", ep.Model),
		attribute.Int("llm.max_output_tokens", req.MaxOutputTokens()),
	))
	defer span.End()

	start := time.Now()
	outcome := c.call(ctx, ep, req)

	metrics.LLMCallDuration.WithLabelValues(ep.Model).Observe(time.Since(start).Seconds())
	metrics.LLMCallTotal.WithLabelValues(ep.Model, fmt.Sprintf("%d", outcome.StatusCode)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", outcome.StatusCode))
	if outcome.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("upstream status %d", outcome.StatusCode))
	}
	return outcome
}

func (c *Client) call(ctx context.Context, ep entity.EndpointSpec, req entity.GenerationRequest) entity.CallOutcome {
	payload, err := json.Marshal(newGenerateContentRequest(req))
	if err != nil {
		return transportFailure(ep.URL, err)
	}

	timeout := c.units(GenerateTimeoutUnits)
	var (
		attempt  int
		lastErr  error
		timedOut bool
	)
	op := func() (entity.CallOutcome, error) {
		attempt++
		status, raw, err := c.roundTrip(ctx, http.MethodPost, ep, payload, timeout)
		if err == nil {
			// 响应体无法解析时降级为 {"raw": ...}
			return entity.CallOutcome{
				StatusCode: status,
				Body:       jsontree.ParseOrRaw(raw),
				Endpoint:   ep.URL,
			}, nil
		}
		timedOut = isTimeout(ctx, err)
		err = c.redact(err)
		lastErr = err
		if !timedOut {
			return entity.CallOutcome{}, backoff.Permanent(err)
		}
		if attempt < MaxAttempts {
			metrics.LLMCallRetries.WithLabelValues(ep.Model).Inc()
			logger.Warn(ctx, "gemini call timed out, retrying", "attempt", attempt, "error", err.Error())
		}
		return entity.CallOutcome{}, err
	}

	outcome, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newLinearBackOff(c.unit)),
		backoff.WithMaxTries(MaxAttempts),
	)
	if err == nil {
		return outcome
	}
	if lastErr == nil {
		lastErr = err
	}
	if timedOut {
		logger.Error(ctx, "gemini call timed out on every attempt", lastErr, "attempts", attempt)
		return entity.CallOutcome{
			StatusCode: http.StatusGatewayTimeout,
			Body: jsontree.Map(
				jsontree.F("error", jsontree.String("Gateway timeout while calling model")),
				jsontree.F("exception", jsontree.String(lastErr.Error())),
			),
			Endpoint: ep.URL,
		}
	}
	logger.Error(ctx, "gemini call transport failure", lastErr)
	return transportFailure(ep.URL, lastErr)
}

// ListModels 拉取某个 API 版本下的模型列表；单次请求，不重试
func (c *Client) ListModels(ctx context.Context, version string, auth entity.AuthMode, timeoutUnits int) (*jsontree.Node, error) {
	ep := entity.EndpointSpec{
		URL:     c.ListModelsURL(version),
		Version: version,
		Auth:    auth,
	}
	ctx, span := tracer.Start(ctx, "gemini.ListModels", trace.WithAttributes(
		attribute.String("llm.endpoint", ep.URL),
	))
	defer span.End()

	status, raw, err := c.roundTrip(ctx, http.MethodGet, ep, nil, c.units(timeoutUnits))
	if err != nil {
		err = c.redact(err)
		span.RecordError(err)
		return nil, err
	}
	node, err := jsontree.Parse(raw)
	if err != nil {
		err = fmt.Errorf("unparseable listing response (status %d): %w", status, err)
		span.RecordError(err)
		return nil, err
	}
	return node, nil
}

// roundTrip 执行一次 HTTP 请求，返回状态码与原始响应体
func (c *Client) roundTrip(ctx context.Context, method string, ep entity.EndpointSpec, payload []byte, timeout time.Duration) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target, err := c.authorize(ep)
	if err != nil {
		return 0, nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if ep.Auth == entity.AuthHeader {
		httpReq.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

// authorize 按认证方式生成实际请求地址
func (c *Client) authorize(ep entity.EndpointSpec) (string, error) {
	if ep.Auth != entity.AuthQuery {
		return ep.URL, nil
	}
	u, err := url.Parse(ep.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(APIKeyParam, c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact 去除错误信息中的 API Key（查询参数认证时 URL 会出现在错误里）
func (c *Client) redact(err error) error {
	if err == nil || c.apiKey == "" || !strings.Contains(err.Error(), c.apiKey) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), c.apiKey, "REDACTED"))
}

func (c *Client) units(n int) time.Duration {
	return time.Duration(n) * c.unit
}

// isTimeout 判断是否为单次尝试的超时；调用方自身取消不算超时
func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func transportFailure(endpoint string, err error) entity.CallOutcome {
	return entity.CallOutcome{
		StatusCode: http.StatusBadGateway,
		Body: jsontree.Map(
			jsontree.F("error", jsontree.String("Transport failure while calling model")),
			jsontree.F("exception", jsontree.String(err.Error())),
		),
		Endpoint: endpoint,
	}
}

// linearBackOff 第 n 次重试前等待 1.5×n 个时间单位
type linearBackOff struct {
	unit time.Duration
	n    int
}

func newLinearBackOff(unit time.Duration) *linearBackOff {
	return &linearBackOff{unit: unit}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(1.5 * float64(b.n) * float64(b.unit))
}

func (b *linearBackOff) Reset() { b.n = 0 }
