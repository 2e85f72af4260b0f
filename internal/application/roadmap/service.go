// Package roadmap 学习路线图生成：主题过滤、多端点回退生成、结果后处理
package roadmap

import (
	"context"

	"skillforge-api/internal/application/topicfilter"
	"skillforge-api/internal/domain/entity"
	apperrors "skillforge-api/pkg/errors"
	"skillforge-api/pkg/logger"
	"skillforge-api/pkg/metrics"
)

// Format 输出格式
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// RoadmapGenerator 路线图生成（多端点回退）
type RoadmapGenerator interface {
	Generate(ctx context.Context, topic string) (*entity.RoadmapResult, error)
}

// Output 路线图及其后处理结果
type Output struct {
	Roadmap  string
	Endpoint string
	Outline  []Heading
	HTML     string
}

// Service 路线图应用服务
type Service struct {
	filter    *topicfilter.Filter
	generator RoadmapGenerator
}

func NewService(filter *topicfilter.Filter, generator RoadmapGenerator) *Service {
	if filter == nil {
		filter = topicfilter.New()
	}
	return &Service{filter: filter, generator: generator}
}

// Generate 校验主题后生成路线图
//
// 主题被拒绝时返回 *apperrors.AppError；生成失败时返回 *entity.GenerationError。
func (s *Service) Generate(ctx context.Context, topic string, format Format) (*Output, error) {
	verdict := s.filter.Classify(topic)
	if !verdict.Allowed {
		metrics.TopicRejectedTotal.WithLabelValues(string(verdict.Reason)).Inc()
		logger.Info(ctx, "topic rejected", "reason", string(verdict.Reason))
		if verdict.Reason == topicfilter.ReasonEmpty {
			return nil, apperrors.New(apperrors.CodeTopicRequired, "Topic required")
		}
		return nil, apperrors.New(apperrors.CodeTopicNotAllowed, "Topic not allowed").WithDetail(verdict.Details)
	}

	res, err := s.generator.Generate(ctx, verdict.Topic)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Roadmap:  res.Text,
		Endpoint: res.Endpoint,
		Outline:  Outline(res.Text),
	}
	if format == FormatHTML {
		html, err := RenderHTML(res.Text)
		if err != nil {
			logger.Warn(ctx, "render roadmap html failed", "error", err.Error())
		} else {
			out.HTML = html
		}
	}
	return out, nil
}
