package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/internal/interfaces/http/dto"
	apperrors "skillforge-api/pkg/errors"
	"skillforge-api/pkg/logger"
)

var appErrorReasons = map[apperrors.ErrorCode]string{
	apperrors.CodeInvalidParam:    dto.ReasonInvalidRequest,
	apperrors.CodeTopicRequired:   dto.ReasonTopicRequired,
	apperrors.CodeTopicNotAllowed: dto.ReasonTopicNotAllowed,
	apperrors.CodeTechRequired:    dto.ReasonTechRequired,
}

var generationErrorCodes = map[entity.FailureReason]apperrors.ErrorCode{
	entity.ReasonBlocked:           apperrors.CodeSafetyBlocked,
	entity.ReasonNoCandidates:      apperrors.CodeNoCandidates,
	entity.ReasonNoText:            apperrors.CodeNoText,
	entity.ReasonUpstreamExhausted: apperrors.CodeUpstreamExhausted,
}

// respondError 将应用层错误转换为 HTTP 响应
func respondError(c *gin.Context, err error) {
	var genErr *entity.GenerationError
	if errors.As(err, &genErr) {
		respondGenerationError(c, genErr)
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if reason, ok := appErrorReasons[appErr.Code]; ok {
			body := dto.ErrorResponse{Error: appErr.Message, Reason: reason}
			if appErr.Detail != "" {
				body.Details = appErr.Detail
			}
			dto.Error(c, appErr.HTTPStatus, body)
			return
		}
	}

	logger.Error(c.Request.Context(), "request failed", err, "path", c.FullPath())
	dto.InternalError(c, "internal server error")
}

func respondGenerationError(c *gin.Context, e *entity.GenerationError) {
	code, ok := generationErrorCodes[e.Reason]
	if !ok {
		code = apperrors.CodeLLMProviderError
	}
	status := apperrors.New(code, e.Error()).HTTPStatus

	body := dto.ErrorResponse{
		Error:  e.Error(),
		Reason: string(e.Reason),
		URL:    dto.StringPtr(e.Endpoint),
	}
	switch e.Reason {
	case entity.ReasonBlocked:
		body.Details = e.Details
	case entity.ReasonNoText:
		body.ContentPreview = e.Preview
		body.Truncated = e.Truncated
	case entity.ReasonUpstreamExhausted:
		body.Details = e.Details
		if e.Listings != nil {
			body.ModelsV1 = e.Listings.V1
			body.ModelsV1Beta = e.Listings.V1Beta
		}
	}
	dto.Error(c, status, body)
}
