package handler

import (
	"github.com/gin-gonic/gin"

	"skillforge-api/internal/application/roadmap"
	"skillforge-api/internal/interfaces/http/dto"
)

// RoadmapHandler 路线图生成处理器
type RoadmapHandler struct {
	svc *roadmap.Service
}

// NewRoadmapHandler 创建路线图处理器
func NewRoadmapHandler(svc *roadmap.Service) *RoadmapHandler {
	return &RoadmapHandler{svc: svc}
}

// Generate 生成学习路线图
// @Summary 生成学习路线图
// @Tags Roadmap
// @Accept json
// @Produce json
// @Param body body dto.GenerateRequest true "主题"
// @Success 200 {object} dto.GenerateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /generate [post]
func (h *RoadmapHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, dto.ReasonInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	format := roadmap.FormatMarkdown
	if req.Format == string(roadmap.FormatHTML) {
		format = roadmap.FormatHTML
	}

	out, err := h.svc.Generate(c.Request.Context(), req.Topic, format)
	if err != nil {
		respondError(c, err)
		return
	}

	outline := make([]dto.HeadingResponse, 0, len(out.Outline))
	for _, hd := range out.Outline {
		outline = append(outline, dto.HeadingResponse{Level: hd.Level, Title: hd.Title})
	}
	c.JSON(200, dto.GenerateResponse{
		Roadmap: out.Roadmap,
		URL:     out.Endpoint,
		Outline: outline,
		HTML:    out.HTML,
	})
}
