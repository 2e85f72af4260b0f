package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"skillforge-api/internal/application/roadmap"
	"skillforge-api/internal/domain/entity"
	"skillforge-api/internal/interfaces/http/dto"
)

// ModelsHandler 模型列表处理器
type ModelsHandler struct {
	catalog *roadmap.ModelCatalog
}

func NewModelsHandler(catalog *roadmap.ModelCatalog) *ModelsHandler {
	return &ModelsHandler{catalog: catalog}
}

// List 返回 v1 与 v1beta 的模型列表；拉取失败体现为列表内的错误标记
//
// refresh=1 时跳过并清除缓存。
// @Router /models [get]
func (h *ModelsHandler) List(c *gin.Context) {
	var listings *entity.ModelListings
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		listings = h.catalog.Refresh(c.Request.Context())
	} else {
		listings = h.catalog.List(c.Request.Context())
	}
	c.JSON(http.StatusOK, dto.ModelsResponse{
		ModelsV1:     listings.V1,
		ModelsV1Beta: listings.V1Beta,
	})
}
