package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skillforge-api/internal/application/salary"
	"skillforge-api/internal/domain/entity"
	"skillforge-api/internal/interfaces/http/dto"
	apperrors "skillforge-api/pkg/errors"
)

// SalaryHandler 模拟薪资处理器
type SalaryHandler struct {
	gen *salary.Generator
}

func NewSalaryHandler(gen *salary.Generator) *SalaryHandler {
	return &SalaryHandler{gen: gen}
}

// Salary 返回模拟薪资统计
//
// POST 且为 JSON（application/json 或 application/*+json）时读取请求体（experience 优先于 exp），否则读取查询参数（exp 优先于 experience）。
// @Router /api/salary [get]
// @Router /api/salary [post]
func (h *SalaryHandler) Salary(c *gin.Context) {
	q, err := salaryQuery(c)
	if err != nil {
		dto.BadRequest(c, dto.ReasonInvalidRequest, "Invalid request body: "+err.Error())
		return
	}
	if q.Tech == "" {
		respondError(c, apperrors.New(apperrors.CodeTechRequired, "Missing required parameter: tech"))
		return
	}
	c.JSON(http.StatusOK, h.gen.Generate(q))
}

func salaryQuery(c *gin.Context) (entity.SalaryQuery, error) {
	if c.Request.Method == http.MethodPost && isJSON(c.ContentType()) {
		var req dto.SalaryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return entity.SalaryQuery{}, err
		}
		location := defaultLocation()
		if req.Location.Present {
			location = req.Location.Value
		}
		return entity.SalaryQuery{
			Tech:       strings.TrimSpace(req.Tech),
			Location:   location,
			Experience: firstNonEmpty(req.Experience, req.Exp, salary.DefaultExperience),
		}, nil
	}

	location := defaultLocation()
	if v, ok := c.GetQuery("location"); ok {
		location = &v
	}
	return entity.SalaryQuery{
		Tech:       strings.TrimSpace(c.Query("tech")),
		Location:   location,
		Experience: firstNonEmpty(c.Query("exp"), c.Query("experience"), salary.DefaultExperience),
	}, nil
}

func defaultLocation() *string {
	s := salary.DefaultLocation
	return &s
}

// isJSON application/json 或结构化后缀 +json 的 application 类型
func isJSON(mime string) bool {
	mime = strings.ToLower(mime)
	return mime == gin.MIMEJSON || (strings.HasPrefix(mime, "application/") && strings.HasSuffix(mime, "+json"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
