package roadmap

import (
	"context"
	"fmt"

	"skillforge-api/internal/domain/entity"
	"skillforge-api/pkg/jsontree"
	"skillforge-api/pkg/logger"
)

// listingSource 一个模型列表来源及其认证方式
type listingSource struct {
	version string
	auth    entity.AuthMode
}

// v1 走查询参数认证，v1beta 走请求头认证，两种方式各验证一次
var listingSources = [2]listingSource{
	{version: "v1", auth: entity.AuthQuery},
	{version: "v1beta", auth: entity.AuthHeader},
}

// Collector 依次拉取两个版本的模型列表；单个失败以错误标记替代，从不返回 error
type Collector struct {
	lister ModelLister
}

func NewCollector(lister ModelLister) *Collector {
	return &Collector{lister: lister}
}

// Collect 顺序执行两次只读请求
func (c *Collector) Collect(ctx context.Context, timeoutUnits int) *entity.ModelListings {
	return &entity.ModelListings{
		V1:     c.fetch(ctx, listingSources[0], timeoutUnits),
		V1Beta: c.fetch(ctx, listingSources[1], timeoutUnits),
	}
}

func (c *Collector) fetch(ctx context.Context, src listingSource, timeoutUnits int) *jsontree.Node {
	node, err := c.lister.ListModels(ctx, src.version, src.auth, timeoutUnits)
	if err != nil {
		logger.Warn(ctx, "model listing failed", "version", src.version, "error", err.Error())
		return listingErrorMarker(src.version, err)
	}
	return node
}

func listingErrorMarker(version string, err error) *jsontree.Node {
	return jsontree.Map(jsontree.F("error",
		jsontree.String(fmt.Sprintf("Failed to fetch %s models: %v", version, err))))
}
