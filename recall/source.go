package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Source 表示一个可复用的召回源（协同过滤/内容相似/热门/...）。
// 你可以把它理解为"可并发 fan-out 的策略单元"。
//
// 约定：召回源返回的 Item.Score 是该召回源自己的分数，
// 跨召回源的融合由 MergeStrategy 负责。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// 召回源名称，同时作为 recall_source label 的值与 Weighted 合并的 key。
const (
	SourceCF      = "recall.cf"
	SourceContent = "recall.content"
	SourceHot     = "recall.hot"
)

// PurchaseSource 由需要用户购买记录的召回源实现，Fanout 据此在并发前统一拉取。
type PurchaseSource interface {
	PurchaseCatalog() core.CatalogService
}

// loadPurchases 优先复用上下文中的购买记录；上下文中没有时（单独使用召回源）自行拉取并回填。
// 并发调用由 RecommendContext 串行化，只有第一个调用会真正拉取。
func loadPurchases(ctx context.Context, catalog core.CatalogService, rctx *core.RecommendContext) ([]core.Purchase, error) {
	var fetch func(context.Context) ([]core.Purchase, error)
	if catalog != nil && rctx.UserID != "" {
		fetch = func(ctx context.Context) ([]core.Purchase, error) {
			return catalog.GetPurchases(ctx, rctx.UserID)
		}
	}
	return rctx.LoadPurchases(ctx, fetch)
}
