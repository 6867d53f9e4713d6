package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// PurchasedFilter 过滤掉用户已经购买过的商品。
// 购买记录来自 RecommendContext，由 Blender 在请求开始时拉取一次。
type PurchasedFilter struct{}

func (f *PurchasedFilter) Name() string {
	return "filter.purchased"
}

func (f *PurchasedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil {
		return false, nil
	}
	if rctx.HasPurchased(item.ID) {
		return true, nil
	}
	// 解析后的商品 ID 可能与召回 ID 的写法不同（例如 id 与 _id），两者都检查
	if item.Product != nil && item.Product.ID != item.ID && rctx.HasPurchased(item.Product.ID) {
		return true, nil
	}
	return false, nil
}
