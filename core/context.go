package core

import (
	"context"
	"sync"

	"github.com/rushteam/shoprec/pkg/utils"
)

// RecommendContext 承载用户/场景/请求级信息，贯穿整个 Pipeline 透传。
// 它是请求级对象：每次推荐请求新建，响应后即丢弃。
type RecommendContext struct {
	UserID string // 使用 string 类型（通用，支持所有 ID 格式）
	Scene  string

	// Purchases 是用户历史购买记录（最近的在最后），由 Blender 在请求开始时拉取一次，
	// 下游召回源直接复用，避免重复请求 Catalog。
	Purchases []Purchase

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	// 例如：新用户、降级原因等
	Labels map[string]utils.Label

	// Params 请求级上下文参数，例如 top_n
	Params map[string]any

	purchaseMu sync.Mutex
	purchased  map[string]struct{}
}

// LoadPurchases 返回购买记录；尚未加载时通过 fetch 拉取并回填（fetch 为 nil 时不拉取）。
// 并发调用是安全的：拉取期间其他调用等待，拉取成功后不会重复拉取。
func (rctx *RecommendContext) LoadPurchases(
	ctx context.Context,
	fetch func(context.Context) ([]Purchase, error),
) ([]Purchase, error) {
	rctx.purchaseMu.Lock()
	defer rctx.purchaseMu.Unlock()
	if rctx.Purchases != nil || fetch == nil {
		return rctx.Purchases, nil
	}
	purchases, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []Purchase{}
	}
	rctx.Purchases = purchases
	rctx.purchased = PurchasedIDs(purchases)
	return purchases, nil
}

// PurchasedIDs 返回已购商品 ID 集合（惰性构建，同一请求内复用）。
func (rctx *RecommendContext) PurchasedIDs() map[string]struct{} {
	rctx.purchaseMu.Lock()
	defer rctx.purchaseMu.Unlock()
	if rctx.purchased == nil {
		rctx.purchased = PurchasedIDs(rctx.Purchases)
	}
	return rctx.purchased
}

// SetPurchases 替换购买记录并立即构建已购集合。
func (rctx *RecommendContext) SetPurchases(purchases []Purchase) {
	rctx.purchaseMu.Lock()
	defer rctx.purchaseMu.Unlock()
	if purchases == nil {
		purchases = []Purchase{}
	}
	rctx.Purchases = purchases
	rctx.purchased = PurchasedIDs(purchases)
}

// HasPurchased 判断商品是否在用户购买历史中。
func (rctx *RecommendContext) HasPurchased(productID string) bool {
	_, ok := rctx.PurchasedIDs()[productID]
	return ok
}

// LatestPurchase 返回最近一次购买记录。
func (rctx *RecommendContext) LatestPurchase() (Purchase, bool) {
	rctx.purchaseMu.Lock()
	defer rctx.purchaseMu.Unlock()
	if len(rctx.Purchases) == 0 {
		return Purchase{}, false
	}
	return rctx.Purchases[len(rctx.Purchases)-1], true
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// ParamInt 读取整型请求参数，缺失或类型不符时返回 defaultVal。
func (rctx *RecommendContext) ParamInt(key string, defaultVal int) int {
	if rctx == nil || rctx.Params == nil {
		return defaultVal
	}
	switch v := rctx.Params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}
