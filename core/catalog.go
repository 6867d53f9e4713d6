package core

import "context"

// CatalogService 是商品目录服务（外部系统）的领域接口。
//
// 约定：
//   - 所有方法都返回非 nil 的切片（可能为空）以及一个错误
//   - (空, nil) 表示"确实没有数据"；(空, err) 表示上游故障（超时、网络、非 2xx 等）
//   - 调用方按"无数据"降级处理错误，但可以通过 IsUnavailable 等函数区分两者
//
// 实现：
//   - catalog.Client 基于 HTTP 实现此接口
type CatalogService interface {
	// GetPurchases 获取用户的历史购买记录（最近的在最后）
	GetPurchases(ctx context.Context, userID string) ([]Purchase, error)

	// GetProductsByCategory 获取指定类目下的商品；空类目集合不发起请求
	GetProductsByCategory(ctx context.Context, categoryIDs []string) ([]Product, error)

	// GetProductsBatch 按 ID 批量解析商品；空输入不发起请求
	GetProductsBatch(ctx context.Context, productIDs []string) ([]Product, error)

	// GetProducts 获取商品目录（limit <= 0 表示不限制）
	GetProducts(ctx context.Context, limit int) ([]Product, error)

	// GetPopularProducts 获取按热度降序的商品，仅用于兜底
	GetPopularProducts(ctx context.Context, limit int) ([]Product, error)
}

// InteractionSource 提供全量用户-商品交互矩阵（userID → productID → 购买次数）。
// 是可选能力：catalog.Client 实现了它，协同过滤在开启社区行时使用。
type InteractionSource interface {
	GetInteractions(ctx context.Context) (map[string]map[string]float64, error)
}
