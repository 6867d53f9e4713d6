package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// Hot 是热门召回源：按热度降序从 Catalog 拉取商品，用作兜底。
//
//   - 没有购买记录的用户：精确返回热度榜前 N
//   - 有购买记录的用户：多拉取"已购数量"个商品，再剔除已购商品，保证不推荐已购买的商品
//
// Hot 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Hot struct {
	Catalog core.CatalogService

	// N 返回数量（<=0 时使用 top_n，默认 5）
	N int
}

func (r *Hot) Name() string        { return SourceHot }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口
func (r *Hot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog == nil {
		return nil, nil
	}

	n := r.N
	if n <= 0 {
		n = rctx.ParamInt("top_n", 5)
	}

	var purchased map[string]struct{}
	if rctx != nil {
		purchased = rctx.PurchasedIDs()
	}

	products, err := r.Catalog.GetPopularProducts(ctx, n+len(purchased))
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, n)
	for i := range products {
		if len(out) >= n {
			break
		}
		if _, ok := purchased[products[i].ID]; ok {
			continue
		}
		it := core.NewProductItem(&products[i])
		it.Score = products[i].Popularity
		out = append(out, it)
	}
	return out, nil
}
