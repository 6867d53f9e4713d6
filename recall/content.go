package recall

import (
	"context"
	"strconv"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

// ContentRecall 是基于内容的召回源（Content-Based Recommendation）。
//
// 核心思想："买了这个商品的用户，可能也会对文本描述相似的商品感兴趣"
//
// 以用户最近一次购买的商品为种子，在 ContentIndex 中查找 TF-IDF 余弦相似度最高的商品。
// 返回的 Item 已绑定完整商品记录，Item.Score 为相似度。
type ContentRecall struct {
	Index *ContentIndex

	// Catalog 仅在上下文中没有购买记录时用于拉取（单独使用时）
	Catalog core.CatalogService

	// TopK 返回 TopK 个物品（<=0 时使用 top_n）
	TopK int

	Config core.RecallConfig
}

func (r *ContentRecall) Name() string {
	return SourceContent
}

func (r *ContentRecall) PurchaseCatalog() core.CatalogService {
	return r.Catalog
}

func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Index == nil || rctx == nil {
		return nil, nil
	}

	if _, err := loadPurchases(ctx, r.Catalog, rctx); err != nil {
		return nil, err
	}
	latest, ok := rctx.LatestPurchase()
	if !ok || latest.ProductID == "" {
		return nil, nil
	}
	seed := string(latest.ProductID)

	topK := r.TopK
	if topK <= 0 {
		def := 5
		if r.Config != nil {
			def = r.Config.DefaultTopKItems()
		}
		topK = rctx.ParamInt("top_n", def)
	}

	neighbors, err := r.Index.Similar(ctx, seed, topK)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(neighbors))
	for i := range neighbors {
		p := neighbors[i].Product
		it := core.NewProductItem(&p)
		it.Score = neighbors[i].Similarity
		it.Meta["similarity"] = neighbors[i].Similarity
		it.PutLabel("content_seed", utils.Label{Value: seed, Source: "recall"})
		it.PutLabel("content_rank", utils.Label{Value: strconv.Itoa(i + 1), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
