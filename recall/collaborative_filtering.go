package recall

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/pkg/utils"
)

// UserBasedCF 是基于用户的协同过滤召回源（User-based Collaborative Filtering, User-CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 用户行为稀疏时，用"类目伪用户"补充相似度信号：
// 目标用户购买过的每个类目合成一行，行内是 Catalog 中属于该类目的全部商品。
//
// 算法流程：
//  1. 目标用户 → 行为向量（购买过的商品记 1）
//  2. 每个购买过的类目 → 伪用户行（类目下的商品记 1）
//  3. （可选）全量交互矩阵中的其他真实用户 → 行（按购买次数）
//  4. 计算行间余弦相似度，取与目标用户最相似的 TopK 行（跳过目标用户自身）
//  5. 推荐这些行中目标用户未购买的商品：score[item] += weight * similarity
//
// 返回的 Item.Score 为累加分数，同分时保持首次出现顺序。
type UserBasedCF struct {
	Catalog core.CatalogService

	// TopKSimilarUsers 参与打分的相似行数量（<=0 时使用 top_n）
	TopKSimilarUsers int

	// TopKItems 最终返回的商品数量（<=0 时使用 top_n）
	TopKItems int

	// IncludeCommunity 为 true 且 Catalog 实现了 core.InteractionSource 时，
	// 把全量交互矩阵中的其他用户也作为候选相似行
	IncludeCommunity bool

	// Config 提供默认 TopK
	Config core.RecallConfig
}

func (r *UserBasedCF) Name() string {
	return SourceCF
}

func (r *UserBasedCF) PurchaseCatalog() core.CatalogService {
	return r.Catalog
}

func (r *UserBasedCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Catalog == nil || rctx == nil {
		return nil, nil
	}

	purchases, err := loadPurchases(ctx, r.Catalog, rctx)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, nil
	}

	matrix, target, err := r.buildMatrix(ctx, rctx, purchases)
	if err != nil {
		return nil, err
	}

	topKUsers := r.topK(rctx, r.TopKSimilarUsers, r.config().DefaultTopKSimilarUsers())
	topKItems := r.topK(rctx, r.TopKItems, r.config().DefaultTopKItems())

	sim := matrix.CosineSimilarity()
	neighbors := rankNeighbors(sim[target], target, topKUsers)

	// score[item] = Σ(weight * similarity)，按首次出现顺序记录
	scores := make(map[string]float64)
	var order []string
	for _, nb := range neighbors {
		s := sim[target][nb]
		matrix.Items(nb, func(item string, weight float64) {
			if matrix.Has(target, item) {
				return
			}
			if _, ok := scores[item]; !ok {
				order = append(order, item)
			}
			scores[item] += weight * s
		})
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	if len(order) > topKItems {
		order = order[:topKItems]
	}

	out := make([]*core.Item, 0, len(order))
	for _, id := range order {
		it := core.NewItem(id)
		it.Score = scores[id]
		it.PutLabel("cf_neighbors", utils.Label{Value: strconv.Itoa(len(neighbors)), Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}

// buildMatrix 构建交互矩阵，返回矩阵与目标用户行号。
func (r *UserBasedCF) buildMatrix(
	ctx context.Context,
	rctx *core.RecommendContext,
	purchases []core.Purchase,
) (*InteractionMatrix, int, error) {
	matrix := NewInteractionMatrix()
	target := matrix.AddRow("user:" + rctx.UserID)
	for _, p := range purchases {
		if p.ProductID != "" {
			matrix.Set(target, string(p.ProductID), 1)
		}
	}

	categories := distinctCategories(purchases)
	if len(categories) > 0 {
		pool, err := r.Catalog.GetProductsByCategory(ctx, categories)
		if err != nil {
			return nil, 0, err
		}
		rows := make(map[string]int, len(categories))
		for _, c := range categories {
			rows[c] = matrix.AddRow("category:" + c)
		}
		for i := range pool {
			row, ok := rows[pool[i].Category.ID]
			if !ok || pool[i].ID == "" {
				continue
			}
			matrix.Set(row, pool[i].ID, 1)
		}
	}

	if r.IncludeCommunity {
		r.addCommunityRows(ctx, matrix, rctx.UserID)
	}
	return matrix, target, nil
}

// addCommunityRows 追加其他真实用户的行；失败时只记录日志，继续使用类目伪用户。
func (r *UserBasedCF) addCommunityRows(ctx context.Context, matrix *InteractionMatrix, userID string) {
	src, ok := r.Catalog.(core.InteractionSource)
	if !ok {
		return
	}
	interactions, err := src.GetInteractions(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("collaborative filtering: community interactions unavailable")
		return
	}

	users := make([]string, 0, len(interactions))
	for u := range interactions {
		if u != userID {
			users = append(users, u)
		}
	}
	sort.Strings(users)

	for _, u := range users {
		items := interactions[u]
		ids := make([]string, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		row := matrix.AddRow("user:" + u)
		for _, id := range ids {
			matrix.Set(row, id, items[id])
		}
	}
}

func (r *UserBasedCF) config() core.RecallConfig {
	if r.Config != nil {
		return r.Config
	}
	return &core.DefaultRecallConfig{}
}

func (r *UserBasedCF) topK(rctx *core.RecommendContext, configured, fallback int) int {
	if configured > 0 {
		return configured
	}
	return rctx.ParamInt("top_n", fallback)
}

// rankNeighbors 按与目标行的相似度降序（稳定）排列其他行，跳过目标行自身，取前 k 个。
func rankNeighbors(row []float64, target, k int) []int {
	idx := make([]int, 0, len(row))
	for i := range row {
		if i != target {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return row[idx[a]] > row[idx[b]]
	})
	if len(idx) > k {
		idx = idx[:k]
	}
	return idx
}

// distinctCategories 按首次出现顺序返回购买记录中的类目 ID（跳过空值）。
func distinctCategories(purchases []core.Purchase) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, p := range purchases {
		c := string(p.CategoryID)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
