// Package builders 把 Pipeline YAML 中的 node type 映射到具体的 Node 实现。
//
// 需要外部依赖的 Node（Catalog、Store）从 Deps 注入，因此工厂按进程构建一次，
// 而不是依赖 init 时的全局注册。
package builders

import (
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/conv"
	"github.com/rushteam/shoprec/postprocess"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// Deps 是构建 Node 时可用的运行时依赖。
type Deps struct {
	Catalog core.CatalogService

	// Store 可选；为空时 blacklist/user_block 只使用静态配置
	Store core.Store
}

// NewFactory 返回注册了所有内置 Node 的工厂。
func NewFactory(deps Deps) *pipeline.NodeFactory {
	f := pipeline.NewNodeFactory()
	f.Register("rank.score", buildScoreSortNode)
	f.Register("rerank.topn", buildTopNNode)
	f.Register("rerank.diversity", buildDiversityNode)
	f.Register("postprocess.resolve", deps.buildResolveNode)
	f.Register("filter", deps.buildFilterNode)
	f.Register("recall.hot", deps.buildHotNode)
	return f
}

func buildScoreSortNode(map[string]any) (pipeline.Node, error) {
	return &rank.ScoreSortNode{}, nil
}

func buildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: n}, nil
}

func buildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.Diversity{
		LabelKey:       conv.ConfigGet(cfg, "label_key", "category"),
		MaxPerCategory: conv.ConfigGetInt(cfg, "max_per_category", 1),
	}, nil
}

func (d Deps) buildResolveNode(cfg map[string]any) (pipeline.Node, error) {
	if d.Catalog == nil {
		return nil, fmt.Errorf("postprocess.resolve: catalog not configured")
	}
	return &postprocess.ResolveNode{
		Catalog:      d.Catalog,
		SkipResolved: conv.ConfigGet(cfg, "skip_resolved", false),
	}, nil
}

func (d Deps) buildHotNode(cfg map[string]any) (pipeline.Node, error) {
	if d.Catalog == nil {
		return nil, fmt.Errorf("recall.hot: catalog not configured")
	}
	return &recall.Hot{Catalog: d.Catalog, N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func (d Deps) buildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	var adapter *filter.StoreAdapter
	if d.Store != nil {
		adapter = filter.NewStoreAdapter(d.Store)
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for i, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filter #%d: expected mapping", i)
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "purchased":
			filters = append(filters, &filter.PurchasedFilter{})
		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["item_ids"])
			key := conv.ConfigGet(filterMap, "key", "")
			filters = append(filters, filter.NewBlacklistFilter(ids, adapter, key))
		case "user_block":
			if adapter == nil {
				return nil, fmt.Errorf("filter #%d: user_block requires a store", i)
			}
			keyPrefix := conv.ConfigGet(filterMap, "key_prefix", "")
			filters = append(filters, filter.NewUserBlockFilter(adapter, keyPrefix))
		case "expr":
			expr := conv.ConfigGet(filterMap, "expr", "")
			if expr == "" {
				return nil, fmt.Errorf("filter #%d: expr is required", i)
			}
			ef, err := filter.NewExprFilter(expr, conv.ConfigGet(filterMap, "invert", false))
			if err != nil {
				return nil, fmt.Errorf("filter #%d: %w", i, err)
			}
			filters = append(filters, ef)
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}
