// Package postprocess 实现后处理阶段：把打分后的商品 ID 解析为完整商品记录。
package postprocess

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
)

// ResolveNode 通过 Catalog 批量接口把 Item 解析为完整商品记录。
//
//   - 结果顺序保持输入顺序（即分数顺序），与 Catalog 返回顺序无关
//   - Catalog 没有返回的 ID 被丢弃
//   - Catalog 调用失败时返回错误，由 Blender 统一降级
type ResolveNode struct {
	Catalog core.CatalogService

	// SkipResolved 为 true 时，已绑定商品记录的 Item（例如内容召回）不再重复解析
	SkipResolved bool
}

func (n *ResolveNode) Name() string {
	return "postprocess.resolve"
}

func (n *ResolveNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *ResolveNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 || n.Catalog == nil {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil || (n.SkipResolved && it.Product != nil) {
			continue
		}
		ids = append(ids, it.ID)
	}

	resolved := make(map[string]*core.Product, len(ids))
	if len(ids) > 0 {
		products, err := n.Catalog.GetProductsBatch(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range products {
			if _, ok := resolved[products[i].ID]; !ok {
				resolved[products[i].ID] = &products[i]
			}
		}
	}

	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if p, ok := resolved[it.ID]; ok {
			it.AttachProduct(p)
		} else if !(n.SkipResolved && it.Product != nil) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
