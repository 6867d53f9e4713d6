package core

import "github.com/rushteam/shoprec/pkg/utils"

// Item 是推荐链路中的统一承载结构：分数、元信息、标签，以及解析后的商品记录。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID     string
	Score  float64
	Meta   map[string]any
	Labels map[string]utils.Label

	// Product 是通过 Catalog 批量解析得到的完整商品记录（resolve 之前为 nil）
	Product *Product
}

func NewItem(id string) *Item {
	return &Item{
		ID:     id,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// NewProductItem 用完整商品记录构建 Item，Meta 中写入 name / category / popularity。
func NewProductItem(p *Product) *Item {
	it := NewItem(p.ID)
	it.AttachProduct(p)
	return it
}

// AttachProduct 绑定商品记录，并同步可被 DSL / Diversity 读取的元信息。
func (it *Item) AttachProduct(p *Product) {
	it.Product = p
	if p == nil {
		return
	}
	if it.Meta == nil {
		it.Meta = make(map[string]any)
	}
	it.Meta["name"] = p.Name
	it.Meta["popularity"] = p.Popularity
	if p.Category.ID != "" {
		it.Meta["category_id"] = p.Category.ID
	}
	if p.Category.Name != "" {
		it.Meta["category"] = p.Category.Name
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
