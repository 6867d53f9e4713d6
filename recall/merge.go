package recall

import "github.com/rushteam/shoprec/core"

// SourceResult 是单个召回源的执行结果。
type SourceResult struct {
	Source   string
	Priority int // Sources 中的下标，越小优先级越高
	Items    []*core.Item
	Err      error
}

// MergeStrategy 定义多路召回结果的合并方式。
// results 总是按 Sources 顺序排列。
type MergeStrategy interface {
	Merge(results []SourceResult) []*core.Item
}

// FirstMergeStrategy 按 ID 去重，保留第一个出现的，后出现的只合并 labels。
type FirstMergeStrategy struct{}

func (s *FirstMergeStrategy) Merge(results []SourceResult) []*core.Item {
	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, r := range results {
		for _, it := range r.Items {
			if old, ok := seen[it.ID]; ok {
				mergeLabels(old, it)
				continue
			}
			seen[it.ID] = it
			out = append(out, it)
		}
	}
	return out
}

// WeightedMergeStrategy 把多路召回的分数加权累加到同一个累加器中。
//
//   - 普通召回源：score += item.Score × weight
//   - Votes 中的召回源：每出现一次 score += weight，忽略原始分数
//
// 累加器顺序为首次出现顺序（即按 Sources 顺序），Item.Score 被替换为融合分数，
// 原始分数保存在 Meta["score.<source>"] 中。
//
// 例如 {recall.cf: 1.5} + Votes{recall.content}：协同过滤分数 ×1.5，内容相似每命中一次 +1.0。
type WeightedMergeStrategy struct {
	Weights map[string]float64 // 未配置的召回源权重为 1.0
	Votes   map[string]bool
}

func (s *WeightedMergeStrategy) Merge(results []SourceResult) []*core.Item {
	acc := make(map[string]*core.Item)
	var out []*core.Item
	for _, r := range results {
		w := 1.0
		if v, ok := s.Weights[r.Source]; ok {
			w = v
		}
		vote := s.Votes[r.Source]

		for _, it := range r.Items {
			contribution := it.Score * w
			if vote {
				contribution = w
			}

			old, ok := acc[it.ID]
			if !ok {
				merged := core.NewItem(it.ID)
				acc[it.ID] = merged
				out = append(out, merged)
				old = merged
			}
			old.Score += contribution
			old.Meta["score."+r.Source] = it.Score
			for k, v := range it.Meta {
				if _, exists := old.Meta[k]; !exists {
					old.Meta[k] = v
				}
			}
			if old.Product == nil && it.Product != nil {
				old.AttachProduct(it.Product)
			}
			mergeLabels(old, it)
		}
	}
	return out
}

func mergeLabels(dst, src *core.Item) {
	for k, v := range src.Labels {
		dst.PutLabel(k, v)
	}
}
