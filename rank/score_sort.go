// Package rank 实现排序阶段。
package rank

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// ScoreSortNode 按 Item.Score 降序稳定排序：同分时保持融合累加器中的首次出现顺序。
type ScoreSortNode struct{}

func (n *ScoreSortNode) Name() string {
	return "rank.score"
}

func (n *ScoreSortNode) Kind() pipeline.Kind {
	return pipeline.KindRank
}

func (n *ScoreSortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	for _, it := range out {
		it.PutLabel("rank_model", utils.Label{Value: "score", Source: "rank"})
	}
	return out, nil
}
