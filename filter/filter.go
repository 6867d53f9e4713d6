// Package filter 实现推荐结果的过滤阶段：已购过滤、黑名单、用户拉黑与规则表达式过滤。
package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 是可选接口：需要读取外部数据（黑名单等）的过滤器在每次 Process 前
// 被调用一次，返回绑定了本次请求数据的 Filter，避免逐个 Item 访问存储。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// idSet 是按 ID 过滤的通用实现。
type idSet struct {
	name string
	ids  map[string]struct{}
}

func newIDSet(name string, ids []string) *idSet {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &idSet{name: name, ids: set}
}

func (s *idSet) Name() string { return s.name }

func (s *idSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, ok := s.ids[item.ID]
	return ok, nil
}
