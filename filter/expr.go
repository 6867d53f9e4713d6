package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/dsl"
)

// ExprFilter 是基于 CEL 表达式的规则过滤器。
//
// 表达式为 true 的商品会被过滤；Invert 为 true 时反过来，只保留表达式为 true 的商品。
// 例如：
//   - `item.meta.popularity < 1.0` → 过滤零热度商品
//   - `item.meta.category == "gift-cards"` → 过滤礼品卡类目
type ExprFilter struct {
	program *dsl.Program
	invert  bool
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string, invert bool) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p, invert: invert}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	ok, err := f.program.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return ok != f.invert, nil
}
