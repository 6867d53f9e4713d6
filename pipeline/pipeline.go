package pipeline

import (
	"context"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链，按顺序执行；
// 任一 Node 返回错误即中止，由调用方决定降级策略。
type Pipeline struct {
	Name  string
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			logging.Ctx(ctx).Debug().
				Err(err).
				Str("pipeline", p.Name).
				Str("node", node.Name()).
				Msg("pipeline node failed")
			return nil, err
		}
		logging.Ctx(ctx).Debug().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Dur("elapsed", time.Since(start)).
			Msg("pipeline node done")
		cur = next
	}
	return cur, nil
}
