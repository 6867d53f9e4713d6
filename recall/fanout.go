package recall

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流与可插拔的合并策略。
//
// 各召回源的结果按 Sources 顺序交给 MergeStrategy，与完成先后无关，
// 因此相同输入总是得到相同输出。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy MergeStrategy // 为空时使用 FirstMergeStrategy
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	n.preloadPurchases(ctx, rctx)

	results := make([]SourceResult, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		eg.Go(func() error {
			results[i] = n.run(egCtx, rctx, src, i)
			return nil
		})
	}
	// 召回源的错误已记录在 SourceResult 中，不会中断其他召回源
	_ = eg.Wait()

	strategy := n.MergeStrategy
	if strategy == nil {
		strategy = &FirstMergeStrategy{}
	}
	return strategy.Merge(results), nil
}

// preloadPurchases 在并发前为需要购买记录的召回源统一拉取一次，
// 使各召回源看到同一份购买记录。拉取失败时由召回源各自重试。
func (n *Fanout) preloadPurchases(ctx context.Context, rctx *core.RecommendContext) {
	if rctx == nil {
		return
	}
	for _, src := range n.Sources {
		ps, ok := src.(PurchaseSource)
		if !ok || ps.PurchaseCatalog() == nil {
			continue
		}
		if _, err := loadPurchases(ctx, ps.PurchaseCatalog(), rctx); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", rctx.UserID).Msg("preload purchases failed")
		}
		return
	}
}

// run 执行单个召回源：超时控制、panic 隔离、打标签与指标。
func (n *Fanout) run(ctx context.Context, rctx *core.RecommendContext, src Source, priority int) (res SourceResult) {
	res.Source = src.Name()
	res.Priority = priority

	defer func() {
		if r := recover(); r != nil {
			res.Items = nil
			res.Err = fmt.Errorf("recall source %s panicked: %v", src.Name(), r)
		}
		if res.Err != nil {
			logging.Ctx(ctx).Warn().Err(res.Err).Str("source", res.Source).Msg("recall source failed")
		}
		metrics.RecallItems.WithLabelValues(res.Source).Observe(float64(len(res.Items)))
	}()

	recallCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	items, err := src.Recall(recallCtx, rctx)
	if err == nil && n.Timeout > 0 {
		// 超时后才返回的结果视为无数据
		err = recallCtx.Err()
	}
	if err != nil {
		res.Err = err
		return res
	}

	// 记录召回来源 label，方便 explain / 观测
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		it.PutLabel("recall_source", utils.Label{Value: res.Source, Source: "recall"})
		it.PutLabel("recall_priority", utils.Label{Value: strconv.Itoa(priority), Source: "recall"})
		out = append(out, it)
	}
	res.Items = out
	return res
}
