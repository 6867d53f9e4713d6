// Package hybrid 把协同过滤与内容相似两路召回融合成最终推荐结果。
//
// 一次推荐的流程：
//
//  1. 拉取一次用户购买记录，写入 RecommendContext，下游召回源复用
//  2. 没有购买记录 -> 直接走热度兜底
//  3. recall.Fanout 并发执行协同过滤与内容召回，按召回源顺序加权融合
//     （协同过滤分数 ×1.5，内容召回每命中一次 +1.0）
//  4. 融合结果为空 -> 热度兜底
//  5. 后处理 Pipeline：排序 -> 截断 -> 批量解析商品 -> 过滤已购 -> 截断
//
// 任何错误或 panic 都在 Recommender 边界被吸收并转为热度兜底；兜底也失败时返回空列表。
// Recommend 从不返回错误。
package hybrid

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/postprocess"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

const (
	DefaultTopN                = 5
	DefaultCollaborativeWeight = 1.5
	DefaultContentWeight       = 1.0
	DefaultRecallTimeout       = 8 * time.Second

	// Scene 写入 RecommendContext.Scene
	Scene = "recommendations"
)

// 兜底原因，同时作为 metrics.FallbacksTotal 的 reason 标签
const (
	ReasonNoPurchases   = "no_purchases"
	ReasonEmptyMerge    = "empty_merge"
	ReasonPipelineError = "pipeline_error"
	ReasonPanic         = "panic"
)

// Recommender 是融合推荐器，可被多个请求并发使用。
type Recommender struct {
	catalog core.CatalogService

	topN          int
	recallTimeout time.Duration
	cfWeight      float64
	contentWeight float64
	community     bool

	sources  []recall.Source
	fanout   *recall.Fanout
	pipeline *pipeline.Pipeline
	fallback recall.Source

	// guard 在任意 Pipeline 之后再执行一次，保证结果已解析、不含已购商品且不超过 top_n
	guard *pipeline.Pipeline
}

// Option 配置 Recommender。
type Option func(*Recommender)

// WithTopN 设置返回数量。
func WithTopN(n int) Option {
	return func(r *Recommender) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithWeights 设置协同过滤分数权重与内容召回的单次命中分。
func WithWeights(collaborative, content float64) Option {
	return func(r *Recommender) {
		r.cfWeight = collaborative
		r.contentWeight = content
	}
}

// WithRecallTimeout 设置单个召回源的超时时间。
func WithRecallTimeout(d time.Duration) Option {
	return func(r *Recommender) {
		if d > 0 {
			r.recallTimeout = d
		}
	}
}

// WithCommunity 是否在协同过滤矩阵中加入其他用户的购买记录。
func WithCommunity(enabled bool) Option {
	return func(r *Recommender) {
		r.community = enabled
	}
}

// WithPipeline 替换融合之后的后处理 Pipeline。
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(r *Recommender) {
		if p != nil {
			r.pipeline = p
		}
	}
}

// WithSources 替换默认的召回源（协同过滤 + 内容相似）。
func WithSources(sources ...recall.Source) Option {
	return func(r *Recommender) {
		r.sources = sources
	}
}

// New 创建融合推荐器。index 为空时不启用内容召回。
func New(catalog core.CatalogService, index *recall.ContentIndex, opts ...Option) *Recommender {
	r := &Recommender{
		catalog:       catalog,
		topN:          DefaultTopN,
		recallTimeout: DefaultRecallTimeout,
		cfWeight:      DefaultCollaborativeWeight,
		contentWeight: DefaultContentWeight,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.sources == nil {
		r.sources = []recall.Source{
			&recall.UserBasedCF{Catalog: catalog, IncludeCommunity: r.community},
		}
		if index != nil {
			r.sources = append(r.sources, &recall.ContentRecall{Index: index, Catalog: catalog})
		}
	}

	r.fanout = &recall.Fanout{
		Sources: r.sources,
		Timeout: r.recallTimeout,
		MergeStrategy: &recall.WeightedMergeStrategy{
			Weights: map[string]float64{
				recall.SourceCF:      r.cfWeight,
				recall.SourceContent: r.contentWeight,
			},
			Votes: map[string]bool{recall.SourceContent: true},
		},
	}
	if r.pipeline == nil {
		r.pipeline = DefaultPipeline(catalog)
	}
	r.guard = &pipeline.Pipeline{
		Name: "guard",
		Nodes: []pipeline.Node{
			&postprocess.ResolveNode{Catalog: catalog, SkipResolved: true},
			&filter.FilterNode{Filters: []filter.Filter{&filter.PurchasedFilter{}}},
			&rerank.TopNNode{},
		},
	}
	r.fallback = &recall.Hot{Catalog: catalog}
	return r
}

// DefaultPipeline 返回内置的后处理链，与 pipeline.DefaultConfig 描述的节点一致。
func DefaultPipeline(catalog core.CatalogService) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "default",
		Nodes: []pipeline.Node{
			&rank.ScoreSortNode{},
			&rerank.TopNNode{},
			&postprocess.ResolveNode{Catalog: catalog},
			&filter.FilterNode{Filters: []filter.Filter{&filter.PurchasedFilter{}}},
			&rerank.TopNNode{},
		},
	}
}

// TopN 返回配置的推荐数量。
func (r *Recommender) TopN() int {
	return r.topN
}

// Recommend 为用户生成推荐商品列表（最多 top_n 个）。
// 结果是 Catalog 返回的完整商品记录；从不返回 nil。
func (r *Recommender) Recommend(ctx context.Context, userID string) (out []core.Product) {
	rctx := &core.RecommendContext{
		UserID: userID,
		Scene:  Scene,
		Params: map[string]any{"top_n": r.topN},
	}
	log := logging.Ctx(ctx).With().Str("user_id", userID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("recommendation panicked, using fallback")
			out = r.runFallback(ctx, rctx, ReasonPanic)
		}
	}()

	start := time.Now()
	purchases, err := r.catalog.GetPurchases(ctx, userID)
	if err != nil {
		// 无法获取购买记录视为没有购买记录
		log.Warn().Err(err).Msg("purchase history unavailable")
	}
	rctx.SetPurchases(purchases)
	if len(rctx.Purchases) == 0 {
		return r.runFallback(ctx, rctx, ReasonNoPurchases)
	}

	items, err := r.fanout.Process(ctx, rctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("recall failed, using fallback")
		return r.runFallback(ctx, rctx, ReasonPipelineError)
	}
	if len(items) == 0 {
		return r.runFallback(ctx, rctx, ReasonEmptyMerge)
	}

	items, err = r.pipeline.Run(ctx, rctx, items)
	if err == nil {
		items, err = r.guard.Run(ctx, rctx, items)
	}
	if err != nil {
		log.Warn().Err(err).Msg("post-merge pipeline failed, using fallback")
		return r.runFallback(ctx, rctx, ReasonPipelineError)
	}

	out = toProducts(items)
	log.Info().
		Int("purchases", len(rctx.Purchases)).
		Int("results", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("recommendation served")
	return out
}

// runFallback 执行热度兜底；兜底自身失败或 panic 时返回空列表。
func (r *Recommender) runFallback(ctx context.Context, rctx *core.RecommendContext, reason string) (out []core.Product) {
	metrics.FallbacksTotal.WithLabelValues(reason).Inc()
	log := logging.Ctx(ctx).With().Str("user_id", rctx.UserID).Str("reason", reason).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("panic", fmt.Sprint(rec)).Msg("fallback panicked")
			out = []core.Product{}
		}
	}()

	items, err := r.fallback.Recall(ctx, rctx)
	if err != nil {
		log.Warn().Err(err).Msg("fallback unavailable, returning empty list")
		return []core.Product{}
	}
	out = toProducts(items)
	log.Info().Int("results", len(out)).Msg("served popularity fallback")
	return out
}

func toProducts(items []*core.Item) []core.Product {
	out := make([]core.Product, 0, len(items))
	for _, it := range items {
		if it == nil || it.Product == nil {
			continue
		}
		out = append(out, *it.Product)
	}
	return out
}
