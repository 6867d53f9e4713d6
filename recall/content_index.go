package recall

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pkg/tfidf"
)

// IndexState 是内容相似度索引的生命周期状态。
type IndexState int32

const (
	IndexUninitialized IndexState = iota
	IndexBuilding
	IndexReady
)

func (s IndexState) String() string {
	switch s {
	case IndexBuilding:
		return "building"
	case IndexReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// ErrEmptyCatalog 表示构建索引时 Catalog 没有返回任何商品。
var ErrEmptyCatalog = errors.New("content index: empty catalog")

// ContentIndex 是进程级的商品文本相似度缓存。
//
// 状态机：Uninitialized → Building → Ready
//   - 第一次查询时惰性构建；并发的首次查询共享同一次构建（singleflight）
//   - 构建失败或目录为空时回到 Uninitialized，下一次查询重试
//   - 默认不自动刷新；Invalidate 丢弃模型，MaxAge > 0 时模型过期后下一次查询重建
//
// 模型只读，构建完成后可被任意数量的请求并发读取。
type ContentIndex struct {
	catalog      core.CatalogService
	catalogLimit int
	maxAge       time.Duration
	buildTimeout time.Duration
	stopWords    []string
	now          func() time.Time

	mu    sync.RWMutex
	state IndexState
	model *contentModel
	group singleflight.Group
}

type contentModel struct {
	products []core.Product
	index    map[string]int
	sim      *tfidf.Matrix
	builtAt  time.Time
}

// ContentIndexOption 配置 ContentIndex。
type ContentIndexOption func(*ContentIndex)

// WithCatalogLimit 限制构建时拉取的商品数量（0 表示全量）。
func WithCatalogLimit(limit int) ContentIndexOption {
	return func(c *ContentIndex) {
		c.catalogLimit = limit
	}
}

// WithMaxAge 设置模型最长存活时间（0 表示永不过期）。
func WithMaxAge(d time.Duration) ContentIndexOption {
	return func(c *ContentIndex) {
		c.maxAge = d
	}
}

// WithBuildTimeout 设置单次构建的超时时间。
func WithBuildTimeout(d time.Duration) ContentIndexOption {
	return func(c *ContentIndex) {
		c.buildTimeout = d
	}
}

// WithIndexStopWords 替换 TF-IDF 停用词表。
func WithIndexStopWords(words []string) ContentIndexOption {
	return func(c *ContentIndex) {
		c.stopWords = words
	}
}

// NewContentIndex 创建未初始化的索引。
func NewContentIndex(catalog core.CatalogService, opts ...ContentIndexOption) *ContentIndex {
	c := &ContentIndex{
		catalog:      catalog,
		buildTimeout: 30 * time.Second,
		stopWords:    tfidf.EnglishStopWords,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前状态。
func (c *ContentIndex) State() IndexState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Size 返回当前模型中的商品数量（未就绪时为 0）。
func (c *ContentIndex) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.model == nil {
		return 0
	}
	return len(c.model.products)
}

// Invalidate 丢弃当前模型，下一次查询重新构建。
func (c *ContentIndex) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == IndexReady {
		c.state = IndexUninitialized
	}
	c.model = nil
	metrics.ContentIndexSize.Set(0)
}

// Warmup 立即构建索引（启动预热）。
func (c *ContentIndex) Warmup(ctx context.Context) error {
	_, err := c.ensure(ctx)
	return err
}

// Neighbor 是一个相似商品及其相似度。
type Neighbor struct {
	Product    core.Product
	Similarity float64
}

// Similar 返回与参考商品最相似的 k 个商品，按相似度降序，同分按目录顺序。
// 参考商品自身永远不会出现在结果中；参考商品不在目录中时返回空结果。
func (c *ContentIndex) Similar(ctx context.Context, productID string, k int) ([]Neighbor, error) {
	if productID == "" || k <= 0 {
		return nil, nil
	}
	model, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	ref, ok := model.index[productID]
	if !ok {
		logging.Ctx(ctx).Warn().Str("product_id", productID).Msg("content index: product not found")
		return nil, nil
	}

	row := model.sim.Row(ref)
	candidates := make([]int, 0, len(row))
	for i := range row {
		if i == ref || model.products[i].ID == productID {
			continue
		}
		candidates = append(candidates, i)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return row[candidates[a]] > row[candidates[b]]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]Neighbor, 0, len(candidates))
	for _, i := range candidates {
		out = append(out, Neighbor{Product: model.products[i], Similarity: row[i]})
	}
	return out, nil
}

// Recommend 返回相似商品的完整记录。
func (c *ContentIndex) Recommend(ctx context.Context, productID string, k int) ([]core.Product, error) {
	neighbors, err := c.Similar(ctx, productID, k)
	if err != nil {
		return []core.Product{}, err
	}
	out := make([]core.Product, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, n.Product)
	}
	return out, nil
}

// ensure 返回就绪的模型，必要时构建。
func (c *ContentIndex) ensure(ctx context.Context) (*contentModel, error) {
	c.mu.RLock()
	model := c.model
	c.mu.RUnlock()
	if model != nil && !c.expired(model) {
		return model, nil
	}

	// 构建在后台继续，调用方只等到自己的 ctx 结束；完成的模型留给后续请求复用
	ch := c.group.DoChan("build", func() (any, error) {
		// 等待期间可能已经有其他调用完成了构建
		c.mu.Lock()
		if c.model != nil && !c.expired(c.model) {
			m := c.model
			c.mu.Unlock()
			return m, nil
		}
		c.state = IndexBuilding
		c.mu.Unlock()

		m, err := c.build(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.state = IndexUninitialized
			c.model = nil
			metrics.ContentIndexBuilds.WithLabelValues("failure").Inc()
			return nil, err
		}
		c.state = IndexReady
		c.model = m
		metrics.ContentIndexBuilds.WithLabelValues("success").Inc()
		metrics.ContentIndexSize.Set(float64(len(m.products)))
		return m, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*contentModel), nil
	}
}

func (c *ContentIndex) expired(m *contentModel) bool {
	return c.maxAge > 0 && c.now().Sub(m.builtAt) > c.maxAge
}

// build 拉取目录并拟合 TF-IDF 模型。
// 构建与发起它的请求解耦（不随请求取消），但保留 context 中的 token 与日志字段。
func (c *ContentIndex) build(ctx context.Context) (*contentModel, error) {
	buildCtx := context.WithoutCancel(ctx)
	if c.buildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(buildCtx, c.buildTimeout)
		defer cancel()
	}

	start := c.now()
	products, err := c.catalog.GetProducts(buildCtx, c.catalogLimit)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrEmptyCatalog
	}

	docs := make([]string, len(products))
	index := make(map[string]int, len(products))
	for i := range products {
		docs[i] = products[i].Document()
		if _, ok := index[products[i].ID]; !ok && products[i].ID != "" {
			index[products[i].ID] = i
		}
	}

	vectors, err := tfidf.NewVectorizer(tfidf.WithStopWords(c.stopWords)).FitTransform(docs)
	if err != nil {
		return nil, err
	}

	model := &contentModel{
		products: products,
		index:    index,
		sim:      tfidf.CosineMatrix(vectors),
		builtAt:  c.now(),
	}
	logging.Ctx(ctx).Info().
		Int("products", len(products)).
		Dur("elapsed", c.now().Sub(start)).
		Msg("content index built")
	return model, nil
}
