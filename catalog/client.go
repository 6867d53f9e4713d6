// Package catalog 实现商品目录服务的 HTTP 客户端（core.CatalogService）。
//
// 每个请求都携带：
//   - Authorization: Bearer <token>：优先使用 context 中调用方的 token（ContextWithToken），
//     不存在时使用 WithStaticToken 配置的静态 token（仅用于后台预热等无调用方的场景）
//   - x-api-key: <key>：服务间共享密钥
//
// 所有调用都经过熔断器（sony/gobreaker），并记录 Prometheus 指标。
// 失败时返回空切片 + *core.DomainError（Module="catalog"），调用方按"无数据"降级。
package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/metrics"
)

const (
	OpGetPurchases          = "get_purchases"
	OpGetProductsByCategory = "get_products_by_category"
	OpGetProductsBatch      = "get_products_batch"
	OpGetProducts           = "get_products"
	OpGetPopularProducts    = "get_popular_products"
	OpGetInteractions       = "get_interactions"
)

// 响应体上限，防止异常上游把内存打满
const maxResponseBytes = 32 << 20

// StatusError 表示上游返回了非 2xx 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog returned status %d: %s", e.StatusCode, e.Body)
}

// Client 是 Catalog HTTP 客户端。
type Client struct {
	baseURL     string
	apiKey      string
	staticToken string
	timeout     time.Duration
	httpClient  *http.Client
	breakerCfg  BreakerConfig
	breaker     *gobreaker.CircuitBreaker[[]byte]
}

// ClientOption 配置 Client。
type ClientOption func(*Client)

// WithAPIKey 设置 x-api-key 请求头。
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithStaticToken 设置 context 中没有调用方 token 时使用的 bearer token。
func WithStaticToken(token string) ClientOption {
	return func(c *Client) {
		c.staticToken = token
	}
}

// WithTimeout 设置单次请求超时。
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient 替换底层 http.Client（测试或自定义 Transport 时使用）。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBreaker 设置熔断配置。
func WithBreaker(cfg BreakerConfig) ClientOption {
	return func(c *Client) {
		c.breakerCfg = cfg
	}
}

// NewClient 创建 Catalog 客户端。
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			fmt.Sprintf("catalog: invalid base url %q", baseURL))
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    10 * time.Second,
		breakerCfg: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if !c.breakerCfg.Disabled {
		c.breaker = newBreaker("catalog", c.breakerCfg)
	}
	return c, nil
}

var (
	_ core.CatalogService    = (*Client)(nil)
	_ core.InteractionSource = (*Client)(nil)
)

// GetPurchases 获取用户的购买记录：GET /user/{userId}/purchased-products
func (c *Client) GetPurchases(ctx context.Context, userID string) ([]core.Purchase, error) {
	if userID == "" {
		return []core.Purchase{}, nil
	}
	path := "/user/" + url.PathEscape(userID) + "/purchased-products"
	body, err := c.do(ctx, OpGetPurchases, http.MethodGet, path, nil, nil)
	if err != nil {
		return []core.Purchase{}, err
	}
	var purchases []core.Purchase
	if err := json.Unmarshal(body, &purchases); err != nil {
		return []core.Purchase{}, c.decodeError(OpGetPurchases, err)
	}
	if purchases == nil {
		purchases = []core.Purchase{}
	}
	return purchases, nil
}

// GetProductsByCategory 获取类目下的商品：GET /productsByCategory?category=a,b
func (c *Client) GetProductsByCategory(ctx context.Context, categoryIDs []string) ([]core.Product, error) {
	ids := compact(categoryIDs)
	if len(ids) == 0 {
		return []core.Product{}, nil
	}
	query := url.Values{"category": {strings.Join(ids, ",")}}
	return c.getProducts(ctx, OpGetProductsByCategory, http.MethodGet, "/productsByCategory", query, nil)
}

// GetProductsBatch 按 ID 批量解析商品：POST /products/batch {"ids": [...]}
func (c *Client) GetProductsBatch(ctx context.Context, productIDs []string) ([]core.Product, error) {
	ids := compact(productIDs)
	if len(ids) == 0 {
		return []core.Product{}, nil
	}
	payload, err := json.Marshal(map[string][]string{"ids": ids})
	if err != nil {
		return []core.Product{}, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
			"catalog: encode batch request", err)
	}
	return c.getProducts(ctx, OpGetProductsBatch, http.MethodPost, "/products/batch", nil, payload)
}

// GetProducts 获取商品目录：GET /products[?limit=n]
func (c *Client) GetProducts(ctx context.Context, limit int) ([]core.Product, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	return c.getProducts(ctx, OpGetProducts, http.MethodGet, "/products", query, nil)
}

// GetPopularProducts 获取热门商品：GET /products?sort=-popularity&limit=n
func (c *Client) GetPopularProducts(ctx context.Context, limit int) ([]core.Product, error) {
	if limit <= 0 {
		return []core.Product{}, nil
	}
	query := url.Values{
		"sort":  {"-popularity"},
		"limit": {strconv.Itoa(limit)},
	}
	return c.getProducts(ctx, OpGetPopularProducts, http.MethodGet, "/products", query, nil)
}

// GetInteractions 获取全量用户-商品交互矩阵：GET /admin/users/purchases
// 响应格式：{"<userId>": {"<productId>": <count>, ...}, ...}
func (c *Client) GetInteractions(ctx context.Context) (map[string]map[string]float64, error) {
	body, err := c.do(ctx, OpGetInteractions, http.MethodGet, "/admin/users/purchases", nil, nil)
	if err != nil {
		return map[string]map[string]float64{}, err
	}
	var matrix map[string]map[string]float64
	if err := json.Unmarshal(body, &matrix); err != nil {
		return map[string]map[string]float64{}, c.decodeError(OpGetInteractions, err)
	}
	if matrix == nil {
		matrix = map[string]map[string]float64{}
	}
	return matrix, nil
}

func (c *Client) getProducts(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]core.Product, error) {
	body, err := c.do(ctx, op, method, path, query, payload)
	if err != nil {
		return []core.Product{}, err
	}
	var products []core.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return []core.Product{}, c.decodeError(op, err)
	}
	if products == nil {
		products = []core.Product{}
	}
	return products, nil
}

// do 发起请求并返回响应体；经过熔断器并记录指标。
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, payload []byte) ([]byte, error) {
	start := time.Now()

	call := func() ([]byte, error) {
		return c.send(ctx, method, path, query, payload)
	}

	var (
		body []byte
		err  error
	)
	if c.breaker != nil {
		body, err = c.breaker.Execute(call)
	} else {
		body, err = call()
	}

	elapsed := time.Since(start)
	switch {
	case err == nil:
		metrics.RecordCatalogRequest(op, "success", elapsed)
		return body, nil
	case isRejected(err):
		metrics.RecordCatalogRequest(op, "rejected", elapsed)
	default:
		metrics.RecordCatalogRequest(op, "failure", elapsed)
	}

	logging.Ctx(ctx).Warn().
		Err(err).
		Str("operation", op).
		Dur("elapsed", elapsed).
		Msg("catalog call failed")

	return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable,
		fmt.Sprintf("catalog: %s failed", op), err)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addAuth(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func (c *Client) addAuth(ctx context.Context, req *http.Request) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		token = c.staticToken
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

func (c *Client) decodeError(op string, err error) error {
	metrics.CatalogDecodeErrorsTotal.WithLabelValues(op).Inc()
	return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput,
		fmt.Sprintf("catalog: %s returned malformed body", op), err)
}

// compact 去掉空 ID 并去重，保持原顺序。
func compact(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
