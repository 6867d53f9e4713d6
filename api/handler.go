// Package api 提供推荐服务的 HTTP 接口。
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/logging"
)

const (
	msgUserIDRequired = "userId parameter is required"
	msgAuthRequired   = "Authorization header with Bearer token is required"
	msgTokenExpired   = "Bearer token has expired"
	msgInternal       = "Internal server error"
)

// Recommender 生成推荐结果；hybrid.Recommender 实现了此接口。
type Recommender interface {
	Recommend(ctx context.Context, userID string) []core.Product
}

// Handler 处理推荐请求。
type Handler struct {
	rec Recommender

	// rejectExpired 为 true 时拒绝已过期的 JWT
	rejectExpired bool
	now           func() time.Time
}

// HandlerOption 配置 Handler。
type HandlerOption func(*Handler)

// WithRejectExpiredJWT 开启过期 JWT 检查。
func WithRejectExpiredJWT(enabled bool) HandlerOption {
	return func(h *Handler) {
		h.rejectExpired = enabled
	}
}

func NewHandler(rec Recommender, opts ...HandlerOption) *Handler {
	h := &Handler{rec: rec, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
}

// Recommendations 处理 GET /recommendations?userId=<id>。
//
//   - 缺少 userId -> 400，不访问上游
//   - 缺少或格式错误的 Bearer token -> 401
//   - 成功 -> 200，返回最多 top_n 个商品记录（Catalog 原样 JSON）
//   - 其他内部错误 -> 500
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			logging.Ctx(ctx).Error().Str("panic", fmt.Sprint(rec)).Msg("recommendation handler panicked")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
		}
	}()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgUserIDRequired})
		return
	}

	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgAuthRequired})
		return
	}
	if h.rejectExpired && tokenExpired(token, h.now()) {
		logging.Ctx(ctx).Info().Str("user_id", userID).Msg("rejected expired token")
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: msgTokenExpired})
		return
	}

	products := h.rec.Recommend(catalog.ContextWithToken(ctx, token), userID)
	if products == nil {
		products = []core.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// Healthz 处理 GET /healthz。
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON 先完整编码再写出，编码失败时返回 500。
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + msgInternal + `"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
