package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// UserBlockFilter 是用户拉黑过滤器，过滤掉用户明确表示不感兴趣的商品。
type UserBlockFilter struct {
	// Store 用于从存储中读取用户拉黑列表
	Store UserBlockStore

	// KeyPrefix 是 Store 中的 key 前缀，实际 key 为 {KeyPrefix}:{UserID}
	KeyPrefix string
}

// UserBlockStore 是用户拉黑存储接口。
type UserBlockStore interface {
	// GetUserBlocks 获取用户拉黑的商品 ID 列表
	GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]string, error)
}

// NewUserBlockFilter 创建一个用户拉黑过滤器。
func NewUserBlockFilter(storeAdapter *StoreAdapter, keyPrefix string) *UserBlockFilter {
	var store UserBlockStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &UserBlockFilter{
		Store:     store,
		KeyPrefix: keyPrefix,
	}
}

func (f *UserBlockFilter) Name() string {
	return "filter.user_block"
}

func (f *UserBlockFilter) keyPrefix() string {
	if f.KeyPrefix == "" {
		return "user:block"
	}
	return f.KeyPrefix
}

// Prepare 读取当前用户的拉黑列表；用户没有拉黑记录时不过滤任何商品。
func (f *UserBlockFilter) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	if f.Store == nil || rctx == nil || rctx.UserID == "" {
		return newIDSet(f.Name(), nil), nil
	}
	blocked, err := f.Store.GetUserBlocks(ctx, rctx.UserID, f.keyPrefix())
	if err != nil {
		if core.IsStoreNotFound(err) {
			return newIDSet(f.Name(), nil), nil
		}
		return nil, err
	}
	return newIDSet(f.Name(), blocked), nil
}

func (f *UserBlockFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	bound, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bound.ShouldFilter(ctx, rctx, item)
}
