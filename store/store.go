// Package store 提供 core.Store 的实现：进程内 MemoryStore 与 RedisStore。
//
// 服务使用 Store 保存运营黑名单与用户拉黑列表（JSON 数组），由 filter.StoreAdapter 读取。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewMemoryStore()
package store

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// Config 描述 Store 后端。
type Config struct {
	// Backend 取值 memory / redis
	Backend  string `koanf:"backend" validate:"oneof=memory redis"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

// Open 按配置创建 Store。
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, RedisOptions{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	default:
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			fmt.Sprintf("store: unknown backend %q", cfg.Backend))
	}
}
