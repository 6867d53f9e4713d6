// Package config 加载服务配置。
//
// 配置分三层，后者覆盖前者：
//  1. 结构体默认值（defaultConfig）
//  2. YAML 配置文件（SHOPREC_CONFIG 指定，或按 DefaultConfigPaths 查找，可选）
//  3. 以 SHOPREC_ 为前缀的环境变量，双下划线表示层级：
//     SHOPREC_CATALOG__BASE_URL -> catalog.base_url
//
// 加载后用 go-playground/validator 做字段校验。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/store"
)

// EnvPrefix 是环境变量前缀。
const EnvPrefix = "SHOPREC_"

// ConfigPathEnvVar 指定配置文件路径的环境变量。
const ConfigPathEnvVar = "SHOPREC_CONFIG"

// DefaultConfigPaths 按优先级查找的配置文件路径，使用第一个存在的文件。
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/shoprec/config.yaml",
}

// Config 是服务的完整配置。
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Content   ContentConfig   `koanf:"content"`
	Recommend RecommendConfig `koanf:"recommend"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Store     store.Config    `koanf:"store"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// SecureHeaders 是否输出安全响应头（unrolled/secure）
	SecureHeaders bool `koanf:"secure_headers"`

	// CORSOrigins 允许跨域访问的来源，为空时不启用 CORS；环境变量中用逗号分隔
	CORSOrigins []string `koanf:"cors_origins" validate:"dive,url|eq=*"`
}

// CatalogConfig 是上游 Catalog 服务配置。
type CatalogConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// StaticToken 仅用于没有调用方凭证的后台调用（例如启动预热），不会替代请求方的 token
	StaticToken string `koanf:"static_token"`

	Breaker catalog.BreakerConfig `koanf:"breaker"`
}

// ContentConfig 是内容相似度索引配置。
type ContentConfig struct {
	// CatalogLimit 构建索引时拉取的商品数量上限，0 表示不限
	CatalogLimit int           `koanf:"catalog_limit" validate:"gte=0"`
	MaxAge       time.Duration `koanf:"max_age" validate:"gte=0"`
	BuildTimeout time.Duration `koanf:"build_timeout" validate:"gt=0"`
	Warmup       bool          `koanf:"warmup"`
}

// RecommendConfig 是融合推荐配置。
type RecommendConfig struct {
	TopN          int           `koanf:"top_n" validate:"gte=1,lte=100"`
	RecallTimeout time.Duration `koanf:"recall_timeout" validate:"gt=0"`
	Weights       WeightsConfig `koanf:"weights"`

	// IncludeCommunity 是否把其他用户的购买记录加入协同过滤矩阵（需要 Catalog 提供 /admin/users/purchases）
	IncludeCommunity bool `koanf:"include_community"`

	// PipelineFile 融合后处理链的 YAML 配置，为空时使用内置默认链
	PipelineFile string `koanf:"pipeline_file"`
}

type WeightsConfig struct {
	Collaborative float64 `koanf:"collaborative" validate:"gte=0"`
	Content       float64 `koanf:"content" validate:"gte=0"`
}

type AuthConfig struct {
	// RejectExpiredJWT 为 true 时，可解析为 JWT 且已过期的 token 直接返回 401
	RejectExpiredJWT bool `koanf:"reject_expired_jwt"`
}

type RateLimitConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Requests int           `koanf:"requests" validate:"gte=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

type LoggingConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Catalog: CatalogConfig{
			Timeout: 5 * time.Second,
			Breaker: catalog.DefaultBreakerConfig(),
		},
		Content: ContentConfig{
			BuildTimeout: 30 * time.Second,
		},
		Recommend: RecommendConfig{
			TopN:          5,
			RecallTimeout: 8 * time.Second,
			Weights: WeightsConfig{
				Collaborative: 1.5,
				Content:       1.0,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 100,
			Window:   time.Minute,
		},
		Store: store.Config{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			MaxSizeMB: 100,
		},
	}
}

// Load 按 默认值 -> 配置文件 -> 环境变量 的顺序加载并校验配置。
// path 非空时只使用该文件，且文件必须存在。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置字段。
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// Addr 返回 HTTP 监听地址。
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// sliceFields 是可以用逗号分隔字符串（环境变量）配置的列表字段。
var sliceFields = []string{"server.cors_origins"}

func processSliceFields(k *koanf.Koanf) error {
	for _, key := range sliceFields {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return err
		}
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc: SHOPREC_CATALOG__BASE_URL -> catalog.base_url。
// SHOPREC_CONFIG 只用于定位配置文件，不进入配置树。
func envTransformFunc(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}
