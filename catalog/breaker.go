package catalog

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/shoprec/logging"
	"github.com/rushteam/shoprec/metrics"
)

// BreakerConfig 是熔断器配置。
type BreakerConfig struct {
	// Disabled 为 true 时不启用熔断
	Disabled bool `koanf:"disabled"`

	// MaxRequests 半开状态允许通过的请求数
	MaxRequests uint32 `koanf:"max_requests" validate:"gte=1"`

	// Interval 关闭状态下计数清零的周期
	Interval time.Duration `koanf:"interval"`

	// Timeout 打开状态持续多久后进入半开
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// MinRequests 触发熔断所需的最少请求数
	MinRequests uint32 `koanf:"min_requests"`

	// FailureRatio 失败率阈值（0-1）
	FailureRatio float64 `koanf:"failure_ratio" validate:"gt=0,lte=1"`
}

// DefaultBreakerConfig 返回默认熔断配置：
// 1 分钟窗口内至少 10 次请求且失败率 >= 60% 时打开，30 秒后半开探测。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

func newBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[[]byte] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
		// 4xx（例如调用方 token 失效）和调用方主动取消不是上游故障，不计入失败
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return false
		},
	})
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func isRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
