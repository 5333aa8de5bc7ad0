package providers

import (
	"context"
	"errors"
	"log"
	"time"
)

// RetryConfig 重试配置
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts"`
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor"`
	Jitter          bool          `json:"jitter"`
	RetryableErrors []ErrorType   `json:"retryable_errors"`
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     200 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		RetryableErrors: []ErrorType{
			ErrorTypeConnection,
			ErrorTypeTimeout,
		},
	}
}

// RetryHandler 重试处理器
type RetryHandler struct {
	config *RetryConfig
}

// NewRetryHandler 创建重试处理器
func NewRetryHandler(config *RetryConfig) *RetryHandler {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryHandler{config: config}
}

// ShouldRetry 判断是否应该重试，attempt从0开始
func (rh *RetryHandler) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt+1 >= rh.config.MaxAttempts {
		return false
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) || !providerErr.Retryable {
		return false
	}

	for _, retryableType := range rh.config.RetryableErrors {
		if providerErr.Type == retryableType {
			return true
		}
	}
	return false
}

// CalculateDelay 计算重试延迟
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	delay := rh.config.BaseDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rh.config.BackoffFactor)
	}

	if delay > rh.config.MaxDelay {
		delay = rh.config.MaxDelay
	}

	// 10%的抖动
	if rh.config.Jitter {
		jitter := time.Duration(float64(delay) * 0.1)
		randomFactor := float64(time.Now().UnixNano()%1000) / 1000.0
		delay += time.Duration(float64(jitter) * (2*randomFactor - 1))
	}

	return delay
}

// ExecuteWithRetry 执行带重试的操作
func (rh *RetryHandler) ExecuteWithRetry(ctx context.Context, op string, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < rh.config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Printf("Operation %s succeeded after %d attempts", op, attempt+1)
			}
			return nil
		}
		lastErr = err

		if !rh.ShouldRetry(err, attempt) {
			break
		}

		delay := rh.CalculateDelay(attempt)
		log.Printf("Operation %s failed (attempt %d/%d), retrying in %v: %v", op, attempt+1, rh.config.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
