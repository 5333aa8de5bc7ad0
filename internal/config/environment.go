package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Environment 运行环境配置
type Environment struct {
	// 基础配置
	Mode     string // development, production, test
	Debug    bool
	LogLevel string

	// 后端配置
	UseMemoryBackend bool

	// 性能配置
	RequestTimeout time.Duration

	// 功能开关
	EnableMetrics  bool
	SyncOnStartup  bool
	HistoryEnabled bool
}

// Env 全局环境配置实例
var Env *Environment

func init() {
	Env = LoadEnvironment()
}

// LoadEnvironment 加载环境配置
func LoadEnvironment() *Environment {
	env := &Environment{
		Mode:           "development",
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
		EnableMetrics:  true,
		SyncOnStartup:  true,
		HistoryEnabled: true,
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		env.Mode = mode
	}

	if mode := os.Getenv("GO_ENV"); mode != "" {
		env.Mode = mode
	}

	// 根据模式调整默认值，显式环境变量优先
	switch env.Mode {
	case "test":
		env.adjustForTestMode()
	case "production", "release":
		env.adjustForProductionMode()
	default:
		env.adjustForDevelopmentMode()
	}

	if debug := os.Getenv("DEBUG"); debug != "" {
		env.Debug = strings.ToLower(debug) == "true"
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		env.LogLevel = logLevel
	}

	if driver := os.Getenv("BACKEND_DRIVER"); driver != "" {
		env.UseMemoryBackend = driver == "memory"
	}

	if timeout := os.Getenv("REQUEST_TIMEOUT"); timeout != "" {
		if val, err := time.ParseDuration(timeout); err == nil {
			env.RequestTimeout = val
		}
	}

	if enableMetrics := os.Getenv("ENABLE_METRICS"); enableMetrics != "" {
		env.EnableMetrics = strings.ToLower(enableMetrics) == "true"
	}

	if syncOnStartup := os.Getenv("SYNC_ON_STARTUP"); syncOnStartup != "" {
		if val, err := strconv.ParseBool(syncOnStartup); err == nil {
			env.SyncOnStartup = val
		}
	}

	if history := os.Getenv("ENABLE_HISTORY"); history != "" {
		env.HistoryEnabled = strings.ToLower(history) == "true"
	}

	return env
}

// IsTestMode 检查是否为测试模式
func (e *Environment) IsTestMode() bool {
	return e.Mode == "test"
}

// IsProductionMode 检查是否为生产模式
func (e *Environment) IsProductionMode() bool {
	return e.Mode == "production" || e.Mode == "release"
}

// IsDevelopmentMode 检查是否为开发模式
func (e *Environment) IsDevelopmentMode() bool {
	return !e.IsTestMode() && !e.IsProductionMode()
}

func (e *Environment) adjustForTestMode() {
	e.Debug = true
	e.LogLevel = "debug"
	e.UseMemoryBackend = true
	e.EnableMetrics = false
	e.SyncOnStartup = false
	e.RequestTimeout = 5 * time.Second
}

func (e *Environment) adjustForProductionMode() {
	e.Debug = false
	e.LogLevel = "warn"
	e.EnableMetrics = true
	e.RequestTimeout = 30 * time.Second
}

func (e *Environment) adjustForDevelopmentMode() {
	e.Debug = true
	e.LogLevel = "debug"
	e.RequestTimeout = 10 * time.Second
}

// GinMode 根据运行模式选择gin模式，生产环境开启DEBUG时仍使用调试模式
func (e *Environment) GinMode() string {
	switch {
	case e.IsTestMode():
		return gin.TestMode
	case e.Debug:
		return gin.DebugMode
	default:
		return gin.ReleaseMode
	}
}

// GetFeatureFlags 获取功能开关
func (e *Environment) GetFeatureFlags() map[string]bool {
	return map[string]bool{
		"metrics":         e.EnableMetrics,
		"sync_on_startup": e.SyncOnStartup,
		"history":         e.HistoryEnabled,
		"memory_backend":  e.UseMemoryBackend,
	}
}

// Validate 验证配置
func (e *Environment) Validate() error {
	if e.Mode == "" {
		e.Mode = "development"
	}

	if e.RequestTimeout <= 0 {
		e.RequestTimeout = 30 * time.Second
	}

	return nil
}

// String 返回配置的字符串表示
func (e *Environment) String() string {
	return fmt.Sprintf("Environment{Mode: %s, Debug: %t, UseMemoryBackend: %t, EnableMetrics: %t, SyncOnStartup: %t}",
		e.Mode, e.Debug, e.UseMemoryBackend, e.EnableMetrics, e.SyncOnStartup)
}
