package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `json:"server"`
	Backend  BackendConfig  `json:"backend"`
	Database DatabaseConfig `json:"database"`
	Cache    CacheConfig    `json:"cache"`
	QuerySet QuerySetConfig `json:"query_set"`
	CORS     CORSConfig     `json:"cors"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `json:"host"`
	Port string `json:"port"`
}

// BackendConfig 文件夹后端配置
type BackendConfig struct {
	Driver     string `json:"driver"` // imap, memory
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Security   string `json:"security"` // SSL, TLS, STARTTLS, NONE
	Username   string `json:"username"`
	Password   string `json:"-"`
	AuthMethod string `json:"auth_method"` // login, plain
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path      string `json:"path"`
	UsePureGo bool   `json:"use_pure_go"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Driver string        `json:"driver"` // memory, sqlite, pebble, none
	Path   string        `json:"path"`
	TTL    time.Duration `json:"ttl"`
}

// Enabled 是否配置了缓存
func (c CacheConfig) Enabled() bool {
	return c.Driver != "none"
}

// QuerySetConfig 查询集配置
type QuerySetConfig struct {
	Preset      string   `json:"preset"`
	File        string   `json:"file"`
	ListQueries []string `json:"list_queries"`
	DataQueries []string `json:"data_queries"`
}

// CORSConfig CORS配置
type CORSConfig struct {
	Origins []string `json:"origins"`
}

// Load 加载配置
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "localhost"),
			Port: getEnv("PORT", "8080"),
		},
		Backend: BackendConfig{
			Driver:     getEnv("BACKEND_DRIVER", "imap"),
			Host:       getEnv("IMAP_HOST", "localhost"),
			Port:       parseInt(getEnv("IMAP_PORT", "993"), 993),
			Security:   getEnv("IMAP_SECURITY", "SSL"),
			Username:   getEnv("IMAP_USERNAME", ""),
			Password:   getEnv("IMAP_PASSWORD", ""),
			AuthMethod: getEnv("IMAP_AUTH_METHOD", "login"),
		},
		Database: DatabaseConfig{
			Path:      getEnv("DB_PATH", "./foldermeta.db"),
			UsePureGo: parseBool(getEnv("DB_PURE_GO", "false")),
		},
		Cache: CacheConfig{
			Driver: getEnv("CACHE_DRIVER", "sqlite"),
			Path:   getEnv("CACHE_PATH", "./cache"),
			TTL:    parseDurationDefault(getEnv("CACHE_TTL", "0s"), 0),
		},
		QuerySet: QuerySetConfig{
			Preset:      getEnv("QUERY_PRESET", "basic"),
			File:        getEnv("QUERY_SET_FILE", ""),
			ListQueries: parseStringSlice(getEnv("LIST_QUERIES", "")),
			DataQueries: parseStringSlice(getEnv("DATA_QUERIES", "")),
		},
		CORS: CORSConfig{
			Origins: parseStringSlice(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		},
	}
}

// Address 监听地址
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDurationDefault 解析时间间隔，失败时返回默认值
func parseDurationDefault(s string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return duration
}

// parseStringSlice 解析逗号分隔的字符串切片
func parseStringSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parseBool 解析布尔值
func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

// parseInt 解析整数
func parseInt(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
