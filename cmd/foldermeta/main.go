package main

import (
	"context"
	"log"

	"foldermeta/internal/cache"
	"foldermeta/internal/config"
	"foldermeta/internal/database"
	"foldermeta/internal/handlers"
	"foldermeta/internal/middleware"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"
	"foldermeta/internal/services"
	"foldermeta/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	// 加载环境变量 - 优先加载.env.local，然后是.env
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: No .env file found, using system environment variables")
		} else {
			log.Println("Loaded configuration from .env file")
		}
	} else {
		log.Println("Loaded configuration from .env.local file")
	}

	cfg := config.Load()
	if err := config.Env.Validate(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	log.Printf("Starting with %s", config.Env)
	log.Printf("Feature flags: %v", config.Env.GetFeatureFlags())

	db, err := database.InitializeWithOptions(database.Options{
		Path:      cfg.Database.Path,
		UsePureGo: cfg.Database.UsePureGo,
		LogLevel:  database.ParseLogLevel(config.Env.LogLevel),
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close(db)

	store, err := openCache(cfg, db)
	if err != nil {
		log.Fatalf("Failed to open cache: %v", err)
	}
	defer cache.Close(store)

	qsConfig, err := cfg.QuerySet.Resolve()
	if err != nil {
		log.Fatalf("Failed to load query set configuration: %v", err)
	}
	querySet, err := storage.NewQuerySet(qsConfig, store != nil)
	if err != nil {
		log.Fatalf("Failed to build query set: %v", err)
	}

	backend, err := newBackend(cfg)
	if err != nil {
		log.Fatalf("Invalid backend configuration: %v", err)
	}
	defer backend.Close()

	var (
		recorder       query.HistoryRecorder
		historyService services.HistoryService
	)
	if config.Env.HistoryEnabled {
		dbHistory := services.NewDatabaseHistoryService(db)
		recorder = dbHistory
		historyService = dbHistory
	}

	folderStorage := storage.New(backend, store, querySet, recorder)

	if config.Env.SyncOnStartup {
		ctx, cancel := context.WithTimeout(context.Background(), config.Env.RequestTimeout)
		if err := folderStorage.Synchronize(ctx); err != nil {
			log.Printf("Warning: initial folder synchronization failed: %v", err)
		}
		cancel()
	}

	gin.SetMode(config.Env.GinMode())

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.ActingUser(func() string {
		list, err := folderStorage.List(context.Background())
		if err != nil {
			return cfg.Backend.Username
		}
		return list.User()
	}))

	if config.Env.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	h := handlers.New(cfg, folderStorage, historyService)
	h.RegisterRoutes(router)

	addr := cfg.Server.Address()
	log.Printf("Folder metadata server starting on %s (queries: list=%v data=%v)", addr, querySet.ListTags(), querySet.DataTags())

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openCache 按配置打开缓存，driver为none时返回nil
func openCache(cfg *config.Config, db *gorm.DB) (cache.Store, error) {
	if !cfg.Cache.Enabled() {
		log.Println("Cache disabled, using live queries only")
		return nil, nil
	}
	return cache.Open(cache.Options{
		Driver: cfg.Cache.Driver,
		Path:   cfg.Cache.Path,
		TTL:    cfg.Cache.TTL,
	}, db)
}

// newBackend 按配置创建文件夹后端
func newBackend(cfg *config.Config) (providers.Backend, error) {
	if cfg.Backend.Driver == "memory" || config.Env.UseMemoryBackend {
		log.Printf("Using in-memory folder backend for %q", cfg.Backend.Username)
		return providers.NewMemoryBackend(cfg.Backend.Username), nil
	}

	imapConfig := providers.IMAPConfig{
		Host:       cfg.Backend.Host,
		Port:       cfg.Backend.Port,
		Security:   cfg.Backend.Security,
		Username:   cfg.Backend.Username,
		Password:   cfg.Backend.Password,
		AuthMethod: cfg.Backend.AuthMethod,
	}
	result := providers.ValidateIMAPConfig(imapConfig)
	for _, warning := range result.Warnings {
		log.Printf("Warning: backend %s: %s", warning.Field, warning.Message)
	}
	for _, suggestion := range result.Suggestions {
		log.Printf("Suggestion: backend %s: %s", suggestion.Field, suggestion.Suggestion)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return providers.NewIMAPBackend(imapConfig), nil
}
