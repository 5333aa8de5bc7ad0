package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"foldermeta/internal/cache"
	"foldermeta/internal/config"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"
	"foldermeta/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	folder := flag.String("folder", "", "also synchronize the data queries of this folder")
	flag.Parse()

	// 加载环境变量 - 优先加载.env.local，然后是.env
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: No .env file found, using system environment variables")
		}
	}

	cfg := config.Load()
	fmt.Fprintf(os.Stderr, "🔧 配置信息:\n")
	fmt.Fprintf(os.Stderr, "   Backend: %s %s:%d (%s)\n", cfg.Backend.Driver, cfg.Backend.Host, cfg.Backend.Port, cfg.Backend.Username)
	fmt.Fprintf(os.Stderr, "   Query preset: %s\n", cfg.QuerySet.Preset)

	ctx, cancel := context.WithTimeout(context.Background(), config.Env.RequestTimeout)
	defer cancel()

	var backend providers.Backend
	if cfg.Backend.Driver == "memory" {
		backend = providers.NewMemoryBackend(cfg.Backend.Username)
	} else {
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
			fmt.Fprintf(os.Stderr, "⚠️  %s: %s\n", warning.Field, warning.Message)
		}
		if err := result.Err(); err != nil {
			log.Fatalf("❌ Invalid backend configuration: %v", err)
		}
		imapBackend := providers.NewIMAPBackend(imapConfig)
		if err := imapBackend.Connect(ctx); err != nil {
			log.Fatalf("❌ Failed to connect: %v", err)
		}
		backend = imapBackend
	}
	defer backend.Close()

	qsConfig, err := cfg.QuerySet.Resolve()
	if err != nil {
		log.Fatalf("❌ Failed to load query set configuration: %v", err)
	}
	querySet, err := storage.NewQuerySet(qsConfig, true)
	if err != nil {
		log.Fatalf("❌ Failed to build query set: %v", err)
	}

	// 诊断工具使用独立的内存缓存，不影响服务的缓存
	folderStorage := storage.New(backend, cache.NewMemoryStore(0), querySet, nil)
	if err := folderStorage.Synchronize(ctx); err != nil {
		log.Fatalf("❌ Synchronization failed: %v", err)
	}

	list, err := folderStorage.List(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to open folder list: %v", err)
	}
	fmt.Fprintf(os.Stderr, "✅ 同步完成: list %s, queries %v\n", list.ID(), list.Tags())

	snapshot, err := snapshotOf(ctx, list, backend)
	if err != nil {
		log.Fatalf("❌ Failed to read folder index: %v", err)
	}

	if *folder != "" {
		data, err := folderStorage.Data(ctx, *folder)
		if err != nil {
			log.Fatalf("❌ Failed to open folder %q: %v", *folder, err)
		}
		if err := data.Synchronize(ctx); err != nil {
			log.Fatalf("❌ Failed to synchronize folder %q: %v", *folder, err)
		}
		fmt.Fprintf(os.Stderr, "✅ 文件夹 %s (%s): queries %v\n", data.Folder(), data.Type(), data.Tags())
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		log.Fatalf("❌ Failed to encode folder index: %v", err)
	}
}

// snapshotOf 读取列表当前的派生索引
func snapshotOf(ctx context.Context, list *storage.List, source providers.FolderSource) (*query.IndexSnapshot, error) {
	metadata, err := list.MetadataQuery()
	if err != nil {
		return nil, err
	}
	if index, ok := metadata.(*query.CachedIndex); ok {
		return index.Snapshot(ctx)
	}
	return query.BuildSnapshot(ctx, source)
}
