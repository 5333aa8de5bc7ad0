package config

import (
	"foldermeta/internal/query"
	"foldermeta/internal/storage"
)

// Resolve 生成查询集配置：有配置文件时以文件为准，环境变量中的标签追加到文件之后
func (q QuerySetConfig) Resolve() (storage.QuerySetConfig, error) {
	var cfg storage.QuerySetConfig
	if q.File != "" {
		loaded, err := storage.LoadQuerySetConfig(q.File)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if cfg.Preset == "" {
		cfg.Preset = q.Preset
	}
	for _, tag := range q.ListQueries {
		cfg.List.Queries = append(cfg.List.Queries, query.Tag(tag))
	}
	for _, tag := range q.DataQueries {
		cfg.Data.Queries = append(cfg.Data.Queries, query.Tag(tag))
	}
	return cfg, nil
}
