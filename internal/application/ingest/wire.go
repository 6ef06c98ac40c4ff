package ingest

import (
	"github.com/google/wire"

	"github.com/docschat/backend/internal/infrastructure/config"
)

// ProvideLoader 按配置的内容根目录创建加载器
func ProvideLoader(cfg *config.Config) *Loader {
	return NewLoader(cfg.Ingestion.ContentRoots)
}

// ProviderSet Ingest 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideLoader,
	NewChunker,
	NewService,
)
