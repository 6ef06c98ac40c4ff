package storage

import (
	"database/sql"

	"github.com/google/wire"

	"github.com/docschat/backend/internal/infrastructure/config"
)

// ProvideDB 按配置打开数据库连接
func ProvideDB(cfg *config.Config) (*sql.DB, error) {
	return OpenDB(cfg.Database.Path)
}

// ProviderSet Storage 基础设施层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideDB,           // 提供数据库连接
	NewChunkRepository,  // 知识片段仓储
	NewJobRepository,    // 摄取任务仓储
	NewDigestRepository, // 文档摘要仓储
)
