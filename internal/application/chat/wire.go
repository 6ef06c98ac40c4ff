package chat

import (
	"github.com/google/wire"

	"github.com/docschat/backend/internal/infrastructure/config"
)

// ProvideContextManager 创建会话上下文管理器
// 目前仅使用进程内存储，不挂接外部持久化
func ProvideContextManager(cfg *config.Config) *ContextManager {
	return NewContextManager(cfg, nil)
}

// ProviderSet Chat 应用层 ProviderSet
var ProviderSet = wire.NewSet(
	ProvideContextManager,
	NewRetriever,
	NewGenerator,
	NewService,
)
