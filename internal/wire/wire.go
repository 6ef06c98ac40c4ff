//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/docschat/backend/internal/application"
	appChat "github.com/docschat/backend/internal/application/chat"
	appIngest "github.com/docschat/backend/internal/application/ingest"
	"github.com/docschat/backend/internal/infrastructure"
	"github.com/docschat/backend/internal/infrastructure/embedding"
	"github.com/docschat/backend/internal/infrastructure/llm"
	"github.com/docschat/backend/internal/infrastructure/vector"
	"github.com/docschat/backend/internal/interfaces"
	"github.com/docschat/backend/internal/interfaces/http/handler"
	"github.com/google/wire"
)

// InitializeAll 初始化所有服务（HTTP + MCP）
func InitializeAll() (*App, error) {
	wire.Build(
		// 按层组合 ProviderSet
		infrastructure.ProviderSet, // 基础设施层
		application.ProviderSet,    // 应用层
		interfaces.ProviderSet,     // 接口层
		// 接口绑定：应用层端口 -> 基础设施实现
		wire.Bind(new(appIngest.Embedder), new(*embedding.Client)),
		wire.Bind(new(appIngest.VectorStore), new(*vector.QdrantStore)),
		wire.Bind(new(appChat.QueryEmbedder), new(*embedding.Client)),
		wire.Bind(new(appChat.Searcher), new(*vector.QdrantStore)),
		wire.Bind(new(appChat.StreamingLLM), new(*llm.Client)),
		// 接口绑定：Handler 依赖 -> 应用服务
		wire.Bind(new(handler.ChatService), new(*appChat.Service)),
		wire.Bind(new(handler.IngestService), new(*appIngest.Service)),
		NewApp, // 组合所有服务的应用结构
	)
	return nil, nil
}
