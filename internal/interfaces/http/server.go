package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
	"github.com/docschat/backend/internal/interfaces/http/handler"
	"github.com/docschat/backend/internal/interfaces/mcp"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.Config,
	chatHandler *handler.ChatHandler,
	chatWSHandler *handler.ChatWSHandler,
	ingestHandler *handler.IngestHandler,
	healthHandler *handler.HealthHandler,
	mcpServer *mcp.MCPServer,
) *HTTPServer {
	router := gin.Default()

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 对话相关路由
		api.POST("/chat", chatHandler.Stream)
		api.GET("/chat/ws", chatWSHandler.Serve)

		// 摄取相关路由
		api.POST("/ingest", ingestHandler.Trigger)
		api.GET("/ingest/latest", ingestHandler.LatestJob)
		api.GET("/ingest/jobs/:id", ingestHandler.GetJob)

		// 语料库状态
		api.GET("/stats", healthHandler.Stats)
	}

	// 健康检查
	router.GET("/health", healthHandler.Health)

	// MCP SSE 端点
	if mcpServer != nil {
		router.Any("/mcp/sse", gin.WrapH(mcpServer.GetHandler()))
	}

	return &HTTPServer{
		router:   router,
		httpPort: cfg.Server.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
