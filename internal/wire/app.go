package wire

import (
	"database/sql"

	"log/slog"

	appIngest "github.com/docschat/backend/internal/application/ingest"
	"github.com/docschat/backend/internal/infrastructure/config"
	applog "github.com/docschat/backend/internal/infrastructure/log"
	"github.com/docschat/backend/internal/infrastructure/watcher"
	infraHTTP "github.com/docschat/backend/internal/interfaces/http"
	"github.com/docschat/backend/internal/interfaces/mcp"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer    *infraHTTP.HTTPServer
	MCPServer     *mcp.MCPServer
	ingestService *appIngest.Service
	db            *sql.DB
	logger        *slog.Logger

	// 内容目录监听相关
	contentWatcher *watcher.ContentWatcher
}

// NewApp 创建应用实例
func NewApp(
	cfg *config.Config,
	httpServer *infraHTTP.HTTPServer,
	mcpServer *mcp.MCPServer,
	ingestService *appIngest.Service,
	db *sql.DB,
) *App {
	logger := applog.NewModuleLogger("app", "main")

	// 初始化内容目录监听器（可选）
	var contentWatcher *watcher.ContentWatcher
	if cfg.Ingestion.WatchEnabled && len(cfg.Ingestion.ContentRoots) > 0 {
		watchConfig := watcher.DefaultWatchConfig(cfg.Ingestion.ContentRoots)

		cw, err := watcher.NewContentWatcher(watchConfig, func(path string, kind watcher.ChangeKind) {
			ingestService.HandleContentChange(path, kind == watcher.ChangeRemoved)
		})
		if err != nil {
			logger.Error("Failed to create content watcher", "error", err)
		} else {
			contentWatcher = cw
		}
	}

	return &App{
		HTTPServer:     httpServer,
		MCPServer:      mcpServer,
		ingestService:  ingestService,
		db:             db,
		logger:         logger,
		contentWatcher: contentWatcher,
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting DocsChat backend application")

	// 启动内容目录监听
	if a.contentWatcher != nil {
		if err := a.contentWatcher.Start(); err != nil {
			a.logger.Error("Failed to start content watcher",
				"error", err,
			)
		} else {
			a.logger.Info("Content watcher started successfully")
		}
	}

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("DocsChat backend application started successfully")

	// MCP 服务器通过 HTTP Handler 提供服务，不需要单独启动
	// 已在 HTTP 服务器中注册 /mcp/sse 端点

	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("Stopping DocsChat backend application")

	// 停止内容目录监听
	if a.contentWatcher != nil {
		a.contentWatcher.Stop()
		a.logger.Info("Content watcher stopped")
	}

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server",
			"error", err,
		)
		return err
	}

	// 关闭数据库连接
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close database connection",
				"error", err,
			)
			return err
		}
	}

	a.logger.Info("DocsChat backend application stopped successfully")

	return nil
}
