package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/docschat/backend/internal/application/chat"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// upgrader WebSocket 升级器
// 服务只在本机或可信环境内暴露，不校验 Origin
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ChatWSHandler WebSocket 对话接口
// 客户端每发送一条请求 JSON，服务端回以一串事件 JSON，
// 以 complete 或 error 事件结束本轮
type ChatWSHandler struct {
	service ChatService
	logger  *slog.Logger
}

// NewChatWSHandler 创建 WebSocket 对话 Handler
func NewChatWSHandler(service ChatService) *ChatWSHandler {
	return &ChatWSHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "chat_ws_handler"),
	}
}

// Serve 处理 WebSocket 对话连接
// GET /api/v1/chat/ws
// 读协程持续收取请求；连接断开时取消上下文，
// 使进行中的生成立即终止而不是等到下一次写失败
func (h *ChatWSHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed",
			"error", err,
		)
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket chat connected",
		"remote", conn.RemoteAddr().String(),
	)

	// 升级后的连接不随请求上下文取消，自行管理生命周期
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	requests := make(chan *chat.Request)

	go func() {
		defer cancel()
		defer close(requests)
		for {
			var req chat.Request
			if err := conn.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Debug("WebSocket chat closed unexpectedly",
						"error", err,
					)
				}
				return
			}

			select {
			case requests <- &req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for req := range requests {
		h.service.Chat(ctx, req, func(event chat.StreamEvent) error {
			return conn.WriteJSON(event)
		})
	}
}
