package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/docschat/backend/internal/application/chat"
	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/log"
	"github.com/docschat/backend/internal/interfaces/http/response"
)

// ChatService 对话服务接口
type ChatService interface {
	Chat(ctx context.Context, req *chat.Request, emit func(event chat.StreamEvent) error)
}

// ChatHandler 对话接口
type ChatHandler struct {
	service ChatService
	logger  *slog.Logger
}

// NewChatHandler 创建对话 Handler
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "chat_handler"),
	}
}

// Stream 以 SSE 流式返回对话回答
// POST /api/v1/chat
// 每个事件为一行 data: {"type": "content"|"source"|"complete"|"error", ...}
func (h *ChatHandler) Stream(c *gin.Context) {
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, corpus.NewValidationError("invalid request body"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	// 客户端断开时终止生成，释放上游调用
	ctx := c.Request.Context()

	h.service.Chat(ctx, &req, func(event chat.StreamEvent) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
}
