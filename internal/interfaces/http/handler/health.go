package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docschat/backend/internal/infrastructure/log"
	"github.com/docschat/backend/internal/interfaces/http/response"
)

// HealthHandler 健康检查与语料库状态接口
type HealthHandler struct {
	service IngestService
	logger  *slog.Logger
}

// NewHealthHandler 创建健康检查 Handler
func NewHealthHandler(service IngestService) *HealthHandler {
	return &HealthHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "health_handler"),
	}
}

// Health 进程存活探针
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats 语料库状态：片段数、最近摄取时间、向量库连通性
// GET /api/v1/stats
func (h *HealthHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to collect stats",
			"error", err,
		)
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
