package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docschat/backend/internal/application/ingest"
	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/log"
	"github.com/docschat/backend/internal/interfaces/http/response"
)

// IngestService 摄取服务接口
type IngestService interface {
	StartIngestion(force bool) (*corpus.IngestionJob, error)
	GetJob(id string) (*corpus.IngestionJob, error)
	GetLatestJob() (*corpus.IngestionJob, error)
	GetStats(ctx context.Context) (*ingest.Stats, error)
}

// IngestHandler 摄取相关接口
type IngestHandler struct {
	service IngestService
	logger  *slog.Logger
}

// NewIngestHandler 创建摄取 Handler
func NewIngestHandler(service IngestService) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  log.NewModuleLogger("http", "ingest_handler"),
	}
}

// TriggerRequest 摄取触发请求
type TriggerRequest struct {
	Force bool `json:"force"`
}

// Trigger 触发摄取任务
// POST /api/v1/ingest
func (h *IngestHandler) Trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		response.Error(c, corpus.NewValidationError("invalid request body"))
		return
	}

	job, err := h.service.StartIngestion(req.Force)
	if err != nil {
		h.logger.Warn("Failed to start ingestion",
			"error", err,
		)
		response.Error(c, err)
		return
	}

	response.Accepted(c, job)
}

// GetJob 查询摄取任务状态
// GET /api/v1/ingest/jobs/:id
func (h *IngestHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, err := h.service.GetJob(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "job not found"})
		return
	}

	response.Success(c, job)
}

// LatestJob 查询最近一次摄取任务
// GET /api/v1/ingest/latest
func (h *IngestHandler) LatestJob(c *gin.Context) {
	job, err := h.service.GetLatestJob()
	if err != nil {
		response.Error(c, err)
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "no ingestion job yet"})
		return
	}

	response.Success(c, job)
}
