package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// Request 一次对话请求
type Request struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	TopK      int    `json:"top_k,omitempty"`
}

// Service 对话服务
// 编排校验 → 检索 → 生成，产出流式事件序列，
// 以恰好一个 complete 或 error 事件结束
type Service struct {
	retriever      *Retriever
	generator      *Generator
	contextManager *ContextManager
	maxQueryLength int
	logger         *slog.Logger
}

// NewService 创建对话服务
func NewService(cfg *config.Config, retriever *Retriever, generator *Generator, contextManager *ContextManager) *Service {
	return &Service{
		retriever:      retriever,
		generator:      generator,
		contextManager: contextManager,
		maxQueryLength: cfg.Chat.MaxQueryLength,
		logger:         log.NewModuleLogger("chat", "service"),
	}
}

// validate 校验请求
func (s *Service) validate(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return corpus.NewValidationError("query cannot be empty")
	}
	if s.maxQueryLength > 0 && len(req.Query) > s.maxQueryLength {
		return corpus.NewValidationError("query exceeds maximum length")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return corpus.NewValidationError("session_id is required")
	}
	return nil
}

// Chat 处理一次对话请求
// emit 负责把事件发送给调用方；emit 返回错误（连接断开）时立即终止。
// 检索完全结束后才会发出第一个 content 事件
func (s *Service) Chat(ctx context.Context, req *Request, emit func(event StreamEvent) error) {
	if err := s.validate(req); err != nil {
		emit(ErrorEvent(err))
		return
	}

	conversation := s.contextManager.GetContext(req.SessionID)

	results, err := s.retriever.Retrieve(ctx, req.Query, conversation, req.TopK)
	if err != nil && !errors.Is(err, corpus.ErrNoRelevantContent) {
		s.logger.Error("Retrieval failed",
			"session_id", req.SessionID,
			"error", err,
		)
		emit(ErrorEvent(err))
		return
	}

	answer, err := s.generator.Generate(ctx, req.Query, results, conversation, emit)
	if err != nil {
		// 已下发的片段无法撤回，以 error 事件告知回答不完整
		s.logger.Error("Generation failed",
			"session_id", req.SessionID,
			"error", err,
		)
		emit(ErrorEvent(err))
		return
	}

	// 完成后记录本轮问答，供后续追问使用
	s.contextManager.AppendExchange(req.SessionID, req.Query, answer)

	emit(CompleteEvent())
}
