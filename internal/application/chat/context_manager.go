package chat

import (
	"log/slog"
	"sync"
	"time"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// sessionEntry 单个会话的上下文与锁
// 每个会话独立加锁，同一会话的追加串行，不同会话完全并行
type sessionEntry struct {
	mu      sync.Mutex
	context *corpus.ConversationContext
}

// ContextManager 会话上下文管理器
// 维护每个会话的有界对话窗口，超出窗口时最旧的记录先被淘汰
type ContextManager struct {
	windowSize int
	store      corpus.ContextStore
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewContextManager 创建上下文管理器
// store 为可选的持久化钩子，传 nil 时为纯内存
func NewContextManager(cfg *config.Config, store corpus.ContextStore) *ContextManager {
	return &ContextManager{
		windowSize: cfg.Chat.ConversationWindowSize,
		store:      store,
		logger:     log.NewModuleLogger("chat", "context_manager"),
		sessions:   make(map[string]*sessionEntry),
	}
}

// entry 获取或创建会话条目
func (m *ContextManager) entry(sessionID string) *sessionEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		return e
	}

	context := &corpus.ConversationContext{SessionID: sessionID}

	// 首次访问时尝试从持久化钩子恢复
	if m.store != nil {
		if loaded, err := m.store.Load(sessionID); err != nil {
			m.logger.Warn("Failed to load conversation context",
				"session_id", sessionID,
				"error", err,
			)
		} else if loaded != nil {
			context = loaded
		}
	}

	e := &sessionEntry{context: context}
	m.sessions[sessionID] = e
	return e
}

// GetContext 获取会话上下文的副本
func (m *ContextManager) GetContext(sessionID string) *corpus.ConversationContext {
	e := m.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := &corpus.ConversationContext{
		SessionID: e.context.SessionID,
		Turns:     make([]corpus.ConversationTurn, len(e.context.Turns)),
	}
	copy(snapshot.Turns, e.context.Turns)
	return snapshot
}

// AppendTurn 追加一条对话记录，超出窗口时淘汰最旧的
func (m *ContextManager) AppendTurn(sessionID, role, text string) {
	e := m.entry(sessionID)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.context.Turns = append(e.context.Turns, corpus.ConversationTurn{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})

	if overflow := len(e.context.Turns) - m.windowSize; overflow > 0 {
		e.context.Turns = append([]corpus.ConversationTurn(nil), e.context.Turns[overflow:]...)
	}

	if m.store != nil {
		if err := m.store.Store(e.context); err != nil {
			m.logger.Warn("Failed to persist conversation context",
				"session_id", sessionID,
				"error", err,
			)
		}
	}
}

// AppendExchange 追加一轮问答
func (m *ContextManager) AppendExchange(sessionID, query, answer string) {
	m.AppendTurn(sessionID, corpus.RoleUser, query)
	m.AppendTurn(sessionID, corpus.RoleAssistant, answer)
}
