package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docschat/backend/internal/application/chat"
	"github.com/docschat/backend/internal/domain/corpus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedChatService 按脚本下发事件的对话服务
type scriptedChatService struct {
	events  []chat.StreamEvent
	lastReq *chat.Request
}

func (s *scriptedChatService) Chat(ctx context.Context, req *chat.Request, emit func(event chat.StreamEvent) error) {
	s.lastReq = req
	for _, event := range s.events {
		if err := emit(event); err != nil {
			return
		}
	}
}

// setupChatRouter 创建测试路由
func setupChatRouter(service ChatService) *gin.Engine {
	router := gin.New()
	router.POST("/api/v1/chat", NewChatHandler(service).Stream)
	return router
}

// parseSSEEvents 解析 SSE 响应体
func parseSSEEvents(t *testing.T, body string) []chat.StreamEvent {
	t.Helper()
	var events []chat.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event chat.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

// TestChatStream 测试 SSE 事件流
func TestChatStream(t *testing.T) {
	service := &scriptedChatService{
		events: []chat.StreamEvent{
			chat.ContentEvent("The answer "),
			chat.ContentEvent("in fragments."),
			chat.SourceEvent(&corpus.Citation{Label: "S1", SourcePath: "doc.md", SectionHeader: "Intro"}),
			chat.CompleteEvent(),
		},
	}
	router := setupChatRouter(service)

	body, _ := json.Marshal(chat.Request{Query: "question", SessionID: "s1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSEEvents(t, w.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, chat.EventContent, events[0].Type)
	assert.Equal(t, chat.EventSource, events[2].Type)
	assert.Equal(t, "doc.md", events[2].Source.SourcePath)
	assert.Equal(t, chat.EventComplete, events[3].Type)

	require.NotNil(t, service.lastReq)
	assert.Equal(t, "question", service.lastReq.Query)
}

// TestChatStream_InvalidBody 测试非法请求体返回校验错误
func TestChatStream_InvalidBody(t *testing.T) {
	router := setupChatRouter(&scriptedChatService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, corpus.CodeValidation, resp["code"])
}

// TestChatStream_ErrorEvent 测试错误事件透传
func TestChatStream_ErrorEvent(t *testing.T) {
	service := &scriptedChatService{
		events: []chat.StreamEvent{
			chat.ErrorEvent(corpus.NewEmbeddingError("embedding service down", nil)),
		},
	}
	router := setupChatRouter(service)

	body, _ := json.Marshal(chat.Request{Query: "question", SessionID: "s1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	events := parseSSEEvents(t, w.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, chat.EventError, events[0].Type)
	assert.Equal(t, corpus.CodeEmbedding, events[0].Code)
	assert.True(t, events[0].Retryable)
}
