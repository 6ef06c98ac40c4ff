package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docschat/backend/internal/infrastructure/config"
)

// newTestClient 创建指向测试服务器的客户端
func newTestClient(serverURL string) *Client {
	cfg := &config.Config{}
	cfg.Completion.URL = serverURL
	cfg.Completion.APIKey = "test-key"
	cfg.Completion.Model = "gpt-4o-mini"
	cfg.Completion.TimeoutSeconds = 5
	return NewClient(cfg)
}

// streamHandler 以 SSE 形式返回固定的内容片段序列
func streamHandler(fragments []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, fragment := range fragments {
			fmt.Fprintf(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", fragment)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// TestStreamChat 测试流式片段按序回调
func TestStreamChat(t *testing.T) {
	server := httptest.NewServer(streamHandler([]string{"Indexes ", "speed up ", "lookups."}))
	defer server.Close()

	client := newTestClient(server.URL)

	var got []string
	err := client.StreamChat(context.Background(),
		[]Message{{Role: "user", Content: "what do indexes do"}},
		func(fragment string) error {
			got = append(got, fragment)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, []string{"Indexes ", "speed up ", "lookups."}, got)
}

// TestStreamChat_CallbackErrorAborts 测试回调返回错误时中止流
func TestStreamChat_CallbackErrorAborts(t *testing.T) {
	server := httptest.NewServer(streamHandler([]string{"a", "b", "c"}))
	defer server.Close()

	client := newTestClient(server.URL)

	calls := 0
	err := client.StreamChat(context.Background(),
		[]Message{{Role: "user", Content: "q"}},
		func(fragment string) error {
			calls++
			return fmt.Errorf("stop")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// TestStreamChat_APIError 测试非 200 响应返回生成错误
func TestStreamChat_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.StreamChat(context.Background(),
		[]Message{{Role: "user", Content: "q"}},
		func(fragment string) error { return nil })

	require.Error(t, err)
}

// TestChat 测试非流式回答
func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"OK"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	content, err := client.Chat(context.Background(),
		[]Message{{Role: "user", Content: "ping"}})
	require.NoError(t, err)
	assert.Equal(t, "OK", content)
}

// TestBuildChatURL 测试 URL 拼接规则
func TestBuildChatURL(t *testing.T) {
	assert.Equal(t, "https://api.example.com/v1/chat/completions",
		buildChatURL("https://api.example.com"))
	assert.Equal(t, "https://api.example.com/v1/chat/completions",
		buildChatURL("https://api.example.com/v1"))
	assert.Equal(t, "https://api.example.com/v1/chat/completions",
		buildChatURL("https://api.example.com/v1/chat/completions"))
}
