package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"context"
	"log/slog"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// Client LLM Chat 客户端（OpenAI 兼容，流式）
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// ChatRequest Chat API 请求
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model,omitempty"`
	Stream   bool      `json:"stream,omitempty"`
}

// Message Chat 消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatStreamChunk 流式响应的单个数据块
type ChatStreamChunk struct {
	ID      string `json:"id,omitempty"`
	Object  string `json:"object,omitempty"`
	Created int64  `json:"created,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// ChatResponse 非流式 Chat API 响应
type ChatResponse struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewClient 创建 LLM 客户端
func NewClient(cfg *config.Config) *Client {
	baseURL := strings.TrimSuffix(cfg.Completion.URL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.Completion.APIKey,
		model:   cfg.Completion.Model,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Completion.TimeoutSeconds) * time.Second,
		},
		logger: log.NewModuleLogger("llm", "client"),
	}
}

// buildChatURL 构建 Chat Completions API URL
func buildChatURL(baseURL string) string {
	if strings.Contains(baseURL, "/chat/completions") {
		return baseURL
	}
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/chat/completions"
	}
	return fmt.Sprintf("%s/v1/chat/completions", baseURL)
}

// StreamChat 流式生成回答
// 每收到一个内容片段调用一次 onFragment；onFragment 返回错误时中止流
func (c *Client) StreamChat(ctx context.Context, messages []Message, onFragment func(fragment string) error) error {
	reqBody := ChatRequest{
		Messages: messages,
		Model:    c.model,
		Stream:   true,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := buildChatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	c.logger.Debug("Sending streaming chat request",
		"url", url,
		"model", c.model,
		"messages", len(messages),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return corpus.NewGenerationError("chat request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return corpus.NewGenerationError(
			fmt.Sprintf("chat API returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fragments := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk ChatStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Warn("Skipping malformed stream chunk",
				"error", err,
			)
			continue
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}

		fragments++
		if err := onFragment(content); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return corpus.NewGenerationError("chat stream interrupted", err)
	}

	c.logger.Debug("Streaming chat completed",
		"fragments", fragments,
	)

	return nil
}

// Chat 非流式生成回答，返回完整文本
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	reqBody := ChatRequest{
		Messages: messages,
		Model:    c.model,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := buildChatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", corpus.NewGenerationError("chat request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", corpus.NewGenerationError(
			fmt.Sprintf("chat API returned status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", corpus.NewGenerationError("chat API returned no choices", nil)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// TestConnection 测试 LLM API 连接
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Info("Testing chat API connection",
		"base_url", c.baseURL,
		"model", c.model,
	)

	_, err := c.Chat(ctx, []Message{
		{Role: "user", Content: "Reply with the single word: OK"},
	})
	if err != nil {
		c.logger.Error("Chat API connection test failed",
			"error", err,
		)
		return err
	}

	c.logger.Info("Chat API connection test successful",
		"model", c.model,
	)

	return nil
}
