package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// Client Embedding API 客户端（OpenAI 兼容）
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	maxBatchSize int
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient 创建 Embedding 客户端
func NewClient(cfg *config.Config) *Client {
	// 规范化 baseURL：移除末尾斜杠
	normalizedURL := strings.TrimSuffix(cfg.Embedding.URL, "/")

	return &Client{
		baseURL:      normalizedURL,
		apiKey:       cfg.Embedding.APIKey,
		model:        cfg.Embedding.Model,
		maxBatchSize: cfg.Embedding.MaxBatchSize,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
		},
		logger: log.NewModuleLogger("embedding", "client"),
	}
}

// buildEmbeddingURL 构建 Embedding API URL
// 支持多种输入格式，智能拼接 /v1/embeddings 路径
func buildEmbeddingURL(baseURL string) string {
	// 1. 如果已经包含完整路径 /v1/embeddings，直接使用
	if strings.Contains(baseURL, "/v1/embeddings") {
		return baseURL
	}

	// 2. 如果以 /v1 结尾，只追加 /embeddings
	if strings.HasSuffix(baseURL, "/v1") {
		return baseURL + "/embeddings"
	}

	// 3. 其他情况，追加完整的 /v1/embeddings
	return fmt.Sprintf("%s/v1/embeddings", baseURL)
}

// EmbeddingRequest Embedding 请求
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse Embedding 响应
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedTexts 批量向量化文本
// 超过单次批量上限时自动分批，保持输入顺序
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, corpus.NewValidationError("texts cannot be empty")
	}

	const maxRetriesPerBatch = 3

	if len(texts) <= c.maxBatchSize {
		return c.embedTextsWithRetry(ctx, texts, maxRetriesPerBatch)
	}

	c.logger.Info("Splitting texts into batches",
		"total_texts", len(texts),
		"batch_limit", c.maxBatchSize,
	)

	allVectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += c.maxBatchSize {
		end := i + c.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]
		batchNum := (i / c.maxBatchSize) + 1
		totalBatches := (len(texts) + c.maxBatchSize - 1) / c.maxBatchSize

		c.logger.Debug("Processing batch",
			"batch", batchNum,
			"total_batches", totalBatches,
			"batch_size", len(batch),
		)

		vectors, err := c.embedTextsWithRetry(ctx, batch, maxRetriesPerBatch)
		if err != nil {
			c.logger.Error("Failed to embed batch",
				"batch", batchNum,
				"error", err,
			)
			return nil, fmt.Errorf("failed to embed batch %d: %w", batchNum, err)
		}

		allVectors = append(allVectors, vectors...)
	}

	c.logger.Info("Successfully embedded texts",
		"total_vectors", len(allVectors),
	)

	return allVectors, nil
}

// EmbedQuery 向量化单条查询文本
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, corpus.NewEmbeddingError("empty embedding returned for query", nil)
	}
	return vectors[0], nil
}

// embedTextsWithRetry 带重试的嵌入处理
func (c *Client) embedTextsWithRetry(ctx context.Context, texts []string, maxRetries int) ([][]float32, error) {
	reqBody := EmbeddingRequest{
		Model: c.model,
		Input: texts,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := buildEmbeddingURL(c.baseURL)

	// API Key 脱敏
	apiKeyMasked := c.apiKey
	if len(apiKeyMasked) > 8 {
		apiKeyMasked = apiKeyMasked[:4] + "..." + apiKeyMasked[len(apiKeyMasked)-4:]
	} else {
		apiKeyMasked = "***"
	}

	c.logger.Debug("Sending embedding request",
		"url", url,
		"batch_size", len(texts),
		"model", c.model,
		"api_key", apiKeyMasked,
	)

	var lastErr error
	for retry := 0; retry < maxRetries; retry++ {
		if retry > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retry) * time.Second): // 递增延迟
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("Embedding request failed, retrying",
				"attempt", retry+1,
				"max_retries", maxRetries,
				"error", err,
			)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
			// 4xx 为请求自身问题，重试无意义
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				c.logger.Error("API returned error",
					"status_code", resp.StatusCode,
					"response_body", string(body),
				)
				return nil, corpus.NewEmbeddingError(lastErr.Error(), nil)
			}
			c.logger.Warn("Embedding request failed, retrying",
				"attempt", retry+1,
				"max_retries", maxRetries,
				"status_code", resp.StatusCode,
			)
			continue
		}

		var embeddingResp EmbeddingResponse
		if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
			resp.Body.Close()
			c.logger.Error("Failed to decode embedding response",
				"error", err,
			)
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		resp.Body.Close()

		if len(embeddingResp.Data) != len(texts) {
			return nil, corpus.NewEmbeddingError(
				fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(embeddingResp.Data)), nil)
		}

		// 按 index 还原输入顺序
		vectors := make([][]float32, len(embeddingResp.Data))
		for _, data := range embeddingResp.Data {
			if data.Index < 0 || data.Index >= len(vectors) {
				return nil, corpus.NewEmbeddingError(
					fmt.Sprintf("embedding index %d out of range", data.Index), nil)
			}
			vectors[data.Index] = data.Embedding
		}

		return vectors, nil
	}

	c.logger.Error("Embedding request failed after all retries",
		"max_retries", maxRetries,
		"error", lastErr,
	)
	return nil, corpus.NewEmbeddingError("embedding request failed after all retries", lastErr)
}

// GetVectorDimension 获取向量维度（通过测试请求）
func (c *Client) GetVectorDimension(ctx context.Context) (int, error) {
	vectors, err := c.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		return 0, err
	}

	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("invalid embedding response")
	}

	return len(vectors[0]), nil
}

// TestConnection 测试连接
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Info("Testing embedding API connection",
		"base_url", c.baseURL,
		"model", c.model,
	)

	dimension, err := c.GetVectorDimension(ctx)
	if err != nil {
		c.logger.Error("Embedding API connection test failed",
			"error", err,
		)
		return err
	}

	c.logger.Info("Embedding API connection test successful",
		"vector_dimension", dimension,
	)

	return nil
}
