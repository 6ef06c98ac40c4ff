package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Ingestion  IngestionConfig  `yaml:"ingestion"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Chat       ChatConfig       `yaml:"chat"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Path sqlite 数据库路径，留空表示使用 ~/.docschat/docschat.db
	Path string `yaml:"path"`
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	MaxBatchSize   int    `yaml:"max_batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CompletionConfig 补全服务配置
type CompletionConfig struct {
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// QdrantConfig 向量库配置
type QdrantConfig struct {
	Host       string `yaml:"host"`
	GRPCPort   int    `yaml:"grpc_port"`
	Collection string `yaml:"collection"`
}

// IngestionConfig 摄取配置
type IngestionConfig struct {
	// ContentRoots 内容根目录白名单
	ContentRoots []string `yaml:"content_roots"`
	// MinChunkTokens 小于该值的片段会被并入后续片段
	MinChunkTokens int `yaml:"min_chunk_tokens"`
	// MaxChunkTokens 片段 token 数上限
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	// ChunkOverlapTokens 相邻片段的重叠 token 数
	ChunkOverlapTokens int `yaml:"chunk_overlap_tokens"`
	// BoilerplatePatterns 样板章节标题的正则 deny-list
	BoilerplatePatterns []string `yaml:"boilerplate_patterns"`
	// Concurrency 并发嵌入批次上限
	Concurrency int `yaml:"concurrency"`
	// WatchEnabled 是否监听内容目录变更并触发增量摄取
	WatchEnabled bool `yaml:"watch_enabled"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k"`
	CandidateK          int     `yaml:"candidate_k"`
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	MMRLambda           float32 `yaml:"mmr_lambda"`
}

// ChatConfig 对话配置
type ChatConfig struct {
	// ConversationWindowSize 会话窗口保留的最大对话条数
	ConversationWindowSize int `yaml:"conversation_window_size"`
	// MaxQueryLength 查询文本最大长度（字符）
	MaxQueryLength int `yaml:"max_query_length"`
}

// NewConfig 创建配置（默认值 + 可选配置文件 + 环境变量覆盖）
func NewConfig() (*Config, error) {
	cfg := defaultConfig()

	// 配置文件可选，路径由 CONFIG_PATH 指定
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig 返回默认配置（不读取环境变量与配置文件）
func DefaultConfig() *Config {
	return defaultConfig()
}

// defaultConfig 默认配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: ":8712",
		},
		Database: DatabaseConfig{
			Path: "",
		},
		Embedding: EmbeddingConfig{
			URL:            "https://api.openai.com/v1",
			Model:          "text-embedding-3-small",
			MaxBatchSize:   128,
			TimeoutSeconds: 30,
		},
		Completion: CompletionConfig{
			URL:            "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 120,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			GRPCPort:   6334,
			Collection: "corpus_chunks",
		},
		Ingestion: IngestionConfig{
			ContentRoots:       nil,
			MinChunkTokens:     50,
			MaxChunkTokens:     500,
			ChunkOverlapTokens: 100,
			BoilerplatePatterns: []string{
				`(?i)^how to use this`,
				`(?i)^about this (book|guide|document)`,
				`(?i)^table of contents`,
				`(?i)^copyright`,
				`(?i)^license`,
			},
			Concurrency:  3,
			WatchEnabled: false,
		},
		Retrieval: RetrievalConfig{
			TopK:                5,
			CandidateK:          25,
			SimilarityThreshold: 0.7,
			MMRLambda:           0.5,
		},
		Chat: ChatConfig{
			ConversationWindowSize: 6,
			MaxQueryLength:         2000,
		},
	}
}

// loadFile 加载 YAML 配置文件
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv 应用环境变量覆盖
func (c *Config) applyEnv() {
	setString(&c.Server.HTTPPort, "HTTP_PORT")
	setString(&c.Database.Path, "SQLITE_PATH")

	setString(&c.Embedding.URL, "EMBEDDING_API_URL")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL")
	setInt(&c.Embedding.MaxBatchSize, "EMBEDDING_MAX_BATCH_SIZE")

	setString(&c.Completion.URL, "COMPLETION_API_URL")
	setString(&c.Completion.APIKey, "COMPLETION_API_KEY")
	setString(&c.Completion.Model, "COMPLETION_MODEL")

	setString(&c.Qdrant.Host, "QDRANT_HOST")
	setInt(&c.Qdrant.GRPCPort, "QDRANT_GRPC_PORT")
	setString(&c.Qdrant.Collection, "QDRANT_COLLECTION")

	if v := os.Getenv("CONTENT_ROOTS"); v != "" {
		c.Ingestion.ContentRoots = splitAndTrim(v)
	}
	setInt(&c.Ingestion.MinChunkTokens, "MIN_CHUNK_TOKENS")
	setInt(&c.Ingestion.MaxChunkTokens, "MAX_CHUNK_TOKENS")
	setInt(&c.Ingestion.ChunkOverlapTokens, "CHUNK_OVERLAP_TOKENS")
	setInt(&c.Ingestion.Concurrency, "INGEST_CONCURRENCY")
	setBool(&c.Ingestion.WatchEnabled, "WATCH_ENABLED")
	if v := os.Getenv("BOILERPLATE_PATTERNS"); v != "" {
		c.Ingestion.BoilerplatePatterns = splitAndTrim(v)
	}

	setInt(&c.Retrieval.TopK, "TOP_K")
	setInt(&c.Retrieval.CandidateK, "CANDIDATE_K")
	setFloat32(&c.Retrieval.SimilarityThreshold, "SIMILARITY_THRESHOLD")
	setFloat32(&c.Retrieval.MMRLambda, "MMR_LAMBDA")

	setInt(&c.Chat.ConversationWindowSize, "CONVERSATION_WINDOW_SIZE")
	setInt(&c.Chat.MaxQueryLength, "MAX_QUERY_LENGTH")
}

// Validate 校验配置合法性
func (c *Config) Validate() error {
	if c.Ingestion.MinChunkTokens <= 0 || c.Ingestion.MaxChunkTokens <= 0 {
		return fmt.Errorf("chunk token bounds must be positive")
	}
	if c.Ingestion.MinChunkTokens >= c.Ingestion.MaxChunkTokens {
		return fmt.Errorf("min_chunk_tokens must be less than max_chunk_tokens")
	}
	if c.Ingestion.ChunkOverlapTokens < 0 || c.Ingestion.ChunkOverlapTokens >= c.Ingestion.MaxChunkTokens {
		return fmt.Errorf("chunk_overlap_tokens must be in [0, max_chunk_tokens)")
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("top_k must be positive")
	}
	if c.Retrieval.CandidateK < c.Retrieval.TopK {
		return fmt.Errorf("candidate_k must be >= top_k")
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return fmt.Errorf("mmr_lambda must be in [0, 1]")
	}
	if c.Chat.ConversationWindowSize <= 0 {
		return fmt.Errorf("conversation_window_size must be positive")
	}
	return nil
}

// setString 从环境变量覆盖字符串字段
func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setInt 从环境变量覆盖整数字段
func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setFloat32 从环境变量覆盖浮点字段
func setFloat32(dst *float32, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			*dst = float32(f)
		}
	}
}

// setBool 从环境变量覆盖布尔字段
func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// splitAndTrim 按逗号拆分并去除空白
func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
