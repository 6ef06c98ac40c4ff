package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig_Defaults 测试默认配置
func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8712", cfg.Server.HTTPPort)
	assert.Equal(t, 50, cfg.Ingestion.MinChunkTokens)
	assert.Equal(t, 500, cfg.Ingestion.MaxChunkTokens)
	assert.Equal(t, 100, cfg.Ingestion.ChunkOverlapTokens)
	assert.InDelta(t, 0.7, cfg.Retrieval.SimilarityThreshold, 0.001)
	assert.InDelta(t, 0.5, cfg.Retrieval.MMRLambda, 0.001)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 6, cfg.Chat.ConversationWindowSize)
	assert.NotEmpty(t, cfg.Ingestion.BoilerplatePatterns)
}

// TestNewConfig_EnvOverride 测试环境变量覆盖
func TestNewConfig_EnvOverride(t *testing.T) {
	t.Setenv("TOP_K", "8")
	t.Setenv("CANDIDATE_K", "40")
	t.Setenv("SIMILARITY_THRESHOLD", "0.55")
	t.Setenv("CONTENT_ROOTS", "/srv/docs, /srv/manuals")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 40, cfg.Retrieval.CandidateK)
	assert.InDelta(t, 0.55, cfg.Retrieval.SimilarityThreshold, 0.001)
	assert.Equal(t, []string{"/srv/docs", "/srv/manuals"}, cfg.Ingestion.ContentRoots)
}

// TestNewConfig_YAMLFile 测试 YAML 配置文件加载
func TestNewConfig_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
retrieval:
  top_k: 3
  candidate_k: 15
ingestion:
  min_chunk_tokens: 30
  max_chunk_tokens: 300
  chunk_overlap_tokens: 50
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, 30, cfg.Ingestion.MinChunkTokens)
	assert.Equal(t, 300, cfg.Ingestion.MaxChunkTokens)
}

// TestValidate_Invalid 测试非法配置被拒绝
func TestValidate_Invalid(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ingestion.MinChunkTokens = 600
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Retrieval.CandidateK = 1
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Retrieval.MMRLambda = 1.5
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Ingestion.ChunkOverlapTokens = 500
	assert.Error(t, cfg.Validate())
}
