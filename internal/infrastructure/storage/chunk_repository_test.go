package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docschat/backend/internal/domain/corpus"
)

// newTestDB 在临时目录创建测试数据库
func newTestDB(t *testing.T) *ChunkRepositoryImpl {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &ChunkRepositoryImpl{db: db}
}

// TestSaveAndGetChunk 测试片段保存与读取
func TestSaveAndGetChunk(t *testing.T) {
	repo := newTestDB(t)

	chunk := &corpus.Chunk{
		ID:            corpus.NewChunkID("guide.md", "hash-1"),
		ContentHash:   "hash-1",
		Text:          "Indexes speed up lookups at the cost of writes.",
		TokenCount:    12,
		SectionHeader: "Indexes",
		SourcePath:    "guide.md",
		Extra:         map[string]string{"lang": "en"},
	}

	require.NoError(t, repo.SaveChunks([]*corpus.Chunk{chunk}))

	got, err := repo.GetChunk(chunk.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, chunk.Text, got.Text)
	assert.Equal(t, chunk.SectionHeader, got.SectionHeader)
	assert.Equal(t, "en", got.Extra["lang"])
	assert.False(t, got.IsBoilerplate)
}

// TestGetChunk_NotFound 测试不存在的片段返回 nil
func TestGetChunk_NotFound(t *testing.T) {
	repo := newTestDB(t)

	got, err := repo.GetChunk("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestSaveChunks_UpsertByID 测试按 ID 覆盖写入
func TestSaveChunks_UpsertByID(t *testing.T) {
	repo := newTestDB(t)

	chunk := &corpus.Chunk{
		ID:          "chunk-1",
		ContentHash: "hash-1",
		Text:        "old",
		SourcePath:  "a.md",
	}
	require.NoError(t, repo.SaveChunks([]*corpus.Chunk{chunk}))

	chunk.Text = "new"
	require.NoError(t, repo.SaveChunks([]*corpus.Chunk{chunk}))

	count, err := repo.CountChunks()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := repo.GetChunk("chunk-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)
}

// TestGetHashesBySource 测试按来源查询哈希集合
func TestGetHashesBySource(t *testing.T) {
	repo := newTestDB(t)

	chunks := []*corpus.Chunk{
		{ID: "c1", ContentHash: "h1", Text: "x", SourcePath: "a.md"},
		{ID: "c2", ContentHash: "h2", Text: "y", SourcePath: "a.md"},
		{ID: "c3", ContentHash: "h3", Text: "z", SourcePath: "b.md"},
	}
	require.NoError(t, repo.SaveChunks(chunks))

	hashes, err := repo.GetHashesBySource("a.md")
	require.NoError(t, err)
	assert.Len(t, hashes, 2)
	assert.True(t, hashes["h1"])
	assert.True(t, hashes["h2"])
	assert.False(t, hashes["h3"])
}

// TestDeleteBySource 测试按来源删除
func TestDeleteBySource(t *testing.T) {
	repo := newTestDB(t)

	chunks := []*corpus.Chunk{
		{ID: "c1", ContentHash: "h1", Text: "x", SourcePath: "a.md"},
		{ID: "c2", ContentHash: "h2", Text: "y", SourcePath: "b.md"},
	}
	require.NoError(t, repo.SaveChunks(chunks))
	require.NoError(t, repo.DeleteBySource("a.md"))

	count, err := repo.CountChunks()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestJobRepository_RoundTrip 测试摄取任务保存与读取
func TestJobRepository_RoundTrip(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewJobRepository(db)

	job := &corpus.IngestionJob{
		ID:                 "job-1",
		Status:             corpus.JobStatusRunning,
		Force:              true,
		DocumentsProcessed: 2,
		ChunksWritten:      17,
		Errors:             []corpus.DocumentError{{Path: "bad.md", Message: "embed failed"}},
		StartedAt:          time.Now().Truncate(time.Second),
	}
	require.NoError(t, repo.SaveJob(job))

	got, err := repo.GetJob("job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, corpus.JobStatusRunning, got.Status)
	assert.True(t, got.Force)
	assert.Equal(t, 17, got.ChunksWritten)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "bad.md", got.Errors[0].Path)
	assert.True(t, got.FinishedAt.IsZero())

	latest, err := repo.GetLatestJob()
	require.NoError(t, err)
	assert.Equal(t, "job-1", latest.ID)
}

// TestDigestRepository 测试文档摘要读写
func TestDigestRepository(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "digests.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewDigestRepository(db)

	digest, err := repo.GetDigest("a.md")
	require.NoError(t, err)
	assert.Empty(t, digest)

	require.NoError(t, repo.SaveDigest("a.md", "abc123"))
	digest, err = repo.GetDigest("a.md")
	require.NoError(t, err)
	assert.Equal(t, "abc123", digest)

	require.NoError(t, repo.SaveDigest("a.md", "def456"))
	digest, err = repo.GetDigest("a.md")
	require.NoError(t, err)
	assert.Equal(t, "def456", digest)
}
