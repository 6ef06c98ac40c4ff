package ingest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
)

// newTestChunker 创建测试切分器
func newTestChunker(t *testing.T, minTokens, maxTokens, overlap int) *Chunker {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Ingestion.MinChunkTokens = minTokens
	cfg.Ingestion.MaxChunkTokens = maxTokens
	cfg.Ingestion.ChunkOverlapTokens = overlap

	chunker, err := NewChunker(cfg)
	require.NoError(t, err)
	return chunker
}

// testDoc 构造测试文档
func testDoc(path, text string) *corpus.Document {
	return &corpus.Document{
		Path:    path,
		Title:   "Test Document",
		RawText: text,
	}
}

// TestChunk_SplitsAtHeaders 测试按标题边界切分
func TestChunk_SplitsAtHeaders(t *testing.T) {
	chunker := newTestChunker(t, 1, 500, 0)

	text := "# Title\n\nIntro paragraph.\n\n## Section One\n\nFirst section content.\n\n## Section Two\n\nSecond section content."
	chunks, err := chunker.Chunk(testDoc("doc.md", text))
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "Title", chunks[0].SectionHeader)
	assert.Equal(t, "Section One", chunks[1].SectionHeader)
	assert.Equal(t, "Section Two", chunks[2].SectionHeader)
	assert.Contains(t, chunks[1].Text, "First section content.")
}

// TestChunk_RespectsMaxTokens 测试超长小节细分后不超上限
func TestChunk_RespectsMaxTokens(t *testing.T) {
	chunker := newTestChunker(t, 1, 40, 0)

	var sb strings.Builder
	sb.WriteString("## Long Section\n\n")
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "Paragraph number %d talks about database indexing strategies.\n\n", i)
	}

	chunks, err := chunker.Chunk(testDoc("doc.md", sb.String()))
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 40,
			"chunk exceeds token limit: %q", chunk.TextPreview())
	}
}

// TestChunk_MergesUndersized 测试碎片向后合并
func TestChunk_MergesUndersized(t *testing.T) {
	chunker := newTestChunker(t, 20, 500, 0)

	text := "## Tiny\n\nShort.\n\n## Substantial\n\nThis following section carries enough words to stand on its own as a meaningful retrieval unit for readers."
	chunks, err := chunker.Chunk(testDoc("doc.md", text))
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Short.")
	assert.Contains(t, chunks[0].Text, "meaningful retrieval unit")
	assert.Equal(t, "Tiny", chunks[0].SectionHeader)
}

// TestChunk_FlagsBoilerplate 测试样板小节标记
func TestChunk_FlagsBoilerplate(t *testing.T) {
	chunker := newTestChunker(t, 1, 500, 0)

	text := "## How to Use This Book\n\nNavigate with the arrows.\n\n## Chapter 1: Introduction to X\n\nReal substantive content about the topic."
	chunks, err := chunker.Chunk(testDoc("doc.md", text))
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.True(t, chunks[0].IsBoilerplate)
	assert.False(t, chunks[1].IsBoilerplate)
}

// TestChunk_Deterministic 测试相同输入产出逐字节一致
func TestChunk_Deterministic(t *testing.T) {
	chunker := newTestChunker(t, 10, 60, 15)

	var sb strings.Builder
	sb.WriteString("## Section\n\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Sentence %d describes the behavior of the storage engine in detail.\n\n", i)
	}
	doc := testDoc("doc.md", sb.String())

	first, err := chunker.Chunk(doc)
	require.NoError(t, err)
	second, err := chunker.Chunk(doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Text, second[i].Text)
		assert.Equal(t, first[i].ContentHash, second[i].ContentHash)
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

// TestChunk_OverlapCarriesContext 测试相邻片段携带重叠上下文
func TestChunk_OverlapCarriesContext(t *testing.T) {
	chunker := newTestChunker(t, 1, 50, 10)

	var sb strings.Builder
	sb.WriteString("## Section\n\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Unique marker %d appears in this paragraph about transactions.\n\n", i)
	}

	chunks, err := chunker.Chunk(testDoc("doc.md", sb.String()))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// 第二段开头应包含第一段末尾的内容
	firstTail := chunks[0].Text[len(chunks[0].Text)-20:]
	assert.Contains(t, chunks[1].Text, strings.TrimSpace(firstTail))
}

// TestChunk_EmptyDocument 测试空文档不产出片段
func TestChunk_EmptyDocument(t *testing.T) {
	chunker := newTestChunker(t, 1, 500, 0)

	chunks, err := chunker.Chunk(testDoc("doc.md", "   \n\n  "))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// TestChunk_HeaderInsideCodeBlockIgnored 测试代码块内的井号行不作为标题
func TestChunk_HeaderInsideCodeBlockIgnored(t *testing.T) {
	chunker := newTestChunker(t, 1, 500, 0)

	text := "## Shell Usage\n\nRun the following:\n\n```\n# this is a comment, not a header\necho hello\n```\n\nDone."
	chunks, err := chunker.Chunk(testDoc("doc.md", text))
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Shell Usage", chunks[0].SectionHeader)
	assert.Contains(t, chunks[0].Text, "not a header")
}

// TestSplitSentences 测试句子切分
func TestSplitSentences(t *testing.T) {
	sentences := splitSentences("First sentence. Second one! Third?")
	require.Len(t, sentences, 3)
	assert.Equal(t, "First sentence.", sentences[0])
}
