package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
)

// fakeQueryEmbedder 返回固定查询向量并记录收到的查询文本
type fakeQueryEmbedder struct {
	lastQuery string
}

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	f.lastQuery = query
	return []float32{1, 0, 0}, nil
}

// fakeSearcher 返回预置候选集
type fakeSearcher struct {
	results []*corpus.RetrievalResult
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, limit uint64, sourceFilter string) ([]*corpus.RetrievalResult, error) {
	if uint64(len(f.results)) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

// candidate 构造测试候选
func candidate(hash string, score float32, vector []float32, text string) *corpus.RetrievalResult {
	return &corpus.RetrievalResult{
		ChunkID:       "chunk-" + hash,
		ContentHash:   hash,
		Score:         score,
		Text:          text,
		SectionHeader: "Section",
		SourcePath:    "doc.md",
		Vector:        vector,
	}
}

// newTestRetriever 创建参数可控的检索引擎
func newTestRetriever(results []*corpus.RetrievalResult, topK int, threshold, lambda float32) (*Retriever, *fakeQueryEmbedder) {
	cfg := config.DefaultConfig()
	cfg.Retrieval.TopK = topK
	cfg.Retrieval.CandidateK = 25
	cfg.Retrieval.SimilarityThreshold = threshold
	cfg.Retrieval.MMRLambda = lambda

	embedder := &fakeQueryEmbedder{}
	return NewRetriever(cfg, embedder, &fakeSearcher{results: results}), embedder
}

// TestRetrieve_DeduplicatesByHash 测试相同内容哈希只保留一条
func TestRetrieve_DeduplicatesByHash(t *testing.T) {
	results := []*corpus.RetrievalResult{
		candidate("h1", 0.95, []float32{1, 0, 0}, "first copy"),
		candidate("h1", 0.93, []float32{1, 0, 0}, "duplicate copy"),
		candidate("h2", 0.90, []float32{0, 1, 0}, "different content"),
	}
	retriever, _ := newTestRetriever(results, 5, 0.7, 0.5)

	selected, err := retriever.Retrieve(context.Background(), "query", nil, 0)
	require.NoError(t, err)

	require.Len(t, selected, 2)
	hashes := map[string]bool{}
	for _, r := range selected {
		assert.False(t, hashes[r.ContentHash], "duplicate hash returned")
		hashes[r.ContentHash] = true
	}
	// 先出现（相似度更高）者保留
	assert.Equal(t, "first copy", selected[0].Text)
}

// TestRetrieve_ThresholdFilter 测试低于阈值的候选被丢弃
func TestRetrieve_ThresholdFilter(t *testing.T) {
	results := []*corpus.RetrievalResult{
		candidate("h1", 0.92, []float32{1, 0, 0}, "relevant"),
		candidate("h2", 0.40, []float32{0, 1, 0}, "barely related"),
	}
	retriever, _ := newTestRetriever(results, 5, 0.7, 0.5)

	selected, err := retriever.Retrieve(context.Background(), "query", nil, 0)
	require.NoError(t, err)

	require.Len(t, selected, 1)
	for _, r := range selected {
		assert.GreaterOrEqual(t, r.Score, float32(0.7))
	}
}

// TestRetrieve_NoRelevantContent 测试全部候选被过滤时返回显式信号
func TestRetrieve_NoRelevantContent(t *testing.T) {
	results := []*corpus.RetrievalResult{
		candidate("h1", 0.2, []float32{1, 0, 0}, "unrelated"),
	}
	retriever, _ := newTestRetriever(results, 5, 0.7, 0.5)

	_, err := retriever.Retrieve(context.Background(), "query", nil, 0)
	assert.ErrorIs(t, err, corpus.ErrNoRelevantContent)
}

// TestRetrieve_MMRPrefersDiversity 测试 MMR 压制近重复候选
func TestRetrieve_MMRPrefersDiversity(t *testing.T) {
	// h2 与 h1 向量几乎相同，h3 正交；λ=0.5 时第二个选中的应是 h3
	results := []*corpus.RetrievalResult{
		candidate("h1", 0.95, []float32{1, 0, 0}, "top hit"),
		candidate("h2", 0.94, []float32{0.999, 0.04, 0}, "near duplicate of top"),
		candidate("h3", 0.85, []float32{0, 1, 0}, "different aspect"),
	}
	retriever, _ := newTestRetriever(results, 2, 0.7, 0.5)

	selected, err := retriever.Retrieve(context.Background(), "query", nil, 0)
	require.NoError(t, err)

	require.Len(t, selected, 2)
	assert.Equal(t, "top hit", selected[0].Text)
	assert.Equal(t, "different aspect", selected[1].Text)
	assert.Equal(t, 1, selected[0].Rank)
	assert.Equal(t, 2, selected[1].Rank)
}

// TestRetrieve_ThresholdMonotonicity 测试降低阈值只增不减
// MMR 选择先于阈值过滤，阈值变化不影响多样化取舍：
// 高阈值下返回的结果在低阈值下必须仍然返回
func TestRetrieve_ThresholdMonotonicity(t *testing.T) {
	results := []*corpus.RetrievalResult{
		candidate("hA", 0.90, []float32{1, 0, 0}, "top hit"),
		candidate("hB", 0.80, []float32{0.999, 0.04, 0}, "near duplicate of top"),
		candidate("hC", 0.75, []float32{0, 1, 0}, "different aspect"),
	}

	retrieve := func(threshold float32) map[string]bool {
		retriever, _ := newTestRetriever(results, 2, threshold, 0.5)
		selected, err := retriever.Retrieve(context.Background(), "query", nil, 0)
		require.NoError(t, err)
		hashes := map[string]bool{}
		for _, r := range selected {
			hashes[r.ContentHash] = true
		}
		return hashes
	}

	high := retrieve(0.80)
	low := retrieve(0.70)

	for hash := range high {
		assert.True(t, low[hash], "result %s returned at the higher threshold missing at the lower one", hash)
	}
	// 低阈值放行了此前被过滤的多样化结果
	assert.True(t, low["hC"])
}

// TestRetrieve_AugmentsQueryWithHistory 测试追问时携带最近的用户消息
func TestRetrieve_AugmentsQueryWithHistory(t *testing.T) {
	results := []*corpus.RetrievalResult{
		candidate("h1", 0.9, []float32{1, 0, 0}, "content"),
	}
	retriever, embedder := newTestRetriever(results, 5, 0.7, 0.5)

	conversation := &corpus.ConversationContext{
		SessionID: "s1",
		Turns: []corpus.ConversationTurn{
			{Role: corpus.RoleUser, Text: "what are indexes"},
			{Role: corpus.RoleAssistant, Text: "Indexes are..."},
		},
	}

	_, err := retriever.Retrieve(context.Background(), "tell me more", conversation, 0)
	require.NoError(t, err)

	assert.Contains(t, embedder.lastQuery, "what are indexes")
	assert.Contains(t, embedder.lastQuery, "tell me more")
}

// TestCosineSimilarity 测试余弦相似度计算
func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-6)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), cosineSimilarity([]float32{1}, []float32{1, 2}))
}
