package chat

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// QueryEmbedder 查询向量化接口
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Searcher 向量检索接口
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit uint64, sourceFilter string) ([]*corpus.RetrievalResult, error)
}

// Retriever 检索引擎
// 相似度检索后按内容哈希去重、MMR 多样化重排、相关度阈值过滤
type Retriever struct {
	embedder   QueryEmbedder
	searcher   Searcher
	topK       int
	candidateK int
	threshold  float32
	mmrLambda  float32
	logger     *slog.Logger
}

// NewRetriever 创建检索引擎
func NewRetriever(cfg *config.Config, embedder QueryEmbedder, searcher Searcher) *Retriever {
	return &Retriever{
		embedder:   embedder,
		searcher:   searcher,
		topK:       cfg.Retrieval.TopK,
		candidateK: cfg.Retrieval.CandidateK,
		threshold:  cfg.Retrieval.SimilarityThreshold,
		mmrLambda:  cfg.Retrieval.MMRLambda,
		logger:     log.NewModuleLogger("chat", "retriever"),
	}
}

// Retrieve 检索与查询相关的片段
// topK 传 0 时使用配置默认值；无相关内容时返回 ErrNoRelevantContent
func (r *Retriever) Retrieve(ctx context.Context, query string, conversation *corpus.ConversationContext, topK int) ([]*corpus.RetrievalResult, error) {
	if topK <= 0 {
		topK = r.topK
	}

	augmented := r.augmentQuery(query, conversation)

	vector, err := r.embedder.EmbedQuery(ctx, augmented)
	if err != nil {
		return nil, err
	}

	candidates, err := r.searcher.Search(ctx, vector, uint64(r.candidateK), "")
	if err != nil {
		return nil, err
	}

	// 按内容哈希去重，先出现者（相似度更高）保留
	seen := make(map[string]bool)
	deduplicated := make([]*corpus.RetrievalResult, 0, len(candidates))
	for _, candidate := range candidates {
		if seen[candidate.ContentHash] {
			continue
		}
		seen[candidate.ContentHash] = true
		deduplicated = append(deduplicated, candidate)
	}

	// MMR 在全候选集上选择，选择结果不依赖阈值
	selected := r.selectMMR(deduplicated, topK)

	// 阈值过滤只作用于已选集合：降低阈值只会放行更多已选结果，
	// 不会改变 MMR 的取舍
	filtered := make([]*corpus.RetrievalResult, 0, len(selected))
	for _, result := range selected {
		if result.Score >= r.threshold {
			filtered = append(filtered, result)
		}
	}

	if len(filtered) == 0 {
		r.logger.Info("No relevant content for query",
			"candidates", len(candidates),
			"after_mmr", len(selected),
		)
		return nil, corpus.ErrNoRelevantContent
	}

	// 重排后的名次
	for rank, result := range filtered {
		result.Rank = rank + 1
	}

	r.logger.Debug("Retrieval completed",
		"candidates", len(candidates),
		"after_dedupe", len(deduplicated),
		"after_mmr", len(selected),
		"selected", len(filtered),
	)

	return filtered, nil
}

// augmentQuery 用最近的用户消息扩充查询，辅助代词与追问的解析
func (r *Retriever) augmentQuery(query string, conversation *corpus.ConversationContext) string {
	if conversation == nil {
		return query
	}

	recent := conversation.LastUserTurns(2)
	if len(recent) == 0 {
		return query
	}

	var sb strings.Builder
	for _, turn := range recent {
		if strings.TrimSpace(turn.Text) == query {
			continue
		}
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	sb.WriteString(query)
	return sb.String()
}

// selectMMR 最大边际相关性选择
// 迭代选取 λ·relevance − (1−λ)·max_similarity(candidate, selected) 最大的候选，
// 在相关度与多样性之间折中，避免返回语义重复的片段
func (r *Retriever) selectMMR(candidates []*corpus.RetrievalResult, topK int) []*corpus.RetrievalResult {
	if len(candidates) <= 1 {
		return candidates
	}

	selected := make([]*corpus.RetrievalResult, 0, topK)
	remaining := append([]*corpus.RetrievalResult(nil), candidates...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := float32(math.Inf(-1))

		for i, candidate := range remaining {
			score := r.mmrLambda * candidate.Score

			if len(selected) > 0 && len(candidate.Vector) > 0 {
				maxSim := float32(0)
				for _, chosen := range selected {
					if sim := cosineSimilarity(candidate.Vector, chosen.Vector); sim > maxSim {
						maxSim = sim
					}
				}
				score -= (1 - r.mmrLambda) * maxSim
			}

			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

// cosineSimilarity 计算两个向量的余弦相似度
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
