package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// QdrantStore 基于 Qdrant 的向量库
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewQdrantStore 创建向量库实例并建立 gRPC 连接
func NewQdrantStore(cfg *config.Config) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.GRPCPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Qdrant.Collection,
		logger:     log.NewModuleLogger("vector", "qdrant_store"),
	}, nil
}

// Close 关闭连接
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection 确保集合存在（余弦距离）
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return corpus.NewVectorStoreError("failed to list collections", err)
	}

	for _, name := range existing {
		if name == s.collection {
			return nil
		}
	}

	s.logger.Info("Creating qdrant collection",
		"collection", s.collection,
		"vector_size", vectorSize,
	)

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return corpus.NewVectorStoreError(
			fmt.Sprintf("failed to create collection %s", s.collection), err)
	}

	return nil
}

// UpsertChunks 批量写入片段向量
// 点 ID 由来源路径和内容哈希确定性派生，重复写入为幂等覆盖
func (s *QdrantStore) UpsertChunks(ctx context.Context, chunks []*corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 {
			return corpus.NewVectorStoreError(
				fmt.Sprintf("chunk %s has no vector", chunk.ID), nil)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id":       chunk.ID,
				"content_hash":   chunk.ContentHash,
				"text":           chunk.Text,
				"section_header": chunk.SectionHeader,
				"source_path":    chunk.SourcePath,
				"is_boilerplate": chunk.IsBoilerplate,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return corpus.NewVectorStoreError("failed to upsert points", err)
	}

	s.logger.Debug("Upserted chunk vectors",
		"collection", s.collection,
		"points", len(points),
	)

	return nil
}

// Search 向量相似度检索，返回按分数降序的候选集
// 请求携带向量返回，供检索层做多样性重排
func (s *QdrantStore) Search(ctx context.Context, vector []float32, limit uint64, sourceFilter string) ([]*corpus.RetrievalResult, error) {
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	}

	if sourceFilter != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_path", sourceFilter),
			},
		}
	}

	hits, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, corpus.NewVectorStoreError("vector search failed", err)
	}

	results := make([]*corpus.RetrievalResult, 0, len(hits))
	for rank, hit := range hits {
		results = append(results, s.hitToResult(hit, rank+1))
	}

	return results, nil
}

// hitToResult 将检索命中转换为领域结果
func (s *QdrantStore) hitToResult(hit *qdrant.ScoredPoint, rank int) *corpus.RetrievalResult {
	payload := hit.GetPayload()

	result := &corpus.RetrievalResult{
		ChunkID:       extractStringValue(payload["chunk_id"]),
		ContentHash:   extractStringValue(payload["content_hash"]),
		Score:         hit.GetScore(),
		Rank:          rank,
		Text:          extractStringValue(payload["text"]),
		SectionHeader: extractStringValue(payload["section_header"]),
		SourcePath:    extractStringValue(payload["source_path"]),
	}

	if vectors := hit.GetVectors(); vectors != nil {
		if dense := vectors.GetVector(); dense != nil {
			result.Vector = dense.GetData()
		}
	}

	return result
}

// extractStringValue 从 qdrant.Value 提取字符串值
func extractStringValue(val *qdrant.Value) string {
	if val == nil {
		return ""
	}
	if s, ok := val.GetKind().(*qdrant.Value_StringValue); ok {
		return s.StringValue
	}
	return ""
}

// DeleteBySource 删除某文档的所有向量点
func (s *QdrantStore) DeleteBySource(ctx context.Context, sourcePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("source_path", sourcePath),
			},
		}),
	})
	if err != nil {
		return corpus.NewVectorStoreError(
			fmt.Sprintf("failed to delete points for %s", sourcePath), err)
	}

	s.logger.Debug("Deleted chunk vectors",
		"collection", s.collection,
		"source_path", sourcePath,
	)

	return nil
}

// DeleteByIDs 按点 ID 删除向量点
func (s *QdrantStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return corpus.NewVectorStoreError("failed to delete points by id", err)
	}

	s.logger.Debug("Deleted chunk vectors by id",
		"collection", s.collection,
		"points", len(ids),
	)

	return nil
}

// Count 统计集合中的向量点数量
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
	})
	if err != nil {
		return 0, corpus.NewVectorStoreError("failed to count points", err)
	}
	return count, nil
}

// HealthCheck 检查 Qdrant 服务可用性
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return corpus.NewVectorStoreError("qdrant health check failed", err)
	}
	return nil
}
