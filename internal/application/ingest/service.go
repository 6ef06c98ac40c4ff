package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/config"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// Embedder 文本向量化接口
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	GetVectorDimension(ctx context.Context) (int, error)
}

// VectorStore 向量库接口
type VectorStore interface {
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	UpsertChunks(ctx context.Context, chunks []*corpus.Chunk) error
	DeleteBySource(ctx context.Context, sourcePath string) error
	DeleteByIDs(ctx context.Context, ids []string) error
	Count(ctx context.Context) (uint64, error)
	HealthCheck(ctx context.Context) error
}

// Service 摄取编排服务
// 组合 Loader → Chunker → Embedder → VectorStore，
// 支持全量与增量（仅变更内容）摄取
type Service struct {
	loader      *Loader
	chunker     *Chunker
	embedder    Embedder
	vectorStore VectorStore
	chunkRepo   corpus.ChunkRepository
	jobRepo     corpus.JobRepository
	digestRepo  corpus.DigestRepository
	concurrency int
	logger      *slog.Logger

	// 同一时刻只允许一个摄取任务
	runMu   sync.Mutex
	running bool

	// 跨任务的集合初始化只做一次
	collectionOnce sync.Once
	collectionErr  error
}

// NewService 创建摄取服务
func NewService(
	cfg *config.Config,
	loader *Loader,
	chunker *Chunker,
	embedder Embedder,
	vectorStore VectorStore,
	chunkRepo corpus.ChunkRepository,
	jobRepo corpus.JobRepository,
	digestRepo corpus.DigestRepository,
) *Service {
	concurrency := cfg.Ingestion.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Service{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		vectorStore: vectorStore,
		chunkRepo:   chunkRepo,
		jobRepo:     jobRepo,
		digestRepo:  digestRepo,
		concurrency: concurrency,
		logger:      log.NewModuleLogger("ingest", "service"),
	}
}

// StartIngestion 启动摄取任务并异步执行
// 返回 pending 状态的任务快照；已有任务运行时拒绝
func (s *Service) StartIngestion(force bool) (*corpus.IngestionJob, error) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil, corpus.NewValidationError("an ingestion job is already running")
	}
	s.running = true
	s.runMu.Unlock()

	job := &corpus.IngestionJob{
		ID:        uuid.New().String(),
		Status:    corpus.JobStatusPending,
		Force:     force,
		StartedAt: time.Now(),
	}

	if err := s.jobRepo.SaveJob(job); err != nil {
		s.finishRun()
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	snapshot := *job

	go func() {
		defer s.finishRun()
		s.runJob(context.Background(), job)
	}()

	return &snapshot, nil
}

// RunIngestion 同步执行一次摄取任务
func (s *Service) RunIngestion(ctx context.Context, force bool) (*corpus.IngestionJob, error) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return nil, corpus.NewValidationError("an ingestion job is already running")
	}
	s.running = true
	s.runMu.Unlock()
	defer s.finishRun()

	job := &corpus.IngestionJob{
		ID:        uuid.New().String(),
		Status:    corpus.JobStatusPending,
		Force:     force,
		StartedAt: time.Now(),
	}

	if err := s.jobRepo.SaveJob(job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.runJob(ctx, job)
	return job, nil
}

// finishRun 清除运行标记
func (s *Service) finishRun() {
	s.runMu.Lock()
	s.running = false
	s.runMu.Unlock()
}

// runJob 执行任务状态机：pending → running → completed/failed
func (s *Service) runJob(ctx context.Context, job *corpus.IngestionJob) {
	job.Status = corpus.JobStatusRunning
	s.jobRepo.SaveJob(job)

	s.logger.Info("Ingestion job started",
		"job_id", job.ID,
		"force", job.Force,
	)

	if err := s.ensureCollection(ctx); err != nil {
		s.failJob(job, fmt.Sprintf("vector store unavailable: %v", err))
		return
	}

	paths, err := s.loader.DiscoverPaths()
	if err != nil {
		s.failJob(job, fmt.Sprintf("document discovery failed: %v", err))
		return
	}

	// 并发处理文档，信号量限制在途嵌入调用数
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for _, path := range paths {
		wg.Add(1)
		sem <- struct{}{}

		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			written, skipped, err := s.processDocument(ctx, path, job.Force)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// 单文档失败只记录，不中断整个任务
				job.Errors = append(job.Errors, corpus.DocumentError{
					Path:    path,
					Message: err.Error(),
				})
				s.logger.Warn("Document ingestion failed",
					"job_id", job.ID,
					"path", path,
					"error", err,
				)
				return
			}
			if skipped {
				job.DocumentsSkipped++
			} else {
				job.DocumentsProcessed++
				job.ChunksWritten += written
			}
		}(path)
	}
	wg.Wait()

	job.Status = corpus.JobStatusCompleted
	job.FinishedAt = time.Now()
	s.jobRepo.SaveJob(job)

	s.logger.Info("Ingestion job completed",
		"job_id", job.ID,
		"documents_processed", job.DocumentsProcessed,
		"documents_skipped", job.DocumentsSkipped,
		"chunks_written", job.ChunksWritten,
		"errors", len(job.Errors),
	)
}

// failJob 标记任务失败
func (s *Service) failJob(job *corpus.IngestionJob, message string) {
	job.Status = corpus.JobStatusFailed
	job.FinishedAt = time.Now()
	job.Errors = append(job.Errors, corpus.DocumentError{Message: message})
	s.jobRepo.SaveJob(job)

	s.logger.Error("Ingestion job failed",
		"job_id", job.ID,
		"message", message,
	)
}

// ensureCollection 探测向量维度并确保集合存在
func (s *Service) ensureCollection(ctx context.Context) error {
	s.collectionOnce.Do(func() {
		dimension, err := s.embedder.GetVectorDimension(ctx)
		if err != nil {
			s.collectionErr = err
			return
		}
		s.collectionErr = s.vectorStore.EnsureCollection(ctx, uint64(dimension))
	})
	return s.collectionErr
}

// processDocument 处理单个文档，返回新嵌入写入的片段数与是否跳过
func (s *Service) processDocument(ctx context.Context, path string, force bool) (written int, skipped bool, err error) {
	doc, err := s.loader.LoadDocument(path)
	if err != nil {
		return 0, false, err
	}

	digest := corpus.HashText(doc.RawText)

	// 变更检测：按内容摘要而非 mtime，未变更则跳过
	if !force {
		previous, err := s.digestRepo.GetDigest(doc.Path)
		if err != nil {
			return 0, false, err
		}
		if previous == digest {
			return 0, true, nil
		}
	}

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return 0, false, err
	}

	// 样板片段默认不入库；文档内按内容哈希去重，先出现者保留
	seen := make(map[string]bool)
	filtered := make([]*corpus.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.IsBoilerplate || seen[chunk.ContentHash] {
			continue
		}
		seen[chunk.ContentHash] = true
		filtered = append(filtered, chunk)
	}

	// 按内容寻址跳过重复嵌入：哈希已入库的片段保留原有向量点，
	// 变更文档只为新增哈希调用嵌入服务
	existing := make(map[string]bool)
	if !force {
		existing, err = s.chunkRepo.GetHashesBySource(doc.Path)
		if err != nil {
			return 0, false, err
		}
	}

	toEmbed := make([]*corpus.Chunk, 0, len(filtered))
	for _, chunk := range filtered {
		if existing[chunk.ContentHash] {
			continue
		}
		toEmbed = append(toEmbed, chunk)
	}

	if err := s.embedChunks(ctx, toEmbed); err != nil {
		return 0, false, err
	}

	// 清除旧内容：force 整体替换，否则只删除不再出现的哈希对应的向量点
	if force {
		if err := s.vectorStore.DeleteBySource(ctx, doc.Path); err != nil {
			return 0, false, err
		}
	} else {
		stale := make([]string, 0, len(existing))
		for hash := range existing {
			if !seen[hash] {
				stale = append(stale, corpus.NewChunkID(doc.Path, hash))
			}
		}
		if len(stale) > 0 {
			if err := s.vectorStore.DeleteByIDs(ctx, stale); err != nil {
				return 0, false, err
			}
		}
	}
	if err := s.chunkRepo.DeleteBySource(doc.Path); err != nil {
		return 0, false, err
	}

	if len(toEmbed) > 0 {
		if err := s.vectorStore.UpsertChunks(ctx, toEmbed); err != nil {
			return 0, false, err
		}
	}
	if len(filtered) > 0 {
		if err := s.chunkRepo.SaveChunks(filtered); err != nil {
			return 0, false, err
		}
	}

	if err := s.digestRepo.SaveDigest(doc.Path, digest); err != nil {
		return 0, false, err
	}

	return len(toEmbed), false, nil
}

// embedChunks 批量向量化片段并回填向量
func (s *Service) embedChunks(ctx context.Context, chunks []*corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return corpus.NewEmbeddingError(
			fmt.Sprintf("expected %d vectors, got %d", len(chunks), len(vectors)), nil)
	}

	for i, chunk := range chunks {
		chunk.Vector = vectors[i]
	}
	return nil
}

// HandleContentChange 响应内容目录变更（watch 模式的增量摄取）
func (s *Service) HandleContentChange(path string, removed bool) {
	ctx := context.Background()

	if removed {
		relPath := s.loader.relativePath(path)
		s.logger.Info("Removing document from corpus",
			"path", relPath,
		)
		if err := s.vectorStore.DeleteBySource(ctx, relPath); err != nil {
			s.logger.Error("Failed to delete vectors for removed document",
				"path", relPath,
				"error", err,
			)
			return
		}
		if err := s.chunkRepo.DeleteBySource(relPath); err != nil {
			s.logger.Error("Failed to delete chunks for removed document",
				"path", relPath,
				"error", err,
			)
		}
		s.digestRepo.DeleteDigest(relPath)
		return
	}

	if err := s.ensureCollection(ctx); err != nil {
		s.logger.Error("Vector store unavailable, skipping incremental ingest",
			"path", path,
			"error", err,
		)
		return
	}

	written, skipped, err := s.processDocument(ctx, path, false)
	if err != nil {
		s.logger.Error("Incremental ingest failed",
			"path", path,
			"error", err,
		)
		return
	}

	s.logger.Info("Incremental ingest completed",
		"path", path,
		"chunks_written", written,
		"skipped", skipped,
	)
}

// GetJob 查询摄取任务
func (s *Service) GetJob(id string) (*corpus.IngestionJob, error) {
	return s.jobRepo.GetJob(id)
}

// GetLatestJob 查询最近一次摄取任务
func (s *Service) GetLatestJob() (*corpus.IngestionJob, error) {
	return s.jobRepo.GetLatestJob()
}

// Stats 语料库统计信息
type Stats struct {
	ChunkCount      int        `json:"chunk_count"`
	VectorCount     uint64     `json:"vector_count"`
	LastIngestion   *time.Time `json:"last_ingestion,omitempty"`
	VectorStoreUp   bool       `json:"vector_store_up"`
	LastJobStatus   string     `json:"last_job_status,omitempty"`
	LastJobDuration string     `json:"last_job_duration,omitempty"`
}

// GetStats 汇总语料库状态
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	count, err := s.chunkRepo.CountChunks()
	if err != nil {
		return nil, err
	}
	stats.ChunkCount = count

	if err := s.vectorStore.HealthCheck(ctx); err == nil {
		stats.VectorStoreUp = true
		if vectorCount, err := s.vectorStore.Count(ctx); err == nil {
			stats.VectorCount = vectorCount
		}
	}

	if job, err := s.jobRepo.GetLatestJob(); err == nil && job != nil {
		stats.LastJobStatus = string(job.Status)
		if !job.FinishedAt.IsZero() {
			finished := job.FinishedAt
			stats.LastIngestion = &finished
			stats.LastJobDuration = job.FinishedAt.Sub(job.StartedAt).String()
		}
	}

	return stats, nil
}
