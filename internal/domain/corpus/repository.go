package corpus

// ChunkRepository 片段元数据仓库接口
// sqlite 中保存片段元数据，供引用详情、统计与哈希幂等查询使用
type ChunkRepository interface {
	SaveChunks(chunks []*Chunk) error
	GetChunk(id string) (*Chunk, error)
	GetHashesBySource(sourcePath string) (map[string]bool, error)
	DeleteBySource(sourcePath string) error
	CountChunks() (int, error)
	ClearAllChunks() error
}

// JobRepository 摄取任务仓库接口
type JobRepository interface {
	SaveJob(job *IngestionJob) error
	GetJob(id string) (*IngestionJob, error)
	GetLatestJob() (*IngestionJob, error)
}

// DigestRepository 文档摘要仓库接口
// 记录每个文档的内容摘要，用于增量摄取的变更检测
type DigestRepository interface {
	GetDigest(path string) (string, error)
	SaveDigest(path, digest string) error
	DeleteDigest(path string) error
}

// ContextStore 会话上下文持久化钩子
// 默认实现为纯内存；需要持久化的调用方注入自己的实现
type ContextStore interface {
	Load(sessionID string) (*ConversationContext, error)
	Store(ctx *ConversationContext) error
}
