package corpus

// RetrievalResult 单条检索结果，按查询临时生成
type RetrievalResult struct {
	ChunkID       string    // 命中的 Chunk ID
	ContentHash   string    // 命中片段的内容哈希
	Score         float32   // 相似度分数（余弦）
	Rank          int       // 去重与多样化后的最终排名，从 1 开始
	Text          string    // 片段文本
	SectionHeader string    // 章节标题
	SourcePath    string    // 来源文档路径
	Vector        []float32 // 命中向量，供 MMR 计算两两相似度
}

// Citation 引用，仅指向实际进入提示词的片段
type Citation struct {
	Label         string `json:"label"`          // 提示词中的标签，如 S1
	SourcePath    string `json:"source_path"`    // 来源文档路径
	SectionHeader string `json:"section_header"` // 章节标题
}
