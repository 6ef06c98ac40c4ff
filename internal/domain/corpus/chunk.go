package corpus

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// chunkNamespace 用于生成确定性 Chunk ID 的 UUID 命名空间
var chunkNamespace = uuid.MustParse("8f6c1f0a-5d2b-4e7a-9c3d-2a1b0e9f8d7c")

// Chunk 文本片段，检索的最小单位
type Chunk struct {
	// 基础标识
	ID          string // 确定性 UUID，由 source_path + content_hash 派生，同时作为向量库 point_id
	ContentHash string // 规范化文本的 SHA-256，用于去重与幂等

	// 核心内容
	Text          string // 片段文本（含相邻片段重叠部分）
	TokenCount    int    // 真实 tokenizer 计数
	SectionHeader string // 所属章节标题
	SourcePath    string // 来源文档路径
	IsBoilerplate bool   // 是否匹配模板/样板章节

	// 向量
	Vector []float32 // 嵌入向量，摄取时由 Embedder 填充

	// 扩展元数据（可选的开放键值，必填子集在存储边界校验）
	Extra map[string]string
}

// NewChunkID 由来源路径和内容哈希派生确定性 Chunk ID
// 相同内容重复摄取得到相同 ID，向量库 upsert 因此是无副作用写入
func NewChunkID(sourcePath, contentHash string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(sourcePath+":"+contentHash)).String()
}

// HashText 计算规范化文本的 SHA-256 哈希
// 规范化：统一换行符并去除首尾空白，保证逐字节稳定
func HashText(text string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}

// TextPreview 获取片段文本预览（前 200 字符）
func (c *Chunk) TextPreview() string {
	if len(c.Text) <= 200 {
		return c.Text
	}
	return c.Text[:200] + "..."
}
