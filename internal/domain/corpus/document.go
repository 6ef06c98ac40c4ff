package corpus

import "time"

// Document 语料文档
// 由 Loader 从内容根目录读取，单次摄取运行内不可变
type Document struct {
	Path         string    // 相对内容根目录的路径
	Title        string    // 文档标题（首个一级标题或文件名）
	RawText      string    // 原始文本内容
	LastModified time.Time // 文件修改时间
}

// IsEmpty 检查文档是否为空
func (d *Document) IsEmpty() bool {
	return len(d.RawText) == 0
}
