package corpus

import "time"

// 摄取任务状态常量
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// DocumentError 单个文档的摄取失败记录
// 单文档失败不会中止整个任务
type DocumentError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// IngestionJob 摄取任务
// 状态机：pending -> running -> {completed | failed}
type IngestionJob struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	Force              bool            `json:"force"`
	DocumentsProcessed int             `json:"documents_processed"`
	DocumentsSkipped   int             `json:"documents_skipped"`
	ChunksWritten      int             `json:"chunks_written"`
	Errors             []DocumentError `json:"errors,omitempty"`
	StartedAt          time.Time       `json:"started_at"`
	FinishedAt         time.Time       `json:"finished_at,omitzero"`
}

// IsTerminal 检查任务是否已结束
func (j *IngestionJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
