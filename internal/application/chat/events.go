package chat

import "github.com/docschat/backend/internal/domain/corpus"

// 流式事件类型
const (
	// EventContent 回答文本片段
	EventContent = "content"
	// EventSource 引用来源
	EventSource = "source"
	// EventComplete 正常结束标记
	EventComplete = "complete"
	// EventError 终止错误
	EventError = "error"
)

// StreamEvent 对话流式事件
// 一次回答由若干 content/source 事件组成，
// 以恰好一个 complete 或 error 事件结束
type StreamEvent struct {
	Type string `json:"type"`
	// Content 文本片段，Type 为 content 时有效
	Content string `json:"content,omitempty"`
	// Source 引用来源，Type 为 source 时有效
	Source *corpus.Citation `json:"source,omitempty"`
	// Code 稳定错误码，Type 为 error 时有效
	Code string `json:"code,omitempty"`
	// Message 人类可读错误信息，Type 为 error 时有效
	Message string `json:"message,omitempty"`
	// Retryable 调用方是否可以重新提交，Type 为 error 时有效
	Retryable bool `json:"retryable,omitempty"`
}

// ContentEvent 构造文本片段事件
func ContentEvent(fragment string) StreamEvent {
	return StreamEvent{Type: EventContent, Content: fragment}
}

// SourceEvent 构造引用来源事件
func SourceEvent(citation *corpus.Citation) StreamEvent {
	return StreamEvent{Type: EventSource, Source: citation}
}

// CompleteEvent 构造结束事件
func CompleteEvent() StreamEvent {
	return StreamEvent{Type: EventComplete}
}

// ErrorEvent 从错误构造终止事件
func ErrorEvent(err error) StreamEvent {
	appErr := corpus.AsAppError(err)
	return StreamEvent{
		Type:      EventError,
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
	}
}
