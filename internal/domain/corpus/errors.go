package corpus

import (
	"errors"
	"fmt"
)

// 错误码常量，对外暴露的稳定标识
const (
	CodeValidation  = "validation_error"
	CodeEmbedding   = "embedding_service_error"
	CodeVectorStore = "vector_store_error"
	CodeGeneration  = "generation_service_error"
	CodeInternal    = "internal_error"
)

// ErrNoRelevantContent 检索无相关内容
// 这是设计内的预期结果而非故障：生成器据此返回固定的兜底回答，
// 不会作为 error 事件暴露给调用方
var ErrNoRelevantContent = errors.New("no relevant content in corpus")

// AppError 带稳定错误码的应用错误
type AppError struct {
	Code      string // 稳定错误码
	Message   string // 人类可读信息
	Retryable bool   // 调用方是否可以重新提交
	Err       error  // 底层错误
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError 创建校验错误（立即拒绝，不重试）
func NewValidationError(message string) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Retryable: false}
}

// NewEmbeddingError 创建嵌入服务错误（瞬时故障，可重试）
func NewEmbeddingError(message string, err error) *AppError {
	return &AppError{Code: CodeEmbedding, Message: message, Retryable: true, Err: err}
}

// NewVectorStoreError 创建向量库错误（连接类故障，可重试）
func NewVectorStoreError(message string, err error) *AppError {
	return &AppError{Code: CodeVectorStore, Message: message, Retryable: true, Err: err}
}

// NewGenerationError 创建生成服务错误（流式中断，终止当前请求）
func NewGenerationError(message string, err error) *AppError {
	return &AppError{Code: CodeGeneration, Message: message, Retryable: false, Err: err}
}

// AsAppError 提取 AppError，非 AppError 归类为 internal_error
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Code: CodeInternal, Message: err.Error(), Retryable: false, Err: err}
}
