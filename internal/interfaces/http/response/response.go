package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docschat/backend/internal/domain/corpus"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Accepted 异步任务已受理
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    0,
		Message: "accepted",
		Data:    data,
	})
}

// Error 按应用错误码返回结构化错误
func Error(c *gin.Context, err error) {
	appErr := corpus.AsAppError(err)

	c.JSON(httpStatus(appErr.Code), ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Retryable: appErr.Retryable,
	})
}

// httpStatus 错误码到 HTTP 状态码的映射
func httpStatus(code string) int {
	switch code {
	case corpus.CodeValidation:
		return http.StatusBadRequest
	case corpus.CodeEmbedding, corpus.CodeVectorStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
