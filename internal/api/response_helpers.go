// internal/api/response_helpers.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusOK, data, message...)
}

// Created 创建成功响应
func (rh *ResponseHelper) Created(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusCreated, data, message...)
}

// Accepted is used when work continues in the background
func (rh *ResponseHelper) Accepted(c *gin.Context, data interface{}, message ...string) {
	rh.write(c, http.StatusAccepted, data, message...)
}

func (rh *ResponseHelper) write(c *gin.Context, status int, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(status, response)
}

// sanitizeErrorMessage hides messages that carry secrets. Provider messages are
// otherwise shown verbatim, which is what users need to act on them.
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key=", "key=", "secret", "bearer "} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, resource string, details ...string) {
	rh.Error(c, http.StatusNotFound, rh.getResourceNotFoundCode(resource), resource+" not found", details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// HandleError maps an application error to its status code and error code
func (rh *ResponseHelper) HandleError(c *gin.Context, err error, resource ...string) {
	status, code := statusFor(err)
	if code == ErrorNotFound && len(resource) > 0 {
		code = rh.getResourceNotFoundCode(resource[0])
	}

	if status >= http.StatusInternalServerError {
		utils.GetLogger().Error("request failed", map[string]interface{}{
			"path":       c.FullPath(),
			"request_id": rh.getRequestID(c),
			"error":      err.Error(),
		})
	}
	rh.Error(c, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest, ErrorBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorNotFound
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized, ErrorAPIKeyMissing
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict, ErrorSessionBusy
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout, ErrorTimeout
	case apperrors.ErrorTypeProvider:
		return http.StatusBadGateway, ErrorProviderFailed
	case apperrors.ErrorTypePartialSequence:
		return http.StatusBadGateway, ErrorSequenceStopped
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// getResourceNotFoundCode 根据资源类型生成错误代码
func (rh *ResponseHelper) getResourceNotFoundCode(resource string) string {
	switch resource {
	case "session":
		return ErrorSessionNotFound
	case "library entry":
		return ErrorLibraryEntryNotFound
	default:
		return ErrorNotFound
	}
}
