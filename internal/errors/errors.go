// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义错误类型
type ErrorType string

const (
	// 通用错误类型
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeError        ErrorType = "processing_error"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTimeout      ErrorType = "timeout"

	// 生成服务相关
	ErrorTypeProvider        ErrorType = "provider_error"
	ErrorTypePartialSequence ErrorType = "partial_sequence"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewValidationError 创建验证错误
func NewValidationError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeValidation, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewProcessingError 创建处理错误
func NewProcessingError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeError, message, originalError)
}

// NewUnauthorizedError 创建未授权错误
func NewUnauthorizedError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeUnauthorized, message, originalError)
}

// NewConflictError 创建冲突错误
func NewConflictError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeConflict, message, originalError)
}

// NewTimeoutError 创建超时错误
func NewTimeoutError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeTimeout, message, originalError)
}

// NewProviderError 包装文本生成服务返回的错误，消息保持原样
func NewProviderError(originalError error) *AppError {
	msg := "provider request failed"
	if originalError != nil {
		msg = originalError.Error()
	}
	return &AppError{
		Type:    ErrorTypeProvider,
		Message: msg,
		Err:     originalError,
		Code:    generateErrorCode(ErrorTypeProvider),
	}
}

// NewPartialSequenceError 分段生成中断，已生成的部分保留
func NewPartialSequenceError(completed, total int, originalError error) *AppError {
	return NewAppError(ErrorTypePartialSequence,
		fmt.Sprintf("sequence stopped after %d of %d parts", completed, total), originalError)
}

// TypeOf 返回错误类型，非 AppError 时返回空字符串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// IsValidationError 检查是否为验证错误
func IsValidationError(err error) bool {
	return TypeOf(err) == ErrorTypeValidation
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsUnauthorizedError 检查是否为未授权错误
func IsUnauthorizedError(err error) bool {
	return TypeOf(err) == ErrorTypeUnauthorized
}

// IsConflictError 检查是否为冲突错误
func IsConflictError(err error) bool {
	return TypeOf(err) == ErrorTypeConflict
}

// IsProviderError 检查是否为生成服务错误
func IsProviderError(err error) bool {
	return TypeOf(err) == ErrorTypeProvider
}

// IsPartialSequenceError 检查是否为分段中断错误
func IsPartialSequenceError(err error) bool {
	return TypeOf(err) == ErrorTypePartialSequence
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeValidation:
		return "VALIDATION_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeError:
		return "PROCESSING_ERROR"
	case ErrorTypeUnauthorized:
		return "UNAUTHORIZED"
	case ErrorTypeConflict:
		return "CONFLICT"
	case ErrorTypeTimeout:
		return "TIMEOUT"
	case ErrorTypeProvider:
		return "PROVIDER_ERROR"
	case ErrorTypePartialSequence:
		return "PARTIAL_SEQUENCE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}
