// Package errors 提供统一的错误定义
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeInvalidParam    ErrorCode = "INVALID_PARAM"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	CodeInternalError   ErrorCode = "INTERNAL_ERROR"

	// 选区获取错误
	CodeNoActiveContext      ErrorCode = "NO_ACTIVE_CONTEXT"
	CodeSelectionUnavailable ErrorCode = "SELECTION_UNAVAILABLE"
	CodeEmptySelection       ErrorCode = "EMPTY_SELECTION"

	// 凭证错误
	CodeMissingCredential ErrorCode = "MISSING_CREDENTIAL"

	// 图像生成服务错误
	CodeAuthError          ErrorCode = "AUTH_ERROR"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	CodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	CodeParseError         ErrorCode = "PARSE_ERROR"
	CodeInvalidImageURL    ErrorCode = "INVALID_IMAGE_URL"
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeAPIError           ErrorCode = "API_ERROR"

	// 存储错误
	CodeStorageError ErrorCode = "STORAGE_ERROR"
)

// 面向用户的提示语
const (
	MsgNoActiveContext      = "No active tab found"
	MsgSelectionUnavailable = "Failed to get text selection. Please try again."
	MsgEmptySelection       = "No text selected. Please highlight some text on the page."
	MsgMissingCredential    = "API key not configured. Please add your FAL API key in settings."
	MsgAuthError            = "Invalid or expired API key. Please check your API key in settings."
	MsgRateLimited          = "Rate limit exceeded. Please wait a moment and try again."
	MsgBadRequest           = "Invalid request. Please try a different prompt."
	MsgServiceUnavailable   = "Service temporarily unavailable. Please try again later."
	MsgInvalidResponse      = "The service returned an invalid response. Please try again."
	MsgInvalidImageURL      = "The service returned an invalid image URL. Please try again."
	MsgNetworkError         = "Network error. Please check your internet connection and try again."
	MsgGenerationFailed     = "Generation failed. Please try again."
	MsgSaveHistory          = "Failed to save history"
	MsgRetrieveHistory      = "Failed to retrieve history"
	MsgClearHistory         = "Failed to clear history"
)

// AppError 应用错误
// Message 面向用户展示，Detail 与 Err 仅用于诊断日志
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeInvalidParam, CodeEmptySelection:
		return http.StatusBadRequest
	case CodeNotFound, CodeNoActiveContext:
		return http.StatusNotFound
	case CodeMissingCredential:
		return http.StatusPreconditionFailed
	case CodeTooManyRequests, CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeAuthError, CodeBadRequest, CodeMalformedResponse, CodeParseError,
		CodeInvalidImageURL, CodeNetworkError, CodeAPIError, CodeSelectionUnavailable:
		return http.StatusBadGateway
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam    = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound        = New(CodeNotFound, "resource not found")
	ErrTooManyRequests = New(CodeTooManyRequests, "too many requests")
	ErrInternalError   = New(CodeInternalError, "internal server error")
)

// NoActiveContext 无前台页面
func NoActiveContext(err error) *AppError {
	return Wrap(err, CodeNoActiveContext, MsgNoActiveContext)
}

// SelectionUnavailable 选区提供方不可达
func SelectionUnavailable(err error) *AppError {
	return Wrap(err, CodeSelectionUnavailable, MsgSelectionUnavailable)
}

// EmptySelection 选区为空，reason 为空时使用默认提示
func EmptySelection(reason string) *AppError {
	if reason == "" {
		reason = MsgEmptySelection
	}
	return New(CodeEmptySelection, reason)
}

// MissingCredential 未配置凭证
func MissingCredential() *AppError {
	return New(CodeMissingCredential, MsgMissingCredential)
}

// Storage 存储访问失败
func Storage(err error, message string) *AppError {
	return Wrap(err, CodeStorageError, message)
}

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// CodeOf 返回错误码，非 AppError 返回 CodeUnknown
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// UserMessage 返回面向用户的提示语
func UserMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return MsgGenerationFailed
}
