package errors

import (
	"errors"
	"fmt"
	"net/http"

	"postquery/domain/shared"
)

// ErrorCode 错误码
type ErrorCode string

const (
	// 通用错误码
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeTooManyRequest     ErrorCode = "TOO_MANY_REQUESTS"
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// 业务错误码
	CodeQueryFailed ErrorCode = "QUERY_FAILED"
)

// QueryFailedMessage is the only text a caller sees when a read fails.
const QueryFailedMessage = "Error while processing request to retrieve posts!"

// AppError 应用错误
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode 返回对应的HTTP状态码
func (e *AppError) HTTPStatusCode() int {
	switch e.Code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequest:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// New 创建新错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// QueryFailed hides err behind the fixed read failure message.
func QueryFailed(err error) *AppError {
	return Wrap(err, CodeQueryFailed, QueryFailedMessage)
}

// FromDomainError 将领域错误映射为应用错误
func FromDomainError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var domainErr *shared.DomainError
	switch {
	case errors.Is(err, shared.ErrNotFound) && errors.As(err, &domainErr):
		return Wrap(err, CodeNotFound, domainErr.Message)
	case errors.Is(err, shared.ErrInvalidInput) && errors.As(err, &domainErr):
		return Wrap(err, CodeValidation, domainErr.Message)
	default:
		return Wrap(err, CodeInternal, "internal server error")
	}
}
