package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

// ErrorType 错误类型
type ErrorType string

const (
	// 连接错误
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeTimeout    ErrorType = "timeout"

	// 认证与权限错误
	ErrorTypeAuth       ErrorType = "authentication"
	ErrorTypePermission ErrorType = "permission"

	// 协议错误
	ErrorTypeProtocol    ErrorType = "protocol"
	ErrorTypeUnsupported ErrorType = "unsupported"

	// 数据错误
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeDataFormat ErrorType = "data_format"

	// 配置错误
	ErrorTypeConfig ErrorType = "configuration"

	// 未知错误
	ErrorTypeUnknown ErrorType = "unknown"
)

// ProviderError 后端错误
type ProviderError struct {
	Type      ErrorType `json:"type"`
	Op        string    `json:"op"`
	Folder    string    `json:"folder,omitempty"`
	Message   string    `json:"message"`
	Provider  string    `json:"provider"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
}

// Error 实现error接口
func (e *ProviderError) Error() string {
	if e.Folder != "" {
		return fmt.Sprintf("[%s] %s %q: %s", e.Provider, e.Op, e.Folder, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Op, e.Message)
}

// Unwrap 实现errors.Unwrap接口
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is 实现errors.Is接口
func (e *ProviderError) Is(target error) bool {
	if pe, ok := target.(*ProviderError); ok {
		return e.Type == pe.Type
	}
	return false
}

// ErrNotFound 用于 errors.Is 匹配的不存在错误
var ErrNotFound = &ProviderError{Type: ErrorTypeNotFound}

// IsNotFound 检查是否为对象不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ErrorPattern 错误模式
type ErrorPattern struct {
	Keywords  []string
	Type      ErrorType
	Retryable bool
}

// ErrorClassifier 错误分类器
type ErrorClassifier struct {
	patterns []ErrorPattern
}

// NewErrorClassifier 创建错误分类器
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{
		patterns: []ErrorPattern{
			{Keywords: []string{"connection refused", "connection reset", "broken pipe", "eof", "use of closed network connection"}, Type: ErrorTypeConnection, Retryable: true},
			{Keywords: []string{"timeout", "timed out", "deadline exceeded"}, Type: ErrorTypeTimeout, Retryable: true},
			{Keywords: []string{"authentication failed", "invalid credentials", "login failed"}, Type: ErrorTypeAuth},
			{Keywords: []string{"permission denied", "not allowed"}, Type: ErrorTypePermission},
			{Keywords: []string{"nonexistent", "does not exist", "no such mailbox"}, Type: ErrorTypeNotFound},
			{Keywords: []string{"unknown command", "not supported"}, Type: ErrorTypeUnsupported},
			{Keywords: []string{"syntax error", "protocol error"}, Type: ErrorTypeProtocol},
		},
	}
}

// ClassifyError 将底层错误归类为ProviderError
func (ec *ErrorClassifier) ClassifyError(err error, provider, op, folder string) *ProviderError {
	if err == nil {
		return nil
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	result := &ProviderError{
		Type:      ErrorTypeUnknown,
		Op:        op,
		Folder:    folder,
		Message:   err.Error(),
		Provider:  provider,
		Cause:     err,
		Timestamp: time.Now(),
	}

	// IMAP响应码优先
	var imapErr *imap.Error
	if errors.As(err, &imapErr) {
		switch imapErr.Code {
		case imap.ResponseCodeNonExistent:
			result.Type = ErrorTypeNotFound
			return result
		case imap.ResponseCodeNoPerm:
			result.Type = ErrorTypePermission
			return result
		case imap.ResponseCodeAuthenticationFailed:
			result.Type = ErrorTypeAuth
			return result
		}
		if imapErr.Type == imap.StatusResponseTypeBad {
			result.Type = ErrorTypeProtocol
			return result
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range ec.patterns {
		for _, keyword := range pattern.Keywords {
			if strings.Contains(errStr, keyword) {
				result.Type = pattern.Type
				result.Retryable = pattern.Retryable
				return result
			}
		}
	}

	return result
}

// defaultClassifier 包级共享的分类器
var defaultClassifier = NewErrorClassifier()

// NewNotFoundError 创建不存在错误
func NewNotFoundError(provider, op, folder string) *ProviderError {
	return &ProviderError{
		Type:      ErrorTypeNotFound,
		Op:        op,
		Folder:    folder,
		Message:   "folder does not exist",
		Provider:  provider,
		Timestamp: time.Now(),
	}
}

// NewUnsupportedError 后端不支持该操作
func NewUnsupportedError(provider, op, folder string) *ProviderError {
	return &ProviderError{
		Type:      ErrorTypeUnsupported,
		Op:        op,
		Folder:    folder,
		Message:   "operation not supported by backend",
		Provider:  provider,
		Timestamp: time.Now(),
	}
}
