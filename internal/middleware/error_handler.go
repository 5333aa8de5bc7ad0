package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"

	"foldermeta/internal/config"
	"foldermeta/internal/providers"
	"foldermeta/internal/query"
	"foldermeta/internal/storage"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一错误响应格式
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   string      `json:"error"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ErrorHandler 错误处理中间件
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if err, ok := recovered.(string); ok {
			handlePanicError(c, err)
		} else if err, ok := recovered.(error); ok {
			handlePanicError(c, err.Error())
		} else {
			handlePanicError(c, fmt.Sprintf("Unknown error: %v", recovered))
		}
	})
}

// handlePanicError 处理panic错误
func handlePanicError(c *gin.Context, err string) {
	log.Printf("Panic recovered: %s", err)

	if config.Env.IsDevelopmentMode() {
		log.Printf("Stack trace: %s", debug.Stack())
	}

	response := ErrorResponse{
		Success: false,
		Error:   "Internal Server Error",
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
	}

	if config.Env.IsDevelopmentMode() {
		response.Details = err
	}

	c.JSON(http.StatusInternalServerError, response)
	c.Abort()
}

// StatusForError 根据错误类型选择HTTP状态码
func StatusForError(err error) int {
	var conflictErr *query.ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict
	}

	var configErr *storage.ConfigError
	if errors.As(err, &configErr) {
		return http.StatusBadRequest
	}

	if errors.Is(err, query.ErrQueryNotRegistered) {
		return http.StatusNotImplemented
	}

	var providerErr *providers.ProviderError
	if errors.As(err, &providerErr) {
		switch providerErr.Type {
		case providers.ErrorTypeNotFound:
			return http.StatusNotFound
		case providers.ErrorTypePermission:
			return http.StatusForbidden
		case providers.ErrorTypeUnsupported:
			return http.StatusNotImplemented
		default:
			return http.StatusBadGateway
		}
	}

	return http.StatusInternalServerError
}

// HandleQueryError 处理查询返回的错误，状态码由错误类型决定
func HandleQueryError(c *gin.Context, err error) {
	HandleError(c, err, StatusForError(err))
}

// HandleError 处理业务错误
func HandleError(c *gin.Context, err error, statusCode int) {
	if err == nil {
		return
	}

	log.Printf("Business error: %v", err)

	response := ErrorResponse{
		Success: false,
		Error:   getErrorMessage(statusCode),
		Message: err.Error(),
		Code:    getErrorCode(statusCode),
	}

	var conflictErr *query.ConflictError
	if errors.As(err, &conflictErr) {
		response.Details = map[string]interface{}{
			"owner":       conflictErr.Owner,
			"type":        conflictErr.Type,
			"existing":    conflictErr.Existing,
			"conflicting": conflictErr.Conflicting,
		}
	} else if config.Env.IsDevelopmentMode() {
		response.Details = map[string]interface{}{
			"error_type": fmt.Sprintf("%T", err),
		}
	}

	c.JSON(statusCode, response)
	c.Abort()
}

// HandleValidationError 处理验证错误
func HandleValidationError(c *gin.Context, field string, message string) {
	response := ErrorResponse{
		Success: false,
		Error:   "Validation Error",
		Message: fmt.Sprintf("Validation failed for field '%s': %s", field, message),
		Code:    "VALIDATION_ERROR",
		Details: map[string]string{
			"field":   field,
			"message": message,
		},
	}

	c.JSON(http.StatusBadRequest, response)
	c.Abort()
}

// HandleNotFoundError 处理资源不存在错误
func HandleNotFoundError(c *gin.Context, resource string, id interface{}) {
	response := ErrorResponse{
		Success: false,
		Error:   "Resource Not Found",
		Message: fmt.Sprintf("%s '%v' not found", resource, id),
		Code:    "NOT_FOUND",
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}

	c.JSON(http.StatusNotFound, response)
	c.Abort()
}

// getErrorMessage 根据状态码获取错误消息
func getErrorMessage(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusConflict:
		return "Conflict"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	case http.StatusNotImplemented:
		return "Not Implemented"
	case http.StatusBadGateway:
		return "Bad Gateway"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Unknown Error"
	}
}

// getErrorCode 根据状态码获取错误代码
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusForbidden:
		return "FORBIDDEN"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusConflict:
		return "CONFLICT"
	case http.StatusInternalServerError:
		return "INTERNAL_SERVER_ERROR"
	case http.StatusNotImplemented:
		return "NOT_IMPLEMENTED"
	case http.StatusBadGateway:
		return "BAD_GATEWAY"
	case http.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
