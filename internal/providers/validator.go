package providers

import (
	"fmt"
	"net"
	"strings"
)

// ValidationResult 验证结果
type ValidationResult struct {
	Valid       bool                   `json:"valid"`
	Errors      []ValidationError      `json:"errors,omitempty"`
	Warnings    []ValidationWarning    `json:"warnings,omitempty"`
	Suggestions []ValidationSuggestion `json:"suggestions,omitempty"`
}

// ValidationError 验证错误
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationWarning 验证警告
type ValidationWarning struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationSuggestion 验证建议
type ValidationSuggestion struct {
	Field      string      `json:"field"`
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion"`
	NewValue   interface{} `json:"new_value,omitempty"`
}

// Err 将验证错误合并为一个配置错误，没有错误时返回nil
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return &ProviderError{
		Type:     ErrorTypeConfig,
		Op:       "validate",
		Provider: "imap",
		Message:  strings.Join(messages, "; "),
	}
}

// ValidateIMAPConfig 检查IMAP后端配置，不建立连接
func ValidateIMAPConfig(config IMAPConfig) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if strings.TrimSpace(config.Host) == "" {
		result.addError("host", "REQUIRED", "IMAP host is required")
	} else if strings.ContainsAny(config.Host, " /") {
		result.addError("host", "INVALID", "IMAP host must be a hostname or IP address")
	}

	if config.Port <= 0 || config.Port > 65535 {
		result.addError("port", "INVALID", fmt.Sprintf("port %d is out of range", config.Port))
	}

	if config.Username == "" {
		result.addError("username", "REQUIRED", "IMAP username is required")
	}

	switch strings.ToLower(config.AuthMethod) {
	case "", "login", "plain":
	default:
		result.addError("auth_method", "UNSUPPORTED", "auth method must be login or plain")
	}

	switch strings.ToUpper(config.Security) {
	case "SSL", "TLS", "STARTTLS":
	case "NONE", "":
		result.addWarning("security", "INSECURE", "IMAP connection is not encrypted, credentials are sent in clear text")
		if config.Port == 143 {
			result.addSuggestion("port", "USE_SECURE_PORT", "Use secure IMAP port for better security", "Use port 993 with SSL encryption", 993)
		}
	default:
		result.addError("security", "UNSUPPORTED", "security must be one of SSL, TLS, STARTTLS, NONE")
	}

	if config.Password == "" {
		result.addWarning("password", "EMPTY", "IMAP password is empty")
	}

	if ip := net.ParseIP(config.Host); ip != nil && ip.IsLoopback() && strings.ToUpper(config.Security) != "NONE" {
		result.addWarning("host", "LOOPBACK_TLS", "TLS certificate verification against a loopback address usually fails")
	}

	for _, ns := range config.Namespaces {
		if ns.Prefix != "" && ns.Delimiter != "" && !strings.HasSuffix(ns.Prefix, ns.Delimiter) {
			result.addWarning("namespaces", "PREFIX_DELIMITER", fmt.Sprintf("namespace prefix %q does not end with delimiter %q", ns.Prefix, ns.Delimiter))
		}
	}

	return result
}

func (r *ValidationResult) addError(field, code, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Code: code, Message: message})
	r.Valid = false
}

func (r *ValidationResult) addWarning(field, code, message string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Code: code, Message: message})
}

func (r *ValidationResult) addSuggestion(field, code, message, suggestion string, newValue interface{}) {
	r.Suggestions = append(r.Suggestions, ValidationSuggestion{
		Field:      field,
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		NewValue:   newValue,
	})
}
