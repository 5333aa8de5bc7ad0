package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foldermeta/internal/models"
)

func TestValidateIMAPConfig(t *testing.T) {
	valid := IMAPConfig{Host: "imap.example.com", Port: 993, Security: "SSL", Username: "alice", Password: "secret"}

	t.Run("有效配置", func(t *testing.T) {
		result := ValidateIMAPConfig(valid)
		assert.True(t, result.Valid)
		assert.Empty(t, result.Warnings)
		assert.NoError(t, result.Err())
	})

	t.Run("缺少必填项", func(t *testing.T) {
		result := ValidateIMAPConfig(IMAPConfig{Port: 0, Security: "SSL"})
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 3)

		err := result.Err()
		require.Error(t, err)
		var pe *ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, ErrorTypeConfig, pe.Type)
		assert.Contains(t, err.Error(), "host")
	})

	t.Run("明文连接给出警告和建议", func(t *testing.T) {
		cfg := valid
		cfg.Security = "NONE"
		cfg.Port = 143
		result := ValidateIMAPConfig(cfg)
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "INSECURE", result.Warnings[0].Code)
		require.Len(t, result.Suggestions, 1)
		assert.Equal(t, 993, result.Suggestions[0].NewValue)
	})

	t.Run("不支持的安全类型和认证方式", func(t *testing.T) {
		cfg := valid
		cfg.Security = "SSH"
		cfg.AuthMethod = "xoauth2"
		result := ValidateIMAPConfig(cfg)
		assert.False(t, result.Valid)
		assert.Len(t, result.Errors, 2)
	})

	t.Run("命名空间前缀与分隔符不一致", func(t *testing.T) {
		cfg := valid
		cfg.Namespaces = []NamespaceElement{{Type: models.NamespaceOther, Prefix: "user", Delimiter: "/"}}
		result := ValidateIMAPConfig(cfg)
		assert.True(t, result.Valid)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "PREFIX_DELIMITER", result.Warnings[0].Code)
	})
}
