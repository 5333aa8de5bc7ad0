package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ActingUserHeader 指定操作用户的请求头
const ActingUserHeader = "X-Acting-User"

const actingUserKey = "actingUser"

// ActingUser 从请求头提取操作用户，缺省为后端登录用户
func ActingUser(defaultUser func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := strings.TrimSpace(c.GetHeader(ActingUserHeader))
		if user == "" && defaultUser != nil {
			user = defaultUser()
		}
		c.Set(actingUserKey, user)
		c.Next()
	}
}

// GetActingUser 从context中获取操作用户
func GetActingUser(c *gin.Context) string {
	user, exists := c.Get(actingUserKey)
	if !exists {
		return ""
	}
	return user.(string)
}

// CORS 跨域中间件
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowed[origin] || allowed["*"]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+ActingUserHeader)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
