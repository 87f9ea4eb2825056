package middleware

import (
	"strings"

	"bookstore_go/config"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID = "user_id"
	ContextClaims = "claims"
)

// BearerToken 从 Authorization 头提取令牌
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Auth 校验访问令牌，通过后写入 user_id 与 claims
func Auth(jwtService *config.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token, config.TokenTypeAccess)
		if err != nil {
			utils.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireAdmin 仅管理员可访问，需放在 Auth 之后
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ContextClaims)
		if !ok {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}
		if cl, _ := claims.(*config.Claims); cl == nil || !cl.Admin {
			utils.Forbidden(c, "Admin privileges required")
			c.Abort()
			return
		}
		c.Next()
	}
}
