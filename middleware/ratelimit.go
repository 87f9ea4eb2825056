package middleware

import (
	"fmt"
	"net/http"
	"time"

	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Allow 固定窗口限流（Redis INCR + EXPIRE），Redis 不可用时放行
func Allow(c *gin.Context, rdb *redis.Client, scope, subject string, limit int, window time.Duration) bool {
	if rdb == nil {
		return true
	}

	ctx := c.Request.Context()
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return true
	}

	// 窗口内第一次请求，设置过期时间
	if count == 1 {
		rdb.Expire(ctx, key, window)
	}

	return count <= int64(limit)
}

// RateLimit 按客户端IP限流
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Allow(c, rdb, scope, c.ClientIP(), limit, window) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			utils.Error(c, http.StatusTooManyRequests, utils.CodeTooManyRequests, "Too many requests, please slow down")
			c.Abort()
			return
		}
		c.Next()
	}
}
