package config

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewEngine 创建Gin实例
func NewEngine(cfg *Config) *gin.Engine {
	// 根据环境设置Gin模式
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery()) // 恢复panic
	return r
}

// HealthHandler 健康检查（包括数据库和Redis状态）
func HealthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := gin.H{
			"status":  "ok",
			"message": "Server is running",
		}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		// 检查数据库状态
		if db != nil {
			sqlDB, err := db.DB()
			switch {
			case err != nil:
				health["database"] = "error"
				status = http.StatusServiceUnavailable
			case sqlDB.PingContext(ctx) != nil:
				health["database"] = "disconnected"
				status = http.StatusServiceUnavailable
			default:
				health["database"] = "connected"
			}
		} else {
			health["database"] = "not initialized"
			status = http.StatusServiceUnavailable
		}

		// 检查Redis状态，Redis不可用不影响整体健康
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err == nil {
				health["redis"] = "connected"
			} else {
				health["redis"] = "disconnected"
			}
		} else {
			health["redis"] = "not initialized"
		}

		if status != http.StatusOK {
			health["status"] = "degraded"
		}
		c.JSON(status, health)
	}
}

// NewHTTPServer 创建带超时的HTTP服务器
func NewHTTPServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
