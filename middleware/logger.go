package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// RequestIDHeader 请求ID头
	RequestIDHeader = "X-Request-ID"

	accessLogStream    = "access_logs"
	accessLogMaxLen    = 100000
	accessLogQueueSize = 1000
	accessLogWorkers   = 3
)

// AccessLog 访问日志结构
type AccessLog struct {
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Route      string    `json:"route,omitempty"`
	Query      string    `json:"query,omitempty"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent,omitempty"`
	StatusCode int       `json:"status_code"`
	Latency    int64     `json:"latency_ms"`
	UserID     uint      `json:"user_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewLogger 初始化日志系统：debug 模式输出彩色控制台，其余输出 JSON
func NewLogger(mode string) (*zap.Logger, error) {
	var zapConfig zap.Config

	if mode == gin.DebugMode || mode == "" {
		// 开发环境 - 控制台输出
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// 生产环境 - JSON格式
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapConfig.Build()
}

// AccessLogger 访问日志：请求结束后入队，由 worker 池写 zap 与 Redis Stream
type AccessLogger struct {
	log   *zap.Logger
	rdb   *redis.Client
	queue chan *AccessLog
	wg    sync.WaitGroup
	once  sync.Once

	mu     sync.RWMutex // 保护 closed 与 queue 的关闭
	closed bool
}

// NewAccessLogger 创建访问日志并启动 worker，rdb 可为 nil
func NewAccessLogger(log *zap.Logger, rdb *redis.Client) *AccessLogger {
	al := &AccessLogger{
		log:   log,
		rdb:   rdb,
		queue: make(chan *AccessLog, accessLogQueueSize),
	}
	for i := 0; i < accessLogWorkers; i++ {
		al.wg.Add(1)
		go al.worker()
	}
	return al
}

func (al *AccessLogger) worker() {
	defer al.wg.Done()
	for entry := range al.queue {
		al.process(entry)
	}
}

// process 处理单条访问日志
func (al *AccessLogger) process(entry *AccessLog) {
	al.log.Info("access_log",
		zap.String("method", entry.Method),
		zap.String("path", entry.Path),
		zap.String("route", entry.Route),
		zap.String("query", entry.Query),
		zap.String("ip", entry.IP),
		zap.String("user_agent", entry.UserAgent),
		zap.Int("status_code", entry.StatusCode),
		zap.Int64("latency_ms", entry.Latency),
		zap.Uint("user_id", entry.UserID),
		zap.String("request_id", entry.RequestID),
		zap.String("error", entry.Error),
	)

	if al.rdb == nil {
		return
	}

	// 写入Redis Stream用于日志分析
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(entry)
	err := al.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: accessLogStream,
		Values: map[string]interface{}{
			"timestamp":   entry.Time.Unix(),
			"method":      entry.Method,
			"path":        entry.Path,
			"status_code": entry.StatusCode,
			"latency_ms":  entry.Latency,
			"ip":          entry.IP,
			"user_id":     entry.UserID,
			"full_data":   string(data),
		},
	}).Err()
	if err != nil {
		al.log.Debug("access log stream write failed", zap.Error(err))
		return
	}

	// 只保留最近的日志
	al.rdb.XTrimMaxLen(ctx, accessLogStream, accessLogMaxLen)
}

// Close 停止接收并等待队列写完
func (al *AccessLogger) Close() {
	al.once.Do(func() {
		al.mu.Lock()
		al.closed = true
		close(al.queue)
		al.mu.Unlock()
		al.wg.Wait()
	})
}

// Middleware 返回日志中间件
func (al *AccessLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		entry := &AccessLog{
			Time:       start,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Route:      c.FullPath(),
			Query:      c.Request.URL.RawQuery,
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			Latency:    time.Since(start).Milliseconds(),
			UserID:     c.GetUint(ContextUserID),
			RequestID:  requestID,
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}

		al.enqueue(entry)
	}
}

// enqueue 队列满或已关闭时直接丢弃，不阻塞请求
func (al *AccessLogger) enqueue(entry *AccessLog) {
	al.mu.RLock()
	defer al.mu.RUnlock()
	if al.closed {
		al.log.Debug("access logger closed, dropping entry",
			zap.String("method", entry.Method), zap.String("path", entry.Path))
		return
	}
	select {
	case al.queue <- entry:
	default:
		al.log.Warn("access log queue full, dropping entry",
			zap.String("method", entry.Method), zap.String("path", entry.Path))
	}
}
