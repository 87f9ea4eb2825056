package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bookCacheTTL = 10 * time.Minute

// BookCache 书籍详情缓存，Redis 不可用时所有操作为空操作
type BookCache struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewBookCache 创建书籍缓存
func NewBookCache(rdb *redis.Client, log *zap.Logger) *BookCache {
	return &BookCache{rdb: rdb, log: log}
}

func bookCacheKey(bookID uint) string {
	return fmt.Sprintf("book:%d", bookID)
}

// Get 读取缓存，未命中返回 false
func (c *BookCache) Get(ctx context.Context, bookID uint, dest interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	cached, err := c.rdb.Get(ctx, bookCacheKey(bookID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("book cache read failed", zap.Uint("book_id", bookID), zap.Error(err))
		}
		return false
	}
	return json.Unmarshal(cached, dest) == nil
}

// Set 写入缓存
func (c *BookCache) Set(ctx context.Context, bookID uint, value interface{}) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, bookCacheKey(bookID), data, bookCacheTTL).Err(); err != nil {
		c.log.Warn("book cache write failed", zap.Uint("book_id", bookID), zap.Error(err))
	}
}

// Invalidate 清除书籍缓存
func (c *BookCache) Invalidate(ctx context.Context, bookID uint) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, bookCacheKey(bookID)).Err(); err != nil {
		c.log.Warn("book cache invalidate failed", zap.Uint("book_id", bookID), zap.Error(err))
	}
}
