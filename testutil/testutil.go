package testutil

import (
	"fmt"
	"strings"
	"testing"

	"bookstore_go/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 每个测试独立的内存 sqlite 数据库，已完成建表。
// 只保留一个连接，事务内的代码必须只使用事务句柄。
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}

	tb.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// Redis 基于 miniredis 的客户端
func Redis(tb testing.TB) (*miniredis.Miniredis, *redis.Client) {
	tb.Helper()
	mr := miniredis.RunT(tb)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() {
		_ = client.Close()
	})
	return mr, client
}

// Logger 测试日志
func Logger(tb testing.TB) *zap.Logger {
	tb.Helper()
	return zap.NewNop()
}
