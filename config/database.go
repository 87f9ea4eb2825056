package config

import (
	"fmt"
	"time"

	"bookstore_go/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig 数据库配置结构
type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"mysql"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT" envDefault:"3306"`
	User         string `env:"USER" envDefault:"root"`
	Password     string `env:"PASSWORD"`
	Name         string `env:"NAME" envDefault:"bookstore"`
	Charset      string `env:"CHARSET" envDefault:"utf8mb4"`
	SSLMode      string `env:"SSLMODE" envDefault:"disable"`
	DSN          string `env:"DSN"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"100"`
}

// ConnString 构建连接字符串，DB_DSN 优先
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	case DriverSQLite:
		return c.Name + ".db"
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.Name, c.Charset)
	}
}

// maskPassword 掩盖密码（只显示前2个字符）
func maskPassword(pwd string) string {
	if len(pwd) == 0 {
		return "(empty)"
	}
	if len(pwd) <= 2 {
		return "***"
	}
	return pwd[:2] + "***"
}

func dialector(c DatabaseConfig) (gorm.Dialector, error) {
	dsn := c.ConnString()
	switch c.Driver {
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// OpenDatabase 初始化数据库连接
func OpenDatabase(cfg *Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database
	log.Info("database config loaded",
		zap.String("driver", dbCfg.Driver),
		zap.String("host", dbCfg.Host),
		zap.String("port", dbCfg.Port),
		zap.String("user", dbCfg.User),
		zap.String("name", dbCfg.Name),
		zap.String("password", maskPassword(dbCfg.Password)),
	)

	d, err := dialector(dbCfg)
	if err != nil {
		return nil, err
	}

	// 配置Gorm日志
	logLevel := logger.Silent
	if cfg.Mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// 设置连接池参数
	sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if dbCfg.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// Migrate 自动建表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// CloseDatabase 关闭数据库连接
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
