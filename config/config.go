package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config 应用配置
type Config struct {
	Mode            string        `env:"GIN_MODE" envDefault:"debug"`
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	FrontendDir     string        `env:"FRONTEND_DIR" envDefault:"./frontend/dist"`
	CORSOrigins     []string      `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173,http://localhost:4173" envSeparator:","`

	Upload   UploadConfig   `envPrefix:"UPLOAD_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	JWT      JWTConfig      `envPrefix:"JWT_"`
}

// UploadConfig 封面上传配置
type UploadConfig struct {
	Dir     string   `env:"DIR" envDefault:"./uploads/covers"`
	MaxSize int64    `env:"MAX_SIZE" envDefault:"5242880"`
	Formats []string `env:"FORMATS" envDefault:"jpg,jpeg,png,webp" envSeparator:","`
}

// Load 读取 .env 与环境变量
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// 文件不存在不是错误
		_ = godotenv.Load(f)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.IsRelease() && (c.JWT.Secret == "" || c.JWT.Secret == defaultJWTSecret) {
		return errors.New("JWT_SECRET must be set explicitly in release mode")
	}
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT token lifetimes must be positive")
	}
	return nil
}

// IsRelease 是否生产模式
func (c *Config) IsRelease() bool {
	return c.Mode == "release"
}

// Addr 监听地址
func (c *Config) Addr() string {
	return ":" + c.Port
}
