package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore_go/config"
	"bookstore_go/models"
	"bookstore_go/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	securityEventsStream = "security_events"
	securityEventsMaxLen = 10000
)

// AuthConfig 认证配置
type AuthConfig struct {
	MaxLoginAttempts   int           // 最大连续登录失败次数
	LoginBlockDuration time.Duration // 登录封禁时长
	BcryptCost         int
}

// DefaultAuthConfig 默认认证配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		MaxLoginAttempts:   5,
		LoginBlockDuration: 15 * time.Minute,
		BcryptCost:         bcrypt.DefaultCost,
	}
}

// AuthService 认证服务
type AuthService struct {
	db         *gorm.DB
	rdb        *redis.Client
	jwtService *config.JWTService
	authConfig AuthConfig
	log        *zap.Logger
}

// NewAuthService 创建认证服务实例，rdb 可为 nil（不做登录封禁与令牌吊销）
func NewAuthService(db *gorm.DB, rdb *redis.Client, jwtService *config.JWTService, cfg AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{db: db, rdb: rdb, jwtService: jwtService, authConfig: cfg, log: log}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	FirstName string `json:"first_name" binding:"required,max=50"`
	LastName  string `json:"last_name" binding:"required,max=50"`
	Email     string `json:"email" binding:"required,email,max=70"`
	Password  string `json:"password" binding:"required,password"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserInfo 对外的用户信息
type UserInfo struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Admin     bool   `json:"admin"`
}

// TokenPair 登录签发的令牌
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

func publicUser(u *models.User) UserInfo {
	return UserInfo{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Admin: u.Admin}
}

func subjectOf(u *models.User) config.TokenSubject {
	return config.TokenSubject{UserID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Admin: u.Admin}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ==================== 注册 ====================

// Register 用户注册，管理员身份不能自行申请
func (as *AuthService) Register(ctx context.Context, req *RegisterRequest) (*UserInfo, *TokenPair, error) {
	email := normalizeEmail(req.Email)
	db := as.db.WithContext(ctx)

	// 1. 检查邮箱是否已存在
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, nil, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return nil, nil, utils.Conflict("Email is already registered")
	}

	// 2. 密码加密
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), as.authConfig.BcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 3. 创建用户
	user := models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     email,
		Password:  string(hashed),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil, utils.Conflict("Email is already registered")
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	// 4. 生成访问令牌
	token, err := as.jwtService.GenerateAccessToken(subjectOf(&user))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}

	as.log.Info("user registered", zap.Uint("user_id", user.ID))
	info := publicUser(&user)
	return &info, &TokenPair{AccessToken: token, TokenType: "bearer"}, nil
}

// ==================== 登录 ====================

func loginLimitKey(email string) string {
	return fmt.Sprintf("login:limit:%s", email)
}

// Login 用户登录，连续失败达到上限后封禁一段时间
func (as *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP string) (*UserInfo, *TokenPair, error) {
	email := normalizeEmail(req.Email)

	// 1. 检查是否已被封禁
	if as.rdb != nil {
		attempts, err := as.rdb.Get(ctx, loginLimitKey(email)).Int64()
		if err == nil && attempts >= int64(as.authConfig.MaxLoginAttempts) {
			return nil, nil, utils.TooManyRequests(fmt.Sprintf(
				"too many failed login attempts, try again in %v", as.authConfig.LoginBlockDuration))
		}
	}

	// 2. 查找用户
	var user models.User
	if err := as.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			as.recordLoginFailure(ctx, email, clientIP)
			return nil, nil, utils.UnauthorizedError("Account is not registered")
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	// 3. 验证密码
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		as.recordLoginFailure(ctx, email, clientIP)
		return nil, nil, utils.UnauthorizedError("Incorrect password")
	}

	// 4. 清除失败记录
	if as.rdb != nil {
		as.rdb.Del(ctx, loginLimitKey(email))
	}

	// 5. 生成令牌
	sub := subjectOf(&user)
	access, err := as.jwtService.GenerateAccessToken(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, _, err := as.jwtService.GenerateRefreshToken(sub)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	info := publicUser(&user)
	return &info, &TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"}, nil
}

// recordLoginFailure 记录登录失败，达到上限时写入安全事件流
func (as *AuthService) recordLoginFailure(ctx context.Context, email, ip string) {
	if as.rdb == nil {
		return
	}
	key := loginLimitKey(email)
	count, err := as.rdb.Incr(ctx, key).Result()
	if err != nil {
		as.log.Warn("record login failure failed", zap.Error(err))
		return
	}
	as.rdb.Expire(ctx, key, as.authConfig.LoginBlockDuration)

	if count == int64(as.authConfig.MaxLoginAttempts) {
		as.log.Warn("account locked after repeated login failures", zap.String("ip", ip))
		now := time.Now()
		err = as.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: securityEventsStream,
			Values: map[string]interface{}{
				"event":      "login_locked",
				"email":      email,
				"ip":         ip,
				"unblock_at": now.Add(as.authConfig.LoginBlockDuration).Unix(),
				"timestamp":  now.Unix(),
			},
		}).Err()
		if err != nil {
			as.log.Warn("security event write failed", zap.Error(err))
			return
		}
		as.rdb.XTrimMaxLen(ctx, securityEventsStream, securityEventsMaxLen)
	}
}

// ==================== 令牌 ====================

func revokedKey(jti string) string {
	return fmt.Sprintf("token:revoked:%s", jti)
}

// RefreshToken 用刷新令牌换取新的访问令牌
func (as *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	// 1. 验证令牌
	claims, err := as.jwtService.ValidateToken(refreshToken, config.TokenTypeRefresh)
	if err != nil {
		return nil, utils.UnauthorizedError("Invalid refresh token")
	}

	// 2. 检查是否已吊销
	if as.rdb != nil {
		exists, err := as.rdb.Exists(ctx, revokedKey(claims.ID)).Result()
		if err == nil && exists > 0 {
			return nil, utils.UnauthorizedError("Refresh token has been revoked")
		}
	}

	// 3. 用户必须仍然存在
	var user models.User
	if err := as.db.WithContext(ctx).Where("email = ?", claims.Subject).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.UnauthorizedError("User not found")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	access, err := as.jwtService.GenerateAccessToken(subjectOf(&user))
	if err != nil {
		return nil, fmt.Errorf("failed to generate new token: %w", err)
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer"}, nil
}

// Logout 吊销刷新令牌直至其过期；令牌无效时直接忽略
func (as *AuthService) Logout(ctx context.Context, refreshToken string) {
	if as.rdb == nil || refreshToken == "" {
		return
	}
	claims, err := as.jwtService.ValidateToken(refreshToken, config.TokenTypeRefresh)
	if err != nil {
		return
	}
	if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
		if err := as.rdb.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
			as.log.Warn("revoke refresh token failed", zap.Error(err))
		}
	}
}

// Profile 当前用户信息
func (as *AuthService) Profile(ctx context.Context, userID uint) (*UserInfo, error) {
	var user models.User
	if err := as.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user", userID)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	info := publicUser(&user)
	return &info, nil
}
