package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// 令牌类型
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ErrWrongTokenType 令牌类型不符
var ErrWrongTokenType = errors.New("wrong token type")

// JWTConfig JWT配置结构
type JWTConfig struct {
	Secret     string        `env:"SECRET" envDefault:"your-secret-key-change-in-production"`
	Issuer     string        `env:"ISSUER" envDefault:"bookstore"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"1h"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// Claims JWT声明结构，sub 为用户邮箱
type Claims struct {
	UserID    uint   `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Admin     bool   `json:"admin"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// TokenSubject 签发令牌所需的用户信息
type TokenSubject struct {
	UserID    uint
	Email     string
	FirstName string
	LastName  string
	Admin     bool
}

// JWTService JWT服务
type JWTService struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTService 创建JWT服务实例
func NewJWTService(cfg JWTConfig) *JWTService {
	return &JWTService{config: cfg, now: time.Now}
}

// GenerateAccessToken 生成访问令牌
func (s *JWTService) GenerateAccessToken(sub TokenSubject) (string, error) {
	token, _, err := s.generate(sub, TokenTypeAccess, s.config.AccessTTL)
	return token, err
}

// GenerateRefreshToken 生成刷新令牌，同时返回其声明
func (s *JWTService) GenerateRefreshToken(sub TokenSubject) (string, *Claims, error) {
	return s.generate(sub, TokenTypeRefresh, s.config.RefreshTTL)
}

func (s *JWTService) generate(sub TokenSubject, typ string, ttl time.Duration) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		UserID:    sub.UserID,
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Admin:     sub.Admin,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.Email,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateToken 验证JWT token，并校验令牌类型
func (s *JWTService) ValidateToken(tokenString, expectedType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.config.Issuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if expectedType != "" && claims.Type != expectedType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// TokenSubject 从声明还原用户信息
func (c *Claims) TokenSubject() TokenSubject {
	return TokenSubject{
		UserID:    c.UserID,
		Email:     c.Subject,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Admin:     c.Admin,
	}
}
