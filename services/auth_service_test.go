package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore_go/config"
	"bookstore_go/models"
	"bookstore_go/testutil"
	"bookstore_go/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newAuthService(t *testing.T, withRedis bool) (*AuthService, *gorm.DB, *config.JWTService) {
	t.Helper()
	db := testutil.DB(t)
	jwtSvc := config.NewJWTService(config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "bookstore-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	})
	cfg := DefaultAuthConfig()
	cfg.BcryptCost = bcrypt.MinCost
	if !withRedis {
		return NewAuthService(db, nil, jwtSvc, cfg, testutil.Logger(t)), db, jwtSvc
	}
	_, rdb := testutil.Redis(t)
	return NewAuthService(db, rdb, jwtSvc, cfg, testutil.Logger(t)), db, jwtSvc
}

func TestAuthService_Register(t *testing.T) {
	svc, db, jwtSvc := newAuthService(t, false)
	ctx := context.Background()

	user, tokens, err := svc.Register(ctx, &RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "  Ada@Example.com ",
		Password:  "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, user.Admin)
	assert.Empty(t, tokens.RefreshToken)

	claims, err := jwtSvc.ValidateToken(tokens.AccessToken, config.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Subject)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.NotEqual(t, "secret123", stored.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret123")))
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	svc, db, _ := newAuthService(t, false)
	testutil.SeedUser(t, db, "taken@example.com", "secret123", false)

	_, _, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "A", LastName: "B", Email: "TAKEN@example.com", Password: "secret123",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrConflict))
}

func TestAuthService_Login(t *testing.T) {
	svc, db, jwtSvc := newAuthService(t, true)
	ctx := context.Background()
	seeded := testutil.SeedUser(t, db, "reader@example.com", "secret123", true)

	user, tokens, err := svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "secret123"}, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
	assert.Equal(t, "Test", user.FirstName)
	assert.True(t, user.Admin)

	access, err := jwtSvc.ValidateToken(tokens.AccessToken, config.TokenTypeAccess)
	require.NoError(t, err)
	assert.True(t, access.Admin)

	_, err = jwtSvc.ValidateToken(tokens.RefreshToken, config.TokenTypeRefresh)
	require.NoError(t, err)
}

func TestAuthService_LoginErrors(t *testing.T) {
	svc, db, _ := newAuthService(t, false)
	ctx := context.Background()
	testutil.SeedUser(t, db, "reader@example.com", "secret123", false)

	_, _, err := svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "secret123"}, "127.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))
	assert.Contains(t, err.Error(), "Account is not registered")

	_, _, err = svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "wrong-pass1"}, "127.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))
	assert.Contains(t, err.Error(), "Incorrect password")
}

func TestAuthService_LoginLockout(t *testing.T) {
	svc, db, _ := newAuthService(t, true)
	ctx := context.Background()
	testutil.SeedUser(t, db, "reader@example.com", "secret123", false)

	bad := &LoginRequest{Email: "reader@example.com", Password: "wrong-pass1"}
	for i := 0; i < svc.authConfig.MaxLoginAttempts; i++ {
		_, _, err := svc.Login(ctx, bad, "10.0.0.1")
		require.True(t, errors.Is(err, utils.ErrUnauthorized), "attempt %d", i+1)
	}

	// 正确密码也被拒绝
	_, _, err := svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "secret123"}, "10.0.0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrTooManyRequests))

	events, err := svc.rdb.XRange(ctx, securityEventsStream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "login_locked", events[0].Values["event"])
	assert.Equal(t, "10.0.0.1", events[0].Values["ip"])

	ttl := svc.rdb.TTL(ctx, loginLimitKey("reader@example.com")).Val()
	assert.Greater(t, ttl, time.Duration(0))
}

func TestAuthService_LoginSuccessResetsFailures(t *testing.T) {
	svc, db, _ := newAuthService(t, true)
	ctx := context.Background()
	testutil.SeedUser(t, db, "reader@example.com", "secret123", false)

	for i := 0; i < svc.authConfig.MaxLoginAttempts-1; i++ {
		_, _, _ = svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "wrong-pass1"}, "10.0.0.1")
	}
	_, _, err := svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "secret123"}, "10.0.0.1")
	require.NoError(t, err)

	exists, err := svc.rdb.Exists(ctx, loginLimitKey("reader@example.com")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}

func TestAuthService_RefreshAndLogout(t *testing.T) {
	svc, db, jwtSvc := newAuthService(t, true)
	ctx := context.Background()
	testutil.SeedUser(t, db, "reader@example.com", "secret123", false)

	_, tokens, err := svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "secret123"}, "127.0.0.1")
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.Empty(t, refreshed.RefreshToken)
	_, err = jwtSvc.ValidateToken(refreshed.AccessToken, config.TokenTypeAccess)
	require.NoError(t, err)

	// 访问令牌不能用来刷新
	_, err = svc.RefreshToken(ctx, tokens.AccessToken)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))

	svc.Logout(ctx, tokens.RefreshToken)
	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))

	// 无效令牌登出不报错
	svc.Logout(ctx, "not-a-token")
}

func TestAuthService_RefreshDeletedUser(t *testing.T) {
	svc, db, _ := newAuthService(t, false)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "gone@example.com", "secret123", false)

	_, tokens, err := svc.Login(ctx, &LoginRequest{Email: "gone@example.com", Password: "secret123"}, "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.User{}, u.ID).Error)

	_, err = svc.RefreshToken(ctx, tokens.RefreshToken)
	assert.True(t, errors.Is(err, utils.ErrUnauthorized))
}

func TestAuthService_Profile(t *testing.T) {
	svc, db, _ := newAuthService(t, false)
	u := testutil.SeedUser(t, db, "reader@example.com", "secret123", false)

	info, err := svc.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", info.Email)

	_, err = svc.Profile(context.Background(), u.ID+100)
	assert.True(t, errors.Is(err, utils.ErrNotFound))
}
