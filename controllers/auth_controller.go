package controllers

import (
	"bookstore_go/middleware"
	"bookstore_go/services"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// AuthController 认证控制器
type AuthController struct {
	authService *services.AuthService
}

// NewAuthController 创建认证控制器实例
func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// refreshRequest 刷新/登出请求，令牌也可放在 Authorization 头
type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func refreshTokenFrom(c *gin.Context) string {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.RefreshToken != "" {
		return req.RefreshToken
	}
	return middleware.BearerToken(c)
}

// Register 用户注册
// @Summary 用户注册
// @Tags user
// @Router /api/user/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	user, tokens, err := ac.authService.Register(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, gin.H{
		"user":         user,
		"access_token": tokens.AccessToken,
		"token_type":   tokens.TokenType,
	})
}

// Login 用户登录
// @Summary 用户登录
// @Tags user
// @Router /api/user/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	user, tokens, err := ac.authService.Login(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "Login successful", gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"token_type":    tokens.TokenType,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"user":          user,
	})
}

// RefreshToken 刷新访问令牌
// @Router /api/user/refresh-token [post]
func (ac *AuthController) RefreshToken(c *gin.Context) {
	token := refreshTokenFrom(c)
	if token == "" {
		utils.Unauthorized(c, "Refresh token required")
		return
	}

	tokens, err := ac.authService.RefreshToken(c.Request.Context(), token)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, tokens)
}

// Logout 用户登出，吊销刷新令牌
// @Router /api/user/logout [post]
func (ac *AuthController) Logout(c *gin.Context) {
	ac.authService.Logout(c.Request.Context(), refreshTokenFrom(c))
	utils.SuccessWithMessage(c, "Logout successful", nil)
}
