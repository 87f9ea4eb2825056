package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`            // 业务状态码
	Message string      `json:"message"`         // 响应消息
	Data    interface{} `json:"data,omitempty"`  // 响应数据
	Error   string      `json:"error,omitempty"` // 错误信息
}

// 业务状态码常量
const (
	CodeSuccess             = 20000 // 成功
	CodeCreated             = 20100 // 已创建
	CodeError               = 40000 // 错误
	CodeUnauthorized        = 40100 // 未授权
	CodeForbidden           = 40300 // 禁止访问
	CodeNotFound            = 40400 // 资源不存在
	CodeConflict            = 40900 // 资源冲突
	CodeValidationError     = 42200 // 验证错误
	CodeTooManyRequests     = 42900 // 请求过于频繁
	CodeInternalServerError = 50000 // 内部错误
	CodeServiceUnavailable  = 50300 // 服务暂不可用
)

// 业务状态码对应的消息
var codeMessages = map[int]string{
	CodeSuccess:             "操作成功",
	CodeCreated:             "创建成功",
	CodeError:               "操作失败",
	CodeUnauthorized:        "未授权，请重新登录",
	CodeForbidden:           "禁止访问",
	CodeNotFound:            "资源不存在",
	CodeConflict:            "资源已存在",
	CodeValidationError:     "参数验证失败",
	CodeTooManyRequests:     "请求过于频繁",
	CodeInternalServerError: "服务器内部错误",
	CodeServiceUnavailable:  "服务暂不可用，请稍后重试",
}

// GetCodeMessage 获取状态码对应的消息
func GetCodeMessage(code int) string {
	if msg, exists := codeMessages[code]; exists {
		return msg
	}
	return "未知错误"
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: GetCodeMessage(CodeSuccess),
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeCreated,
		Message: GetCodeMessage(CodeCreated),
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, status, code int, message string) {
	if message == "" {
		message = GetCodeMessage(code)
	}
	c.JSON(status, Response{
		Code:    code,
		Message: message,
	})
}

// ValidationError 验证错误响应
func ValidationError(c *gin.Context, err error) {
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, Response{
			Code:    CodeValidationError,
			Message: GetCodeMessage(CodeValidationError),
			Data:    ve.Errors,
		})
		return
	}
	Error(c, http.StatusBadRequest, CodeValidationError, err.Error())
}

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, CodeForbidden, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, CodeNotFound, message)
}

// InternalError 内部错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeInternalServerError, message)
}

// HandleError 将服务层错误转换为统一响应
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		Error(c, appErr.Status, appErr.Code, appErr.Message)
		return
	}

	status := HTTPStatus(err)
	switch status {
	case http.StatusNotFound:
		NotFound(c, err.Error())
	case http.StatusConflict:
		Error(c, status, CodeConflict, err.Error())
	case http.StatusBadRequest:
		Error(c, status, CodeError, err.Error())
	case http.StatusUnauthorized:
		Unauthorized(c, err.Error())
	case http.StatusForbidden:
		Forbidden(c, err.Error())
	case http.StatusTooManyRequests:
		Error(c, status, CodeTooManyRequests, "")
	case http.StatusServiceUnavailable:
		Error(c, status, CodeServiceUnavailable, "")
	default:
		// 内部错误不向客户端暴露细节
		_ = c.Error(err)
		InternalError(c, "")
	}
}
