package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	registerOnce sync.Once
	// 自定义验证错误缓存
	validationErrorsCache sync.Map
)

// RegisterValidators 在gin的验证引擎上注册自定义规则，并以json标签作为字段名
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = v.RegisterValidation("rating", validateRating)
		_ = v.RegisterValidation("password", validatePassword)
	})
}

// ValidationErrors 验证错误结构
type ValidationErrors struct {
	Errors map[string]string `json:"errors"`
}

func (ve *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %v", ve.Errors)
}

// BindJSON 绑定并验证请求体
func BindJSON(c *gin.Context, obj interface{}) error {
	RegisterValidators()
	if err := c.ShouldBindJSON(obj); err != nil {
		return translate(err)
	}
	return nil
}

// BindQuery 绑定并验证查询参数
func BindQuery(c *gin.Context, obj interface{}) error {
	RegisterValidators()
	if err := c.ShouldBindQuery(obj); err != nil {
		return translate(err)
	}
	return nil
}

func translate(err error) error {
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		return formatValidationErrors(fieldErrors)
	}
	return err
}

// formatValidationErrors 格式化验证错误信息
func formatValidationErrors(fieldErrors []validator.FieldError) error {
	errorMap := make(map[string]string, len(fieldErrors))

	for _, fe := range fieldErrors {
		field := fe.Field()
		tag := fe.Tag()
		param := fe.Param()

		cacheKey := field + "_" + tag + "_" + param
		if msg, ok := validationErrorsCache.Load(cacheKey); ok {
			errorMap[field] = msg.(string)
			continue
		}

		msg := getErrorMessage(field, tag, param)
		validationErrorsCache.Store(cacheKey, msg)
		errorMap[field] = msg
	}

	return &ValidationErrors{Errors: errorMap}
}

// getErrorMessage 获取错误消息
func getErrorMessage(field, tag, param string) string {
	errorMessages := map[string]string{
		"required": "%s不能为空",
		"email":    "%s格式不正确",
		"min":      "%s不能小于%s",
		"max":      "%s不能大于%s",
		"gt":       "%s必须大于%s",
		"gte":      "%s必须大于或等于%s",
		"lt":       "%s必须小于%s",
		"lte":      "%s必须小于或等于%s",
		"oneof":    "%s必须是以下值之一: %s",
		"dive":     "%s格式不正确",
		"rating":   "%s必须是1到5之间的整数",
		"password": "%s至少8位，且同时包含字母和数字",
	}

	fieldNames := map[string]string{
		"email":        "邮箱",
		"password":     "密码",
		"first_name":   "名",
		"last_name":    "姓",
		"book_id":      "书籍ID",
		"review_title": "评论标题",
		"rating_star":  "评分",
		"book_price":   "价格",
		"quantity":     "数量",
		"items":        "订单项",
	}

	fieldName := fieldNames[field]
	if fieldName == "" {
		fieldName = field
	}

	template, exists := errorMessages[tag]
	if !exists {
		return fmt.Sprintf("%s验证失败", fieldName)
	}
	if strings.Count(template, "%s") == 1 {
		return fmt.Sprintf(template, fieldName)
	}
	return fmt.Sprintf(template, fieldName, param)
}

// validateRating 评分必须在1..5之间
func validateRating(fl validator.FieldLevel) bool {
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r := fl.Field().Int()
		return r >= 1 && r <= 5
	default:
		return false
	}
}

// validatePassword 密码至少8位，包含字母和数字
func validatePassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var hasLetter, hasNumber bool
	for _, ch := range password {
		switch {
		case ch >= '0' && ch <= '9':
			hasNumber = true
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasNumber
}
