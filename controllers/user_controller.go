package controllers

import (
	"bookstore_go/middleware"
	"bookstore_go/services"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// UserController 用户控制器
type UserController struct {
	authService  *services.AuthService
	orderService *services.OrderService
}

// NewUserController 创建用户控制器实例
func NewUserController(authService *services.AuthService, orderService *services.OrderService) *UserController {
	return &UserController{authService: authService, orderService: orderService}
}

// GetProfile 获取当前用户信息
// @Security Bearer
// @Router /api/user/profile [get]
func (uc *UserController) GetProfile(c *gin.Context) {
	user, err := uc.authService.Profile(c.Request.Context(), c.GetUint(middleware.ContextUserID))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, user)
}

// CreateOrder 下单
// @Security Bearer
// @Router /api/orders [post]
func (uc *UserController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	order, err := uc.orderService.CreateOrder(c.Request.Context(), c.GetUint(middleware.ContextUserID), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, gin.H{"order": order})
}

// ListOrders 当前用户的订单
// @Security Bearer
// @Router /api/orders [get]
func (uc *UserController) ListOrders(c *gin.Context) {
	orders, err := uc.orderService.ListOrders(c.Request.Context(), c.GetUint(middleware.ContextUserID))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": orders})
}
