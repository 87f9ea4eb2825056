package services

import (
	"context"
	"fmt"
	"time"

	"bookstore_go/models"
	"bookstore_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService 订单服务
type OrderService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewOrderService(db *gorm.DB, log *zap.Logger) *OrderService {
	return &OrderService{db: db, log: log, now: time.Now}
}

// OrderItemRequest 订单项
type OrderItemRequest struct {
	BookID   uint    `json:"book_id" binding:"required"`
	Quantity int     `json:"quantity" binding:"required,min=1"`
	Price    float64 `json:"price" binding:"gte=0"`
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateOrder 下单：订单与明细在同一事务内写入
func (ors *OrderService) CreateOrder(ctx context.Context, userID uint, req *CreateOrderRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, utils.InvalidInput("no items in the order")
	}

	// 1. 计算总额
	var total float64
	items := make([]models.OrderItem, 0, len(req.Items))
	bookIDs := make([]uint, 0, len(req.Items))
	for _, it := range req.Items {
		total += float64(it.Quantity) * it.Price
		items = append(items, models.OrderItem{
			BookID:   it.BookID,
			Quantity: it.Quantity,
			Price:    utils.Round2(it.Price),
		})
		bookIDs = append(bookIDs, it.BookID)
	}

	order := models.Order{
		UserID:     userID,
		OrderDate:  ors.now(),
		OrderTotal: utils.Round2(total),
		Items:      items,
	}

	err := ors.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 2. 校验书籍存在
		ids := uniqueIDs(bookIDs)
		var found int64
		if err := tx.Model(&models.Book{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
			return fmt.Errorf("check books: %w", err)
		}
		if found != int64(len(ids)) {
			var existing []uint
			if err := tx.Model(&models.Book{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
				return fmt.Errorf("check books: %w", err)
			}
			return utils.NotFoundError("book", firstMissing(ids, existing))
		}

		// 3. 订单与明细
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ors.log.Info("order created",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", userID),
		zap.Float64("total", order.OrderTotal))
	return &order, nil
}

// ListOrders 用户的订单，最新在前
func (ors *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := ors.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return nonNil(orders), nil
}

func firstMissing(want, have []uint) uint {
	set := make(map[uint]struct{}, len(have))
	for _, id := range have {
		set[id] = struct{}{}
	}
	for _, id := range want {
		if _, ok := set[id]; !ok {
			return id
		}
	}
	return 0
}
