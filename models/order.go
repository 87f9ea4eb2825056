package models

import (
	"time"
)

// Order 订单模型
type Order struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	OrderDate  time.Time `gorm:"index" json:"order_date"`
	OrderTotal float64   `gorm:"type:decimal(10,2);not null" json:"order_total"`

	// 关联关系
	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem 订单明细模型
type OrderItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	OrderID  uint    `gorm:"index;not null" json:"order_id"`
	BookID   uint    `gorm:"index;not null" json:"book_id"`
	Quantity int     `gorm:"not null" json:"quantity"`
	Price    float64 `gorm:"type:decimal(10,2);not null" json:"price"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

func (OrderItem) TableName() string {
	return "order_items"
}
