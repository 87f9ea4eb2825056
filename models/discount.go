package models

// Discount 限时折扣模型，起止日期为闭区间
type Discount struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	BookID            uint    `gorm:"index;not null" json:"book_id"`
	DiscountStartDate Date    `gorm:"type:date;not null;index" json:"discount_start_date"`
	DiscountEndDate   Date    `gorm:"type:date;not null;index" json:"discount_end_date"`
	DiscountPrice     float64 `gorm:"type:decimal(10,2);not null" json:"discount_price"`
}

// TableName 指定表名
func (Discount) TableName() string {
	return "discounts"
}
