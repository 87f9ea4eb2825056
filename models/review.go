package models

import (
	"time"
)

// Review 书评模型（只追加，不修改）
type Review struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BookID        uint      `gorm:"index;not null" json:"book_id"`
	ReviewTitle   string    `gorm:"type:varchar(120)" json:"review_title"`
	ReviewDetails *string   `gorm:"type:text" json:"review_details,omitempty"`
	ReviewDate    time.Time `gorm:"index" json:"review_date"`
	RatingStar    int       `gorm:"not null;index" json:"rating_star"`
}

// TableName 指定表名
func (Review) TableName() string {
	return "reviews"
}
