package models

import (
	"gorm.io/gorm"
)

// Book 书籍模型
type Book struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	CategoryID     uint    `gorm:"index;not null" json:"category_id"`
	AuthorID       uint    `gorm:"index;not null" json:"author_id"`
	BookTitle      string  `gorm:"type:varchar(255);not null;index" json:"book_title"`
	BookSummary    string  `gorm:"type:text" json:"book_summary,omitempty"`
	BookPrice      float64 `gorm:"type:decimal(10,2);not null" json:"book_price"`
	BookCoverPhoto *string `gorm:"type:varchar(40)" json:"book_cover_photo,omitempty"`
}

// TableName 指定表名
func (Book) TableName() string {
	return "books"
}

// AfterCreate 创建书籍后同步写入统计行，保证每本书恰好一条 book_stats
func (b *Book) AfterCreate(tx *gorm.DB) error {
	return tx.Create(NewBookStats(b)).Error
}
