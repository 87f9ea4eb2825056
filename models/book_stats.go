package models

// BookStats 书籍统计缓存（与 books 一一对应，主键即书籍ID）
type BookStats struct {
	ID          uint    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ReviewCount int64   `gorm:"not null" json:"review_count"`
	TotalStar   int64   `gorm:"not null" json:"total_star"`
	AvgRating   float64 `gorm:"not null" json:"avg_rating"`
	LowestPrice float64 `gorm:"type:decimal(10,2);not null" json:"lowest_price"`
}

// TableName 指定表名
func (BookStats) TableName() string {
	return "book_stats"
}

// NewBookStats 新书的初始统计：无评论，最低价即原价
func NewBookStats(b *Book) *BookStats {
	return &BookStats{
		ID:          b.ID,
		LowestPrice: b.BookPrice,
	}
}
