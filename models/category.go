package models

// Category 分类模型
type Category struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CategoryName string `gorm:"type:varchar(120);not null;index" json:"category_name"`
	CategoryDesc string `gorm:"type:varchar(255)" json:"category_desc,omitempty"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
