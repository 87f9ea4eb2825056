package models

// Author 作者模型
type Author struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	AuthorName string `gorm:"type:varchar(255);not null;index" json:"author_name"`
	AuthorBio  string `gorm:"type:text" json:"author_bio,omitempty"`
}

// TableName 指定表名
func (Author) TableName() string {
	return "authors"
}
