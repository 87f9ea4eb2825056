package services

import (
	"context"
	"fmt"

	"bookstore_go/models"

	"gorm.io/gorm"
)

// TaxonomyService 作者与分类查询
type TaxonomyService struct {
	db *gorm.DB
}

func NewTaxonomyService(db *gorm.DB) *TaxonomyService {
	return &TaxonomyService{db: db}
}

// Authors 全部作者，按姓名排序
func (ts *TaxonomyService) Authors(ctx context.Context) ([]models.Author, error) {
	var authors []models.Author
	if err := ts.db.WithContext(ctx).Order("author_name ASC").Order("id ASC").Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return nonNil(authors), nil
}

// Categories 全部分类，按名称排序
func (ts *TaxonomyService) Categories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := ts.db.WithContext(ctx).Order("category_name ASC").Order("id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return nonNil(categories), nil
}
