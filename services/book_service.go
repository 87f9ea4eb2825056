package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookstore_go/models"
	"bookstore_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 列表排序方式
const (
	SortOnSale     = "onsale"
	SortPopularity = "popularity"
	SortPriceAsc   = "price_asc"
	SortPriceDesc  = "price_desc"
)

const (
	onSaleLimit   = 10
	featuredLimit = 8
)

// BookService 书籍目录服务
type BookService struct {
	db    *gorm.DB
	stats *BookStatsService
	cache *BookCache
	log   *zap.Logger
	now   func() time.Time
}

// NewBookService 创建书籍服务实例
func NewBookService(db *gorm.DB, stats *BookStatsService, cache *BookCache, log *zap.Logger) *BookService {
	return &BookService{db: db, stats: stats, cache: cache, log: log, now: time.Now}
}

// DiscountedBook 列表中的书籍
type DiscountedBook struct {
	ID             uint     `json:"id"`
	BookTitle      string   `json:"book_title"`
	Author         string   `json:"author"`
	BookPrice      float64  `json:"book_price"`
	DiscountPrice  *float64 `json:"discount_price"`
	BookCoverPhoto *string  `json:"book_cover_photo"`
	DiscountAmount float64  `json:"discount_amount"`
}

// RatedBook 带评分信息的书籍
type RatedBook struct {
	DiscountedBook
	AvgRating   float64 `json:"avg_rating"`
	ReviewCount int64   `json:"review_count"`
}

// BookDetail 书籍详情
type BookDetail struct {
	RatedBook
	Category    string `json:"category"`
	BookSummary string `json:"book_summary"`
	AuthorID    uint   `json:"author_id"`
	CategoryID  uint   `json:"category_id"`
}

// ListBooksParams 列表筛选参数
type ListBooksParams struct {
	CategoryIDs []uint
	AuthorIDs   []uint
	RatingMin   *float64
	SortBy      string
	Page        int
	PerPage     int
}

// CreateBookRequest 创建书籍请求
type CreateBookRequest struct {
	BookTitle      string  `json:"book_title" binding:"required,max=255"`
	BookSummary    string  `json:"book_summary"`
	BookPrice      float64 `json:"book_price" binding:"gt=0"`
	BookCoverPhoto *string `json:"book_cover_photo" binding:"omitempty,max=40"`
	AuthorID       uint    `json:"author_id" binding:"required"`
	CategoryID     uint    `json:"category_id" binding:"required"`
}

// CreateDiscountRequest 创建折扣请求
type CreateDiscountRequest struct {
	DiscountStartDate string  `json:"discount_start_date" binding:"required,datetime=2006-01-02"`
	DiscountEndDate   string  `json:"discount_end_date" binding:"required,datetime=2006-01-02"`
	DiscountPrice     float64 `json:"discount_price" binding:"gt=0"`
}

// ==================== 查询构造 ====================

const (
	discountAmountExpr = "COALESCE(b.book_price - d.discount_price, 0)"
	finalPriceExpr     = "COALESCE(s.lowest_price, b.book_price)"
	reviewCountExpr    = "COALESCE(s.review_count, 0)"
	avgRatingExpr      = "COALESCE(s.avg_rating, 0)"
)

const listColumns = "b.id AS id, b.book_title AS book_title, a.author_name AS author, " +
	"b.book_price AS book_price, d.discount_price AS discount_price, " +
	"b.book_cover_photo AS book_cover_photo, " + discountAmountExpr + " AS discount_amount"

const ratedColumns = listColumns + ", " + avgRatingExpr + " AS avg_rating, " + reviewCountExpr + " AS review_count"

// catalogQuery 书籍 + 作者 + 分类 + 当日最低生效折扣 + 统计
func (bs *BookService) catalogQuery(ctx context.Context) *gorm.DB {
	db := bs.db.WithContext(ctx)
	today := models.DateOf(bs.now())

	activeDiscounts := db.Model(&models.Discount{}).
		Select("book_id, MIN(discount_price) AS discount_price").
		Where("discount_start_date <= ? AND discount_end_date >= ?", today, today).
		Group("book_id")

	return db.Table("books AS b").
		Joins("JOIN authors AS a ON a.id = b.author_id").
		Joins("JOIN categories AS c ON c.id = b.category_id").
		Joins("LEFT JOIN (?) AS d ON d.book_id = b.id", activeDiscounts).
		Joins("LEFT JOIN book_stats AS s ON s.id = b.id")
}

// refreshStats 对本页书籍做全量重算，失败只记录日志
func (bs *BookService) refreshStats(ctx context.Context, ids []uint) {
	if err := bs.stats.Recompute(ctx, ids); err != nil {
		bs.log.Warn("book stats refresh failed, serving possibly stale stats",
			zap.Int("books", len(ids)), zap.Error(err))
	}
}

func discountedIDs(books []DiscountedBook) []uint {
	ids := make([]uint, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}

func ratedIDs(books []RatedBook) []uint {
	ids := make([]uint, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}

// ==================== 查询方法 ====================

// ListBooks 分页查询书籍
func (bs *BookService) ListBooks(ctx context.Context, p ListBooksParams) (utils.Page[DiscountedBook], error) {
	q := bs.catalogQuery(ctx)

	// 1. 筛选
	if len(p.CategoryIDs) > 0 {
		q = q.Where("b.category_id IN ?", p.CategoryIDs)
	}
	if len(p.AuthorIDs) > 0 {
		q = q.Where("b.author_id IN ?", p.AuthorIDs)
	}
	if p.RatingMin != nil {
		q = q.Where(avgRatingExpr+" >= ?", *p.RatingMin)
	}

	// 2. 总数
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return utils.Page[DiscountedBook]{}, fmt.Errorf("count books: %w", err)
	}

	// 3. 排序，标题为次序
	switch p.SortBy {
	case SortOnSale:
		q = q.Order(discountAmountExpr + " DESC")
	case SortPopularity:
		q = q.Order(reviewCountExpr + " DESC")
	case SortPriceAsc:
		q = q.Order(finalPriceExpr + " ASC")
	case SortPriceDesc:
		q = q.Order(finalPriceExpr + " DESC")
	}
	q = q.Order("b.book_title ASC").Order("b.id ASC")

	var items []DiscountedBook
	if err := q.Select(listColumns).
		Offset(utils.Offset(p.Page, p.PerPage)).
		Limit(p.PerPage).
		Scan(&items).Error; err != nil {
		return utils.Page[DiscountedBook]{}, fmt.Errorf("list books: %w", err)
	}

	bs.refreshStats(ctx, discountedIDs(items))
	return utils.NewPage(items, total, p.Page, p.PerPage), nil
}

// OnSale 折扣力度最大的书籍
func (bs *BookService) OnSale(ctx context.Context) ([]DiscountedBook, error) {
	var items []DiscountedBook
	err := bs.catalogQuery(ctx).
		Select(listColumns).
		Where("d.discount_price IS NOT NULL AND d.discount_price < b.book_price").
		Order(discountAmountExpr + " DESC").
		Order("b.book_title ASC").
		Limit(onSaleLimit).
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list books on sale: %w", err)
	}

	bs.refreshStats(ctx, discountedIDs(items))
	return nonNil(items), nil
}

// Recommended 评分最高的书籍（至少一条书评），同分按最低价升序
func (bs *BookService) Recommended(ctx context.Context) ([]RatedBook, error) {
	var items []RatedBook
	err := bs.catalogQuery(ctx).
		Select(ratedColumns).
		Where(reviewCountExpr + " > 0").
		Order(avgRatingExpr + " DESC").
		Order(finalPriceExpr + " ASC").
		Order("b.book_title ASC").
		Limit(featuredLimit).
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list recommended books: %w", err)
	}

	bs.refreshStats(ctx, ratedIDs(items))
	return nonNil(items), nil
}

// Popular 书评最多的书籍
func (bs *BookService) Popular(ctx context.Context) ([]RatedBook, error) {
	var items []RatedBook
	err := bs.catalogQuery(ctx).
		Select(ratedColumns).
		Order(reviewCountExpr + " DESC").
		Order("b.book_title ASC").
		Limit(featuredLimit).
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("list popular books: %w", err)
	}

	bs.refreshStats(ctx, ratedIDs(items))
	return nonNil(items), nil
}

// GetBook 获取书籍详情
func (bs *BookService) GetBook(ctx context.Context, bookID uint) (*BookDetail, error) {
	// 1. 尝试从Redis缓存获取
	var detail BookDetail
	if bs.cache.Get(ctx, bookID, &detail) {
		bs.refreshStats(ctx, []uint{bookID})
		return &detail, nil
	}

	// 2. 从数据库查询
	var rows []BookDetail
	err := bs.catalogQuery(ctx).
		Select(ratedColumns+", c.category_name AS category, b.book_summary AS book_summary, "+
			"b.author_id AS author_id, b.category_id AS category_id").
		Where("b.id = ?", bookID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get book %d: %w", bookID, err)
	}
	if len(rows) == 0 {
		return nil, utils.NotFoundError("book", bookID)
	}
	detail = rows[0]

	// 3. 重算统计并写入缓存
	bs.refreshStats(ctx, []uint{bookID})
	bs.cache.Set(ctx, bookID, detail)

	return &detail, nil
}

// Exists 书籍是否存在
func (bs *BookService) Exists(ctx context.Context, bookID uint) (bool, error) {
	var n int64
	if err := bs.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", bookID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("check book %d: %w", bookID, err)
	}
	return n > 0, nil
}

// ==================== 管理操作 ====================

// CreateBook 创建书籍，统计行由模型钩子在同一事务内写入
func (bs *BookService) CreateBook(ctx context.Context, req *CreateBookRequest) (*models.Book, error) {
	book := models.Book{
		CategoryID:     req.CategoryID,
		AuthorID:       req.AuthorID,
		BookTitle:      req.BookTitle,
		BookSummary:    req.BookSummary,
		BookPrice:      utils.Round2(req.BookPrice),
		BookCoverPhoto: req.BookCoverPhoto,
	}

	err := bs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 校验作者与分类
		if err := tx.First(&models.Author{}, req.AuthorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundError("author", req.AuthorID)
			}
			return err
		}
		if err := tx.First(&models.Category{}, req.CategoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundError("category", req.CategoryID)
			}
			return err
		}

		// 2. 创建书籍
		return tx.Create(&book).Error
	})
	if err != nil {
		return nil, err
	}

	bs.log.Info("book created", zap.Uint("book_id", book.ID), zap.String("title", book.BookTitle))
	return &book, nil
}

// CreateDiscount 为书籍添加折扣。价格统计等待下一次重算，不在此处触发。
func (bs *BookService) CreateDiscount(ctx context.Context, bookID uint, req *CreateDiscountRequest) (*models.Discount, error) {
	start, err := models.ParseDate(req.DiscountStartDate)
	if err != nil {
		return nil, utils.InvalidInput("discount_start_date must be YYYY-MM-DD")
	}
	end, err := models.ParseDate(req.DiscountEndDate)
	if err != nil {
		return nil, utils.InvalidInput("discount_end_date must be YYYY-MM-DD")
	}
	if end.Before(start.Time) {
		return nil, utils.InvalidInput("discount_end_date must not be before discount_start_date")
	}

	exists, err := bs.Exists(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, utils.NotFoundError("book", bookID)
	}

	discount := models.Discount{
		BookID:            bookID,
		DiscountStartDate: start,
		DiscountEndDate:   end,
		DiscountPrice:     utils.Round2(req.DiscountPrice),
	}
	if err := bs.db.WithContext(ctx).Create(&discount).Error; err != nil {
		return nil, fmt.Errorf("create discount: %w", err)
	}

	bs.cache.Invalidate(ctx, bookID)
	return &discount, nil
}

// SetCoverPhoto 更新书籍封面文件名
func (bs *BookService) SetCoverPhoto(ctx context.Context, bookID uint, fileName string) error {
	res := bs.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ?", bookID).
		Update("book_cover_photo", fileName)
	if res.Error != nil {
		return fmt.Errorf("update cover photo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NotFoundError("book", bookID)
	}

	bs.cache.Invalidate(ctx, bookID)
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
