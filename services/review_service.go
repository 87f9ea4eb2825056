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

// 书评实时事件类型
const (
	EventReviewCreated = "review_created"
	EventStatsUpdated  = "stats_updated"
)

// 书评排序
const (
	ReviewSortNewest = "newest"
	ReviewSortOldest = "oldest"
)

// ReviewEventPublisher 书评事件发布者（实时推送）
type ReviewEventPublisher interface {
	PublishReviewEvent(ctx context.Context, eventType string, bookID uint, data interface{})
}

// ReviewService 书评服务
type ReviewService struct {
	db        *gorm.DB
	stats     *BookStatsService
	cache     *BookCache
	publisher ReviewEventPublisher
	log       *zap.Logger
	now       func() time.Time
}

// NewReviewService 创建书评服务实例，publisher 可为 nil
func NewReviewService(db *gorm.DB, stats *BookStatsService, cache *BookCache, publisher ReviewEventPublisher, log *zap.Logger) *ReviewService {
	return &ReviewService{
		db:        db,
		stats:     stats,
		cache:     cache,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// CreateReviewRequest 提交书评请求
type CreateReviewRequest struct {
	BookID        uint       `json:"book_id" binding:"required"`
	ReviewTitle   string     `json:"review_title" binding:"required,max=120"`
	ReviewDetails *string    `json:"review_details"`
	RatingStar    int        `json:"rating_star" binding:"required,rating"`
	ReviewDate    *time.Time `json:"review_date"`
}

// ListReviewsParams 书评列表参数
type ListReviewsParams struct {
	Rating    *int
	SortOrder string
	Page      int
	PerPage   int
}

// ReviewStats 书评统计
type ReviewStats struct {
	ReviewCount int64   `json:"review_count"`
	AvgRating   float64 `json:"avg_rating"`
	Star5       int64   `json:"star_5"`
	Star4       int64   `json:"star_4"`
	Star3       int64   `json:"star_3"`
	Star2       int64   `json:"star_2"`
	Star1       int64   `json:"star_1"`
}

func (rs *ReviewService) ensureBook(tx *gorm.DB, bookID uint) error {
	var book models.Book
	if err := tx.Select("id").First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundError("book", bookID)
		}
		return fmt.Errorf("load book %d: %w", bookID, err)
	}
	return nil
}

// ListReviews 分页查询某本书的书评
func (rs *ReviewService) ListReviews(ctx context.Context, bookID uint, p ListReviewsParams) (utils.Page[models.Review], error) {
	db := rs.db.WithContext(ctx)
	if err := rs.ensureBook(db, bookID); err != nil {
		return utils.Page[models.Review]{}, err
	}

	q := db.Model(&models.Review{}).Where("book_id = ?", bookID)
	if p.Rating != nil {
		q = q.Where("rating_star = ?", *p.Rating)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return utils.Page[models.Review]{}, fmt.Errorf("count reviews: %w", err)
	}

	order := "review_date DESC, id DESC"
	if p.SortOrder == ReviewSortOldest {
		order = "review_date ASC, id ASC"
	}

	var reviews []models.Review
	if err := q.Order(order).
		Offset(utils.Offset(p.Page, p.PerPage)).
		Limit(p.PerPage).
		Find(&reviews).Error; err != nil {
		return utils.Page[models.Review]{}, fmt.Errorf("list reviews: %w", err)
	}

	return utils.NewPage(reviews, total, p.Page, p.PerPage), nil
}

// GetStats 书评统计：平均分向下保留两位小数，并给出各星级数量
func (rs *ReviewService) GetStats(ctx context.Context, bookID uint) (*ReviewStats, error) {
	db := rs.db.WithContext(ctx)
	if err := rs.ensureBook(db, bookID); err != nil {
		return nil, err
	}

	st, err := rs.stats.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		RatingStar int
		Count      int64
	}
	if err := db.Model(&models.Review{}).
		Select("rating_star, COUNT(id) AS count").
		Where("book_id = ?", bookID).
		Group("rating_star").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count reviews by star: %w", err)
	}

	out := &ReviewStats{
		ReviewCount: st.ReviewCount,
		AvgRating:   utils.Floor2(st.AvgRating),
	}
	for _, r := range rows {
		switch r.RatingStar {
		case 1:
			out.Star1 = r.Count
		case 2:
			out.Star2 = r.Count
		case 3:
			out.Star3 = r.Count
		case 4:
			out.Star4 = r.Count
		case 5:
			out.Star5 = r.Count
		}
	}
	return out, nil
}

// CreateReview 提交书评：插入书评与增量更新统计在同一事务内，任一失败整体回滚
func (rs *ReviewService) CreateReview(ctx context.Context, req *CreateReviewRequest) (*models.Review, error) {
	review := models.Review{
		BookID:        req.BookID,
		ReviewTitle:   req.ReviewTitle,
		ReviewDetails: req.ReviewDetails,
		RatingStar:    req.RatingStar,
		ReviewDate:    rs.now(),
	}
	if req.ReviewDate != nil && !req.ReviewDate.IsZero() {
		review.ReviewDate = *req.ReviewDate
	}

	err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 书籍必须存在
		if err := rs.ensureBook(tx, req.BookID); err != nil {
			return err
		}

		// 2. 插入书评
		if err := tx.Create(&review).Error; err != nil {
			return fmt.Errorf("insert review: %w", err)
		}

		// 3. 增量更新统计
		return rs.stats.ApplyNewReview(ctx, tx, req.BookID, req.RatingStar)
	})
	if err != nil {
		return nil, err
	}

	// 4. 提交后清缓存并推送
	rs.cache.Invalidate(ctx, req.BookID)
	rs.publish(ctx, &review)

	rs.log.Info("review created",
		zap.Uint("review_id", review.ID),
		zap.Uint("book_id", review.BookID),
		zap.Int("rating", review.RatingStar))
	return &review, nil
}

func (rs *ReviewService) publish(ctx context.Context, review *models.Review) {
	if rs.publisher == nil {
		return
	}
	rs.publisher.PublishReviewEvent(ctx, EventReviewCreated, review.BookID, review)

	st, err := rs.stats.Get(ctx, review.BookID)
	if err != nil {
		rs.log.Warn("load stats for live feed failed", zap.Uint("book_id", review.BookID), zap.Error(err))
		return
	}
	rs.publisher.PublishReviewEvent(ctx, EventStatsUpdated, review.BookID, st)
}
