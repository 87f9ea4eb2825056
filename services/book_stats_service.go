package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"bookstore_go/models"
	"bookstore_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookStatsService 书籍统计服务：全量重算与增量更新共用同一写入原语
type BookStatsService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewBookStatsService 创建统计服务实例
func NewBookStatsService(db *gorm.DB, log *zap.Logger) *BookStatsService {
	return &BookStatsService{db: db, log: log, now: time.Now}
}

// reviewAggregate 书评聚合结果
type reviewAggregate struct {
	ReviewCount int64
	TotalStar   int64
}

// averageRating 平均分，无评论时为0
func averageRating(count, total int64) float64 {
	if count <= 0 {
		return 0
	}
	return float64(total) / float64(count)
}

// writeStats 按主键写入统计行（不存在则插入），avg_rating 总是由 count/total 推导。
// columns 为冲突时需要覆盖的列。
func writeStats(tx *gorm.DB, st *models.BookStats, columns ...string) error {
	st.AvgRating = averageRating(st.ReviewCount, st.TotalStar)
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(st).Error
}

// Get 按书籍ID读取统计行
func (s *BookStatsService) Get(ctx context.Context, bookID uint) (*models.BookStats, error) {
	var st models.BookStats
	if err := s.db.WithContext(ctx).First(&st, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("book stats", bookID)
		}
		return nil, utils.StorageUnavailable(err)
	}
	return &st, nil
}

// Recompute 全量重算一批书籍的统计。整批在一个事务内完成，任一失败则整批回滚。
func (s *BookStatsService) Recompute(ctx context.Context, bookIDs []uint) error {
	ids := uniqueIDs(bookIDs)
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	today := models.DateOf(s.now())

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			if err := s.recomputeOne(tx, id, today); err != nil {
				return fmt.Errorf("recompute book %d: %w", id, err)
			}
		}
		return nil
	})
	StatsRecomputeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		StatsRecomputeTotal.WithLabelValues(resultError).Inc()
		return utils.StorageUnavailable(err)
	}
	StatsRecomputeTotal.WithLabelValues(resultSuccess).Inc()
	return nil
}

func (s *BookStatsService) recomputeOne(tx *gorm.DB, bookID uint, today models.Date) error {
	// 1. 书籍原价
	var book models.Book
	if err := tx.Select("id", "book_price").First(&book, bookID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("recompute skipped unknown book", zap.Uint("book_id", bookID))
			return nil
		}
		return err
	}

	// 2. 书评聚合
	var agg reviewAggregate
	if err := tx.Model(&models.Review{}).
		Select("COUNT(id) AS review_count, COALESCE(SUM(rating_star), 0) AS total_star").
		Where("book_id = ?", bookID).
		Scan(&agg).Error; err != nil {
		return err
	}

	// 3. 当天生效折扣中的最低价
	var minDiscount sql.NullFloat64
	if err := tx.Model(&models.Discount{}).
		Select("MIN(discount_price)").
		Where("book_id = ? AND discount_start_date <= ? AND discount_end_date >= ?", bookID, today, today).
		Row().Scan(&minDiscount); err != nil {
		return err
	}

	lowest := book.BookPrice
	if minDiscount.Valid {
		lowest = minDiscount.Float64
	}

	// 4. 覆盖写入
	st := &models.BookStats{
		ID:          bookID,
		ReviewCount: agg.ReviewCount,
		TotalStar:   agg.TotalStar,
		LowestPrice: utils.Round2(lowest),
	}
	return writeStats(tx, st, "review_count", "total_star", "avg_rating", "lowest_price")
}

// ApplyNewReview 在书评插入事务内增量更新统计，计数与总分由数据库端原子累加，lowest_price 不变。
// tx 必须是插入书评的同一事务，返回错误时调用方应回滚整个事务。
func (s *BookStatsService) ApplyNewReview(ctx context.Context, tx *gorm.DB, bookID uint, rating int) error {
	if rating < 1 || rating > 5 {
		StatsIncrementalTotal.WithLabelValues(resultRejected).Inc()
		return utils.InconsistentInput(fmt.Sprintf("rating %d out of range 1..5", rating))
	}

	tx = tx.WithContext(ctx)
	result := resultSuccess
	err := func() error {
		// 1. 原子累加
		res := tx.Exec(
			"UPDATE book_stats SET review_count = review_count + 1, total_star = total_star + ? WHERE id = ?",
			rating, bookID,
		)
		if res.Error != nil {
			return res.Error
		}

		// 2. 统计行缺失：以零为基线补建
		if res.RowsAffected == 0 {
			result = resultBaseline
			s.log.Warn("book stats row missing, rebuilding from zero baseline",
				zap.Uint("book_id", bookID))

			var price sql.NullFloat64
			if err := tx.Model(&models.Book{}).
				Select("book_price").
				Where("id = ?", bookID).
				Row().Scan(&price); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			st := &models.BookStats{
				ID:          bookID,
				ReviewCount: 1,
				TotalStar:   int64(rating),
				LowestPrice: price.Float64,
			}
			return writeStats(tx, st, "review_count", "total_star", "avg_rating")
		}

		// 3. 读回累加后的值（行已被本事务锁定），推导平均分
		var st models.BookStats
		if err := tx.Select("id", "review_count", "total_star").First(&st, bookID).Error; err != nil {
			return err
		}
		return writeStats(tx, &st, "avg_rating")
	}()
	if err != nil {
		StatsIncrementalTotal.WithLabelValues(resultError).Inc()
		return utils.StorageUnavailable(err)
	}

	StatsIncrementalTotal.WithLabelValues(result).Inc()
	return nil
}

// uniqueIDs 去重并排序，固定加锁顺序
func uniqueIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
