package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore_go/models"
	"bookstore_go/testutil"
	"bookstore_go/utils"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)

func day(offset int) time.Time {
	return fixedNow.AddDate(0, 0, offset)
}

func newStatsService(t *testing.T) (*BookStatsService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	svc := NewBookStatsService(db, testutil.Logger(t))
	svc.now = func() time.Time { return fixedNow }
	return svc, db
}

// addReview 模拟书评提交：插入与增量更新在同一事务
func addReview(t *testing.T, svc *BookStatsService, db *gorm.DB, bookID uint, rating int) error {
	t.Helper()
	ctx := context.Background()
	return db.Transaction(func(tx *gorm.DB) error {
		r := &models.Review{BookID: bookID, ReviewTitle: "t", ReviewDate: fixedNow, RatingStar: rating}
		if err := tx.Create(r).Error; err != nil {
			return err
		}
		return svc.ApplyNewReview(ctx, tx, bookID, rating)
	})
}

func TestAverageRating(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		total int64
		want  float64
	}{
		{"no reviews", 0, 0, 0},
		{"single", 1, 4, 4},
		{"real division", 3, 11, 11.0 / 3.0},
		{"half", 2, 7, 3.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, averageRating(tt.count, tt.total))
		})
	}
}

func TestUniqueIDs(t *testing.T) {
	assert.Nil(t, uniqueIDs(nil))
	assert.Equal(t, []uint{1, 3, 7}, uniqueIDs([]uint{7, 3, 0, 7, 1, 3}))
}

func TestRecompute_AggregatesReviewsAndActiveDiscounts(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Go in Practice", 30, 0, 0)

	for _, r := range []int{5, 4, 2} {
		testutil.SeedReview(t, db, book.ID, r, fixedNow)
	}
	testutil.SeedDiscount(t, db, book.ID, day(-3), day(3), 25)
	testutil.SeedDiscount(t, db, book.ID, day(-1), day(1), 22)
	testutil.SeedDiscount(t, db, book.ID, day(-10), day(-2), 10) // 已过期
	testutil.SeedDiscount(t, db, book.ID, day(1), day(5), 5)     // 尚未开始

	require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID}))

	st := testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(3), st.ReviewCount)
	assert.Equal(t, int64(11), st.TotalStar)
	assert.InDelta(t, 11.0/3.0, st.AvgRating, 1e-9)
	assert.InDelta(t, 22.0, st.LowestPrice, 1e-9)
}

func TestRecompute_NoReviewsNoDiscount(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Plain", 12.5, 0, 0)

	require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID}))

	st := testutil.Stats(t, db, book.ID)
	assert.Zero(t, st.ReviewCount)
	assert.Zero(t, st.TotalStar)
	assert.Zero(t, st.AvgRating)
	assert.InDelta(t, 12.5, st.LowestPrice, 1e-9)
}

func TestRecompute_DiscountAboveListPriceStillWins(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Odd", 10, 0, 0)
	testutil.SeedDiscount(t, db, book.ID, day(-1), day(1), 12)

	require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID}))
	assert.InDelta(t, 12.0, testutil.Stats(t, db, book.ID).LowestPrice, 1e-9)
}

func TestRecompute_DiscountBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		end    int
		active bool
	}{
		{"starts today", 0, 4, true},
		{"ends today", -4, 0, true},
		{"single day today", 0, 0, true},
		{"ended yesterday", -4, -1, false},
		{"starts tomorrow", 1, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := newStatsService(t)
			book := testutil.SeedBook(t, db, "Boundary", 40, 0, 0)
			testutil.SeedDiscount(t, db, book.ID, day(tt.start), day(tt.end), 30)

			require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID}))

			want := 40.0
			if tt.active {
				want = 30.0
			}
			assert.InDelta(t, want, testutil.Stats(t, db, book.ID).LowestPrice, 1e-9)
		})
	}
}

func TestRecompute_DiscountBoundariesOffUTC(t *testing.T) {
	zones := []*time.Location{
		time.FixedZone("UTC+8", 8*3600),
		time.FixedZone("UTC-5", -5*3600),
	}
	for _, loc := range zones {
		// 当地日期与 UTC 日期不同的时刻
		for _, now := range []time.Time{
			time.Date(2026, 10, 15, 0, 30, 0, 0, loc),
			time.Date(2026, 10, 15, 23, 30, 0, 0, loc),
		} {
			t.Run(now.Format(time.RFC3339), func(t *testing.T) {
				svc, db := newStatsService(t)
				svc.now = func() time.Time { return now }

				endsToday := testutil.SeedBook(t, db, "Ends today", 40, 0, 0)
				testutil.SeedDiscount(t, db, endsToday.ID, now.AddDate(0, 0, -3), now, 30)
				startsToday := testutil.SeedBook(t, db, "Starts today", 40, 0, 0)
				testutil.SeedDiscount(t, db, startsToday.ID, now, now.AddDate(0, 0, 3), 25)
				startsTomorrow := testutil.SeedBook(t, db, "Starts tomorrow", 40, 0, 0)
				testutil.SeedDiscount(t, db, startsTomorrow.ID, now.AddDate(0, 0, 1), now.AddDate(0, 0, 3), 20)

				require.NoError(t, svc.Recompute(context.Background(),
					[]uint{endsToday.ID, startsToday.ID, startsTomorrow.ID}))

				assert.InDelta(t, 30.0, testutil.Stats(t, db, endsToday.ID).LowestPrice, 1e-9)
				assert.InDelta(t, 25.0, testutil.Stats(t, db, startsToday.ID).LowestPrice, 1e-9)
				assert.InDelta(t, 40.0, testutil.Stats(t, db, startsTomorrow.ID).LowestPrice, 1e-9)

				var stored models.Discount
				require.NoError(t, db.Where("book_id = ?", endsToday.ID).First(&stored).Error)
				assert.Equal(t, "2026-10-15", stored.DiscountEndDate.String())
			})
		}
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Twice", 18, 0, 0)
	testutil.SeedReview(t, db, book.ID, 3, fixedNow)
	testutil.SeedReview(t, db, book.ID, 4, fixedNow)
	testutil.SeedDiscount(t, db, book.ID, day(0), day(2), 16)

	ctx := context.Background()
	require.NoError(t, svc.Recompute(ctx, []uint{book.ID}))
	first := testutil.Stats(t, db, book.ID)
	require.NoError(t, svc.Recompute(ctx, []uint{book.ID}))
	second := testutil.Stats(t, db, book.ID)

	assert.Equal(t, first, second)
}

func TestRecompute_EmptyAndDuplicateIDs(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Dup", 9, 0, 0)
	testutil.SeedReview(t, db, book.ID, 5, fixedNow)

	ctx := context.Background()
	require.NoError(t, svc.Recompute(ctx, nil))
	require.NoError(t, svc.Recompute(ctx, []uint{}))
	require.NoError(t, svc.Recompute(ctx, []uint{book.ID, book.ID, book.ID}))

	st := testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(1), st.ReviewCount)
	assert.Equal(t, int64(5), st.TotalStar)
}

func TestRecompute_SkipsUnknownBook(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Known", 9, 0, 0)
	testutil.SeedReview(t, db, book.ID, 2, fixedNow)

	require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID, 9999}))

	assert.Equal(t, int64(1), testutil.Stats(t, db, book.ID).ReviewCount)
	var n int64
	require.NoError(t, db.Model(&models.BookStats{}).Where("id = ?", 9999).Count(&n).Error)
	assert.Zero(t, n)
}

func TestRecompute_FailureRollsBackWholeBatch(t *testing.T) {
	svc, db := newStatsService(t)
	first := testutil.SeedBook(t, db, "First", 10, 0, 0)
	second := testutil.SeedBook(t, db, "Second", 10, 0, 0)
	testutil.SeedReview(t, db, first.ID, 5, fixedNow)
	testutil.SeedReview(t, db, second.ID, 1, fixedNow)

	failID := second.ID
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:fail_stats", func(tx *gorm.DB) {
		if st, ok := tx.Statement.Dest.(*models.BookStats); ok && st.ID == failID {
			_ = tx.AddError(errors.New("injected write failure"))
		}
	}))

	before := promtest.ToFloat64(StatsRecomputeTotal.WithLabelValues(resultError))
	err := svc.Recompute(context.Background(), []uint{second.ID, first.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrStorageUnavailable)
	assert.Equal(t, before+1, promtest.ToFloat64(StatsRecomputeTotal.WithLabelValues(resultError)))

	// 第一本书先写入，但随整批回滚
	assert.Zero(t, testutil.Stats(t, db, first.ID).ReviewCount)
	assert.Zero(t, testutil.Stats(t, db, second.ID).ReviewCount)
}

func TestRecompute_StorageUnavailable(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Closed", 10, 0, 0)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = svc.Recompute(context.Background(), []uint{book.ID})
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrStorageUnavailable)
	assert.Equal(t, 503, utils.HTTPStatus(err))
}

func TestApplyNewReview_ConcreteScenario(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Scenario", 20, 0, 0)
	testutil.SeedDiscount(t, db, book.ID, day(-1), day(1), 15)

	require.NoError(t, svc.Recompute(context.Background(), []uint{book.ID}))
	st := testutil.Stats(t, db, book.ID)
	assert.Equal(t, models.BookStats{ID: book.ID, LowestPrice: 15}, st)

	require.NoError(t, addReview(t, svc, db, book.ID, 4))
	st = testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(1), st.ReviewCount)
	assert.Equal(t, int64(4), st.TotalStar)
	assert.InDelta(t, 4.0, st.AvgRating, 1e-9)
	assert.InDelta(t, 15.0, st.LowestPrice, 1e-9)

	require.NoError(t, addReview(t, svc, db, book.ID, 2))
	st = testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(2), st.ReviewCount)
	assert.Equal(t, int64(6), st.TotalStar)
	assert.InDelta(t, 3.0, st.AvgRating, 1e-9)
	assert.InDelta(t, 15.0, st.LowestPrice, 1e-9)
}

func TestApplyNewReview_MatchesRecompute(t *testing.T) {
	for _, k := range []int{1, 2, 3, 4, 5} {
		svc, db := newStatsService(t)
		book := testutil.SeedBook(t, db, "Equivalence", 11, 0, 0)
		testutil.SeedReview(t, db, book.ID, 5, fixedNow)
		testutil.SeedReview(t, db, book.ID, 2, fixedNow)
		testutil.SeedReview(t, db, book.ID, 2, fixedNow)

		ctx := context.Background()
		require.NoError(t, svc.Recompute(ctx, []uint{book.ID}))
		require.NoError(t, addReview(t, svc, db, book.ID, k))
		incremental := testutil.Stats(t, db, book.ID)

		require.NoError(t, svc.Recompute(ctx, []uint{book.ID}))
		full := testutil.Stats(t, db, book.ID)

		assert.Equal(t, full.ReviewCount, incremental.ReviewCount, "rating %d", k)
		assert.Equal(t, full.TotalStar, incremental.TotalStar, "rating %d", k)
		assert.InDelta(t, full.AvgRating, incremental.AvgRating, 1e-9, "rating %d", k)
	}
}

func TestApplyNewReview_LeavesLowestPriceUntouched(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Stale price", 20, 0, 0)

	// 折扣在重算之后才加入，增量路径不重新计算价格
	testutil.SeedDiscount(t, db, book.ID, day(-1), day(1), 8)
	require.NoError(t, addReview(t, svc, db, book.ID, 3))

	assert.InDelta(t, 20.0, testutil.Stats(t, db, book.ID).LowestPrice, 1e-9)
}

func TestApplyNewReview_RejectsOutOfRangeRating(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Strict", 20, 0, 0)

	for _, rating := range []int{0, 6, -1} {
		err := db.Transaction(func(tx *gorm.DB) error {
			return svc.ApplyNewReview(context.Background(), tx, book.ID, rating)
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, utils.ErrInconsistentInput)
	}

	st := testutil.Stats(t, db, book.ID)
	assert.Zero(t, st.ReviewCount)
	assert.Zero(t, st.TotalStar)
}

func TestApplyNewReview_MissingRowStartsFromZero(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Orphan", 14, 0, 0)
	require.NoError(t, db.Delete(&models.BookStats{}, book.ID).Error)

	before := promtest.ToFloat64(StatsIncrementalTotal.WithLabelValues(resultBaseline))
	require.NoError(t, addReview(t, svc, db, book.ID, 5))
	assert.Equal(t, before+1, promtest.ToFloat64(StatsIncrementalTotal.WithLabelValues(resultBaseline)))

	st := testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(1), st.ReviewCount)
	assert.Equal(t, int64(5), st.TotalStar)
	assert.InDelta(t, 5.0, st.AvgRating, 1e-9)
	assert.InDelta(t, 14.0, st.LowestPrice, 1e-9)
}

func TestApplyNewReview_FailureRollsBackReview(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Broken", 14, 0, 0)
	require.NoError(t, db.Migrator().DropTable(&models.BookStats{}))

	err := addReview(t, svc, db, book.ID, 4)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrStorageUnavailable)

	var n int64
	require.NoError(t, db.Model(&models.Review{}).Where("book_id = ?", book.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestStats_NonNegativeAfterMixedOperations(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Mixed", 7, 0, 0)
	ctx := context.Background()

	for i, rating := range []int{3, 1, 5, 2, 4, 1} {
		require.NoError(t, addReview(t, svc, db, book.ID, rating))
		if i%2 == 1 {
			require.NoError(t, svc.Recompute(ctx, []uint{book.ID}))
		}
		st := testutil.Stats(t, db, book.ID)
		assert.GreaterOrEqual(t, st.ReviewCount, int64(0))
		assert.GreaterOrEqual(t, st.TotalStar, int64(0))
		assert.GreaterOrEqual(t, st.AvgRating, 0.0)
	}

	st := testutil.Stats(t, db, book.ID)
	assert.Equal(t, int64(6), st.ReviewCount)
	assert.Equal(t, int64(16), st.TotalStar)
}

func TestGet(t *testing.T) {
	svc, db := newStatsService(t)
	book := testutil.SeedBook(t, db, "Lookup", 7, 0, 0)

	st, err := svc.Get(context.Background(), book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.ID, st.ID)

	_, err = svc.Get(context.Background(), 424242)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
