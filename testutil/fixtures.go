package testutil

import (
	"fmt"
	"testing"
	"time"

	"bookstore_go/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func SeedAuthor(tb testing.TB, db *gorm.DB, name string) *models.Author {
	tb.Helper()
	a := &models.Author{AuthorName: name}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed author: %v", err)
	}
	return a
}

func SeedCategory(tb testing.TB, db *gorm.DB, name string) *models.Category {
	tb.Helper()
	c := &models.Category{CategoryName: name}
	if err := db.Create(c).Error; err != nil {
		tb.Fatalf("seed category: %v", err)
	}
	return c
}

// SeedBook 创建书籍（连同统计行），作者与分类为0时自动创建
func SeedBook(tb testing.TB, db *gorm.DB, title string, price float64, authorID, categoryID uint) *models.Book {
	tb.Helper()
	if authorID == 0 {
		authorID = SeedAuthor(tb, db, "Author of "+title).ID
	}
	if categoryID == 0 {
		categoryID = SeedCategory(tb, db, "Category of "+title).ID
	}
	b := &models.Book{
		AuthorID:    authorID,
		CategoryID:  categoryID,
		BookTitle:   title,
		BookSummary: "summary of " + title,
		BookPrice:   price,
	}
	if err := db.Create(b).Error; err != nil {
		tb.Fatalf("seed book: %v", err)
	}
	return b
}

func SeedReview(tb testing.TB, db *gorm.DB, bookID uint, rating int, at time.Time) *models.Review {
	tb.Helper()
	r := &models.Review{
		BookID:      bookID,
		ReviewTitle: fmt.Sprintf("%d stars", rating),
		ReviewDate:  at,
		RatingStar:  rating,
	}
	if err := db.Create(r).Error; err != nil {
		tb.Fatalf("seed review: %v", err)
	}
	return r
}

// SeedDiscount 创建折扣，起止取 start、end 在各自时区下的日历日
func SeedDiscount(tb testing.TB, db *gorm.DB, bookID uint, start, end time.Time, price float64) *models.Discount {
	tb.Helper()
	d := &models.Discount{
		BookID:            bookID,
		DiscountStartDate: models.DateOf(start),
		DiscountEndDate:   models.DateOf(end),
		DiscountPrice:     price,
	}
	if err := db.Create(d).Error; err != nil {
		tb.Fatalf("seed discount: %v", err)
	}
	return d
}

// SeedUser 创建用户，密码以 bcrypt 存储
func SeedUser(tb testing.TB, db *gorm.DB, email, password string, admin bool) *models.User {
	tb.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		FirstName: "Test",
		LastName:  "User",
		Email:     email,
		Password:  string(hash),
		Admin:     admin,
	}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// Stats 读取统计行
func Stats(tb testing.TB, db *gorm.DB, bookID uint) models.BookStats {
	tb.Helper()
	var st models.BookStats
	if err := db.First(&st, bookID).Error; err != nil {
		tb.Fatalf("load stats %d: %v", bookID, err)
	}
	return st
}
