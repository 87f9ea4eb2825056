package controllers

import (
	"bookstore_go/services"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
)

// ReviewController 书评控制器
type ReviewController struct {
	reviews *services.ReviewService
}

// NewReviewController 创建书评控制器实例
func NewReviewController(reviews *services.ReviewService) *ReviewController {
	return &ReviewController{reviews: reviews}
}

type listReviewsQuery struct {
	Rating    *int   `form:"rating" json:"rating" binding:"omitempty,min=1,max=5"`
	SortOrder string `form:"sort_order,default=newest" json:"sort_order" binding:"oneof=newest oldest"`
	Page      int    `form:"page,default=1" json:"page" binding:"min=1"`
	PerPage   int    `form:"per_page,default=5" json:"per_page" binding:"oneof=5 15 20 25"`
}

// ListReviews 书评列表
// @Router /api/reviews/book/{book_id} [get]
func (rc *ReviewController) ListReviews(c *gin.Context) {
	bookID, ok := paramID(c, "book_id")
	if !ok {
		return
	}

	var q listReviewsQuery
	if err := utils.BindQuery(c, &q); err != nil {
		utils.ValidationError(c, err)
		return
	}

	page, err := rc.reviews.ListReviews(c.Request.Context(), bookID, services.ListReviewsParams{
		Rating:    q.Rating,
		SortOrder: q.SortOrder,
		Page:      q.Page,
		PerPage:   q.PerPage,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, page)
}

// GetStats 书评统计
// @Router /api/reviews/book/{book_id}/stats [get]
func (rc *ReviewController) GetStats(c *gin.Context) {
	bookID, ok := paramID(c, "book_id")
	if !ok {
		return
	}

	stats, err := rc.reviews.GetStats(c.Request.Context(), bookID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, stats)
}

// CreateReview 提交书评
// @Router /api/reviews/book [post]
func (rc *ReviewController) CreateReview(c *gin.Context) {
	var req services.CreateReviewRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	review, err := rc.reviews.CreateReview(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, gin.H{"review": review})
}
