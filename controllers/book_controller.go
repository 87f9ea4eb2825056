package controllers

import (
	"bookstore_go/services"
	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookController 书籍控制器
type BookController struct {
	books    *services.BookService
	uploader *utils.FileUploader
	log      *zap.Logger
}

// NewBookController 创建书籍控制器实例
func NewBookController(books *services.BookService, uploader *utils.FileUploader, log *zap.Logger) *BookController {
	return &BookController{books: books, uploader: uploader, log: log}
}

// listBooksQuery 书籍列表查询参数
type listBooksQuery struct {
	CategoryIDsCSV string   `form:"category_ids_csv" json:"category_ids_csv"`
	CategoryIDs    []uint   `form:"category_ids" json:"category_ids"`
	CategoryID     *uint    `form:"category_id" json:"category_id"`
	AuthorIDsCSV   string   `form:"author_ids_csv" json:"author_ids_csv"`
	AuthorIDs      []uint   `form:"author_ids" json:"author_ids"`
	AuthorID       *uint    `form:"author_id" json:"author_id"`
	RatingMin      *float64 `form:"rating_min" json:"rating_min" binding:"omitempty,gte=0,lte=5"`
	SortBy         string   `form:"sort_by" json:"sort_by" binding:"omitempty,oneof=onsale popularity price_asc price_desc"`
	Page           int      `form:"page,default=1" json:"page" binding:"min=1"`
	PerPage        int      `form:"per_page,default=15" json:"per_page" binding:"min=1,max=100"`
}

// ListBooks 分页获取书籍列表
// @Summary 获取书籍列表
// @Tags books
// @Produce json
// @Router /api/books [get]
func (bc *BookController) ListBooks(c *gin.Context) {
	var q listBooksQuery
	if err := utils.BindQuery(c, &q); err != nil {
		utils.ValidationError(c, err)
		return
	}

	page, err := bc.books.ListBooks(c.Request.Context(), services.ListBooksParams{
		CategoryIDs: pickIDs(q.CategoryIDsCSV, q.CategoryIDs, q.CategoryID),
		AuthorIDs:   pickIDs(q.AuthorIDsCSV, q.AuthorIDs, q.AuthorID),
		RatingMin:   q.RatingMin,
		SortBy:      q.SortBy,
		Page:        q.Page,
		PerPage:     q.PerPage,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, page)
}

// OnSale 折扣书籍
// @Router /api/books/on_sale [get]
func (bc *BookController) OnSale(c *gin.Context) {
	books, err := bc.books.OnSale(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": books})
}

// Recommended 推荐书籍
// @Router /api/books/featured/recommended [get]
func (bc *BookController) Recommended(c *gin.Context) {
	books, err := bc.books.Recommended(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": books})
}

// Popular 热门书籍
// @Router /api/books/featured/popular [get]
func (bc *BookController) Popular(c *gin.Context) {
	books, err := bc.books.Popular(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"items": books})
}

// GetBook 获取书籍详情
// @Summary 获取书籍详情
// @Tags books
// @Param id path int true "书籍ID"
// @Router /api/books/{id} [get]
func (bc *BookController) GetBook(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	book, err := bc.books.GetBook(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, gin.H{"book": book})
}

// CreateBook 创建书籍（管理员）
// @Security Bearer
// @Router /api/books [post]
func (bc *BookController) CreateBook(c *gin.Context) {
	var req services.CreateBookRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	book, err := bc.books.CreateBook(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, gin.H{"book": book})
}

// CreateDiscount 添加折扣（管理员）
// @Security Bearer
// @Router /api/books/{id}/discounts [post]
func (bc *BookController) CreateDiscount(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req services.CreateDiscountRequest
	if err := utils.BindJSON(c, &req); err != nil {
		utils.ValidationError(c, err)
		return
	}

	discount, err := bc.books.CreateDiscount(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, gin.H{"discount": discount})
}

// UploadCover 上传封面（管理员，multipart 字段 cover）
// @Security Bearer
// @Router /api/books/{id}/cover [post]
func (bc *BookController) UploadCover(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	exists, err := bc.books.Exists(ctx, id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !exists {
		utils.HandleError(c, utils.NotFoundError("book", id))
		return
	}

	result, err := bc.uploader.UploadFile(c, "cover")
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if err := bc.books.SetCoverPhoto(ctx, id, result.FileName); err != nil {
		// 回收已保存的文件
		if derr := bc.uploader.DeleteFile(ctx, result.FileName); derr != nil {
			bc.log.Warn("remove orphan cover failed", zap.String("file", result.FileName), zap.Error(derr))
		}
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, result)
}
