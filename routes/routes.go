package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bookstore_go/config"
	"bookstore_go/controllers"
	"bookstore_go/middleware"
	"bookstore_go/services"
	"bookstore_go/utils"
	"bookstore_go/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	reviewRateLimit  = 10
	reviewRateWindow = time.Minute
	coversPrefix     = "/covers"
)

// Deps 路由依赖，Redis、Hub、AccessLog 可为 nil
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Redis     *redis.Client
	Log       *zap.Logger
	JWT       *config.JWTService
	Hub       *websocket.Hub
	AccessLog *middleware.AccessLogger
}

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config

	// 应用全局中间件
	r.Use(middleware.Metrics())
	if d.AccessLog != nil {
		r.Use(d.AccessLog.Middleware())
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// 服务
	stats := services.NewBookStatsService(d.DB, d.Log)
	cache := services.NewBookCache(d.Redis, d.Log)
	var publisher services.ReviewEventPublisher
	if d.Hub != nil {
		publisher = d.Hub
	}
	bookService := services.NewBookService(d.DB, stats, cache, d.Log)
	reviewService := services.NewReviewService(d.DB, stats, cache, publisher, d.Log)
	authService := services.NewAuthService(d.DB, d.Redis, d.JWT, services.DefaultAuthConfig(), d.Log)
	orderService := services.NewOrderService(d.DB, d.Log)

	// 控制器
	uploader := utils.NewFileUploader(&utils.UploadConfig{
		MaxFileSize:    cfg.Upload.MaxSize,
		AllowedFormats: cfg.Upload.Formats,
		UploadPath:     cfg.Upload.Dir,
		PublicPrefix:   coversPrefix,
	}, d.Redis)
	bookCtl := controllers.NewBookController(bookService, uploader, d.Log)
	reviewCtl := controllers.NewReviewController(reviewService)
	authCtl := controllers.NewAuthController(authService)
	userCtl := controllers.NewUserController(authService, orderService)
	taxonomyCtl := controllers.NewTaxonomyController(services.NewTaxonomyService(d.DB))

	auth := middleware.Auth(d.JWT)
	admin := middleware.RequireAdmin()

	r.GET("/health", config.HealthHandler(d.DB, d.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.Static(coversPrefix, cfg.Upload.Dir)

	api := r.Group("/api")
	{
		// ====== 书籍路由 ======
		books := api.Group("/books")
		{
			books.GET("", bookCtl.ListBooks)
			books.GET("/on_sale", bookCtl.OnSale)
			books.GET("/featured/recommended", bookCtl.Recommended)
			books.GET("/featured/popular", bookCtl.Popular)
			books.GET("/:id", bookCtl.GetBook)
			books.POST("", auth, admin, bookCtl.CreateBook)
			books.POST("/:id/discounts", auth, admin, bookCtl.CreateDiscount)
			books.POST("/:id/cover", auth, admin, bookCtl.UploadCover)
		}

		api.GET("/authors", taxonomyCtl.Authors)
		api.GET("/categories", taxonomyCtl.Categories)

		// ====== 书评路由 ======
		reviews := api.Group("/reviews")
		{
			reviews.GET("/book/:book_id", reviewCtl.ListReviews)
			reviews.GET("/book/:book_id/stats", reviewCtl.GetStats)
			reviews.POST("/book",
				middleware.RateLimit(d.Redis, "reviews", reviewRateLimit, reviewRateWindow),
				reviewCtl.CreateReview)
		}

		// ====== 用户路由 ======
		user := api.Group("/user")
		{
			user.POST("/register", authCtl.Register)
			user.POST("/login", authCtl.Login)
			user.POST("/refresh-token", authCtl.RefreshToken)
			user.POST("/logout", authCtl.Logout)
			user.GET("/profile", auth, userCtl.GetProfile)
		}

		// ====== 订单路由 ======
		orders := api.Group("/orders", auth)
		{
			orders.POST("", userCtl.CreateOrder)
			orders.GET("", userCtl.ListOrders)
		}
	}

	// ====== WebSocket路由 ======
	if d.Hub != nil {
		r.GET("/ws/reviews", d.Hub.ServeWS)
	}

	r.NoRoute(frontendHandler(cfg.FrontendDir))
}

// frontendHandler 前端静态文件，未知的非API路径回退到 index.html
func frontendHandler(dir string) gin.HandlerFunc {
	index := filepath.Join(dir, "index.html")
	_, err := os.Stat(index)
	hasFrontend := dir != "" && err == nil

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !hasFrontend || c.Request.Method != http.MethodGet ||
			strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/ws/") {
			utils.NotFound(c, "")
			return
		}

		file := filepath.Join(dir, filepath.Clean("/"+path))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(index)
	}
}
