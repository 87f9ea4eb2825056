package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"bookstore_go/config"
	"bookstore_go/middleware"
	"bookstore_go/routes"
	"bookstore_go/utils"
	"bookstore_go/websocket"

	"go.uber.org/zap"
)

func main() {
	// 加载配置（.env 与环境变量）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志系统
	logger, err := middleware.NewLogger(cfg.Mode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := config.OpenDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := config.CloseDatabase(db); err != nil {
			logger.Warn("close database failed", zap.Error(err))
		}
	}()

	// 初始化Redis，不可用时为 nil
	rdb := config.OpenRedis(cfg.Redis, logger)
	defer func() {
		if err := config.CloseRedis(rdb); err != nil {
			logger.Warn("close redis failed", zap.Error(err))
		}
	}()

	utils.RegisterValidators()

	// 书评实时推送
	hub := websocket.NewHub(rdb, logger)
	if err := hub.Start(ctx); err != nil {
		return err
	}
	defer hub.Close()

	accessLog := middleware.NewAccessLogger(logger, rdb)
	defer accessLog.Close()

	r := config.NewEngine(cfg)
	routes.SetupRoutes(r, routes.Deps{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Log:       logger,
		JWT:       config.NewJWTService(cfg.JWT),
		Hub:       hub,
		AccessLog: accessLog,
	})

	srv := config.NewHTTPServer(cfg, r)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
