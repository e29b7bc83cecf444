package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/bitfantasy/nimo-reimburse/internal/middleware"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/handler"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/service"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/storage"
	"github.com/bitfantasy/nimo-reimburse/internal/shared/database"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	zapLogger.Info("Starting reimburse service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := database.Open(cfg.Database, logger.Warn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// 会话注销记录：配置了 Redis 时多实例共享
	var revocations session.Store = session.NewMemoryStore()
	if cfg.Redis.Enabled() {
		rdb := initRedis(cfg.Redis)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zapLogger.Warn("Redis unavailable, falling back to in-memory session store", zap.Error(err))
		} else {
			revocations = session.NewRedisStore(rdb)
		}
	}

	store, err := storage.New(ctx, cfg.Storage, cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, revocations)
	services := service.NewServices(repository.NewRepositories(db), store, sessions, zapLogger)

	created, err := services.Auth.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		zapLogger.Info("Initial admin created", zap.String("username", cfg.Admin.Username))
	}

	handlers := handler.NewHandlers(services, cfg, zapLogger)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(zapLogger))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedExtensions([]string{".xlsx", ".pdf", ".zip"})))

	registerRoutes(router, handlers, db, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("start server: %w", err)
	}

	zapLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
	return nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, db *gorm.DB, cfg *config.Config) {
	handler.RegisterSystemRoutes(r, db, handler.VersionInfo{Version: Version, BuildTime: BuildTime})
	handler.RegisterRoutes(r, h, cfg)
}

func dirOf(path string) string {
	return filepath.Dir(path)
}
