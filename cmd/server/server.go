package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/solanarpc"
	"github.com/3Eeeecho/go-dropburn/internal/router"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/3Eeeecho/go-dropburn/internal/setup"
)

type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	db          *gorm.DB
	redisClient *redis.Client
}

// NewServer 负责构建所有依赖
func NewServer(cfg *config.Config) (*Server, error) {
	// 初始化数据库连接
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	// 初始化 Redis 连接
	redisClient, err := setup.InitRedis(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// 初始化对象存储
	store, err := setup.InitStorage(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Solana RPC 客户端，支付验证引擎依赖它
	chain := solanarpc.NewRPCChainClient(cfg.Solana.RPCEndpoint)

	// 初始化 Gin 引擎和注册路由
	routerCfg := router.NewRouterConfig(mysqlDB, redisClient, store, chain, cfg)
	engine := router.InitRouter(routerCfg)

	addr := ":" + cfg.Server.Port
	logger.Info(fmt.Sprintf("Server is running on %s", addr))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		router:      engine,
		httpServer:  httpServer,
		db:          mysqlDB,
		redisClient: redisClient,
	}, nil
}

// Run 启动服务器并处理优雅关机
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	// GORM v2 依赖连接池，通常不需要手动关闭。Redis 需要
	defer s.redisClient.Close()

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// 等待停止信号
	<-stopChan
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
