package router

import (
	"net/http"

	_ "github.com/3Eeeecho/go-dropburn/docs"
	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/handlers"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/cache"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/solanarpc"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/3Eeeecho/go-dropburn/internal/services/expiry"
	"github.com/3Eeeecho/go-dropburn/internal/services/payment"
	"github.com/3Eeeecho/go-dropburn/internal/services/premium"
	"github.com/3Eeeecho/go-dropburn/internal/services/transfer"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterConfig 包含初始化路由所需的所有依赖
type RouterConfig struct {
	db          *gorm.DB
	redisClient *redis.Client
	store       storage.StorageService
	chain       solanarpc.ChainClient
	cfg         *config.Config
}

func NewRouterConfig(db *gorm.DB, redisClient *redis.Client, store storage.StorageService, chain solanarpc.ChainClient, cfg *config.Config) *RouterConfig {
	return &RouterConfig{
		db:          db,
		redisClient: redisClient,
		store:       store,
		chain:       chain,
		cfg:         cfg,
	}
}

func InitRouter(routerCfg *RouterConfig) *gin.Engine {
	gin.SetMode(gin.DebugMode)

	router := gin.Default()

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 依赖装配：所有分享都是匿名的，路由不挂认证中间件
	fileRepo := repositories.NewFileRepository(routerCfg.db)
	premiumRepo := repositories.NewPremiumUserRepository(routerCfg.db)
	logRepo := repositories.NewTransactionLogRepository(routerCfg.db)
	cacheService := cache.NewRedisCache(routerCfg.redisClient)

	expiryService := expiry.NewService(fileRepo, premiumRepo, routerCfg.store, routerCfg.cfg)
	transferService := transfer.NewService(fileRepo, routerCfg.store, expiryService, routerCfg.cfg)
	paymentService := payment.NewService(routerCfg.chain, premiumRepo, logRepo, routerCfg.cfg)
	premiumService := premium.NewService(premiumRepo, cacheService, routerCfg.cfg)

	uploadHandler := handlers.NewUploadHandler(transferService, routerCfg.cfg)
	downloadHandler := handlers.NewDownloadHandler(transferService)
	cleanupHandler := handlers.NewCleanupHandler(expiryService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, premiumService, routerCfg.cfg)
	txLogHandler := handlers.NewTransactionLogHandler(paymentService)
	premiumHandler := handlers.NewPremiumHandler(premiumService, routerCfg.cfg)
	healthHandler := handlers.NewHealthHandler(routerCfg.db)

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Check)

		// 文件分享
		api.POST("/upload", uploadHandler.Upload)
		api.GET("/download/:shareId", downloadHandler.GetMetadata)
		api.GET("/direct-download/:shareId", downloadHandler.DirectDownload)

		// 定时清理
		api.GET("/cleanup", cleanupHandler.SweepFiles)
		api.GET("/cron/check-premium-expiry", cleanupHandler.SweepPremium)

		// 支付与权益
		api.POST("/verify-payment", paymentHandler.VerifyPayment)
		api.POST("/emergency-activate", paymentHandler.EmergencyActivate)
		api.POST("/transaction-log", txLogHandler.Create)
		api.PUT("/transaction-log", txLogHandler.Update)
		api.GET("/premium/status", premiumHandler.Status)
		api.DELETE("/premium/status", premiumHandler.Clear)
	}

	router.NoRoute(func(c *gin.Context) {
		xerr.Error(c, http.StatusNotFound, http.StatusNotFound, "Route not found")
	})

	return router
}
