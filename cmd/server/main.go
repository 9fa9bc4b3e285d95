package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"go.uber.org/zap"
)

// @title go-dropburn API
// @version 1.0
// @description 自毁文件分享服务：文件按下载次数或时间过期，Solana 付款解锁 premium 权益
// @BasePath /
func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// 初始化日志系统
	if err := os.MkdirAll("logs", 0755); err != nil {
		logger.Fatal("Failed to create logs directory", zap.Error(err))
	}
	logger.InitLogger(cfg.Log.OutputPath, cfg.Log.ErrorPath, cfg.Log.Level)
	defer logger.Sync() // 确保在应用退出时刷新所有缓冲的日志条目

	srv, err := NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	srv.Run(ctx, stopChan)
}
