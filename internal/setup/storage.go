package setup

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"go.uber.org/zap"
)

// InitStorage 初始化对象存储并确保分享文件桶存在
func InitStorage(ctx context.Context, cfg *config.Config) (storage.StorageService, error) {
	store, err := storage.NewStorageService(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化存储服务失败: %w", err)
	}

	bucket := cfg.MinIO.BucketName
	if cfg.Storage.Type == "aliyun_oss" {
		bucket = cfg.AliyunOSS.BucketName
	}

	exists, err := store.IsBucketExist(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := store.MakeBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("存储桶创建成功", zap.String("bucket", bucket))
	}

	return store, nil
}
