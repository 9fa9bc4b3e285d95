package storage

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"go.uber.org/zap"
)

type AliyunOSSStorageService struct {
	client *oss.Client
	cfg    *config.AliyunOSSConfig // 阿里云OSS的配置信息
}

// NewAliyunOSSStorageService 创建并返回一个 AliyunOSSStorageService 实例
func NewAliyunOSSStorageService(cfg *config.AliyunOSSConfig) (*AliyunOSSStorageService, error) {
	ossClient, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		logger.Error("初始化阿里云OSS客户端失败", zap.Error(err))
		return nil, fmt.Errorf("无法初始化阿里云OSS客户端: %w", err)
	}
	logger.Info("阿里云OSS客户端初始化成功", zap.String("endpoint", cfg.Endpoint))
	return &AliyunOSSStorageService{
		client: ossClient,
		cfg:    cfg,
	}, nil
}

func (s *AliyunOSSStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string, opts PutObjectOptions) (PutObjectResult, error) {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	options := []oss.Option{
		oss.ContentType(contentType),
	}
	if !opts.ExpiresAt.IsZero() {
		options = append(options, oss.Expires(opts.ExpiresAt))
	}

	err = bucket.PutObject(objectName, reader, options...)
	if err != nil {
		return PutObjectResult{}, fmt.Errorf("阿里云OSS上传文件失败: %w", err)
	}

	// PutObject 本身不返回对象信息，这里直接使用传入的尺寸
	return PutObjectResult{
		Bucket: bucketName,
		Key:    objectName,
		Size:   objectSize,
	}, nil
}

func (s *AliyunOSSStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("获取OSS存储桶失败: %w", err)
	}

	reader, err := bucket.GetObject(objectName)
	if err != nil {
		return GetObjectResult{}, fmt.Errorf("阿里云OSS获取文件失败: %w", err)
	}

	// 获取对象元数据以获取Size和MimeType
	props, err := bucket.GetObjectDetailedMeta(objectName)
	if err != nil {
		logger.Warn("获取OSS对象元数据失败", zap.String("object", objectName), zap.Error(err))
	}

	size := int64(0)
	if val := props.Get(oss.HTTPHeaderContentLength); val != "" {
		size, _ = strconv.ParseInt(val, 10, 64)
	}
	mimeType := ""
	if mt := props.Get(oss.HTTPHeaderContentType); mt != "" {
		mimeType = mt
	}

	return GetObjectResult{
		Reader:   reader,
		Size:     size,
		MimeType: mimeType,
	}, nil
}

func (s *AliyunOSSStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	bucket, err := s.client.Bucket(bucketName)
	if err != nil {
		return fmt.Errorf("获取OSS存储桶失败: %w", err)
	}
	err = bucket.DeleteObject(objectName)
	if err != nil {
		return fmt.Errorf("阿里云OSS删除文件失败: %w", err)
	}
	return nil
}

func (s *AliyunOSSStorageService) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	exists, err := s.client.IsBucketExist(bucketName)
	if err != nil {
		return false, fmt.Errorf("检查OSS存储桶存在性失败: %w", err)
	}
	return exists, nil
}

func (s *AliyunOSSStorageService) MakeBucket(ctx context.Context, bucketName string) error {
	err := s.client.CreateBucket(bucketName)
	if err != nil {
		return fmt.Errorf("创建OSS存储桶失败: %w", err)
	}
	logger.Info("阿里云OSS存储桶创建成功", zap.String("bucket", bucketName))
	return nil
}

// GetObjectURL 返回对象的公开访问URL
func (s *AliyunOSSStorageService) GetObjectURL(bucketName, objectName string) string {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(s.cfg.Endpoint, "https://"), "http://")
	scheme := "https"
	if !s.cfg.UseSSL {
		scheme = "http"
	}
	// OSS 的 URL 格式：bucketName.Endpoint/objectName
	return fmt.Sprintf("%s://%s.%s/%s", scheme, bucketName, endpoint, objectName)
}
