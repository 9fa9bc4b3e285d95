package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/utils"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/3Eeeecho/go-dropburn/internal/services/expiry"
	"go.uber.org/zap"
)

// UploadInput 上传请求参数
type UploadInput struct {
	FileName string
	FileType string
	FileSize int64
	Reader   io.Reader
	// ExpiryType downloads 或 time
	ExpiryType string
	// DownloadLimit 用户选择的下载次数（未 +1 的原始值），downloads 型必填
	DownloadLimit *int
	// TimeLimit 小时数，time 型必填
	TimeLimit *int
}

// UploadResult 上传成功的返回值，ShareURL 中只暴露 shareID
type UploadResult struct {
	ShareID  string `json:"shareId"`
	ShareURL string `json:"shareUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
}

// FileMetadata 元数据变体的返回值
// DownloadLimit 是换算回用户可见口径的展示值（存储值 -1）
type FileMetadata struct {
	ID            uint64 `json:"id"`
	FileName      string `json:"fileName"`
	FileSize      int64  `json:"fileSize"`
	FileType      string `json:"fileType"`
	FileURL       string `json:"fileUrl"`
	DownloadCount int    `json:"downloadCount"`
	IsExpired     bool   `json:"isExpired"` // 本次下载是否为终次
	ExpiryType    string `json:"expiryType"`
	DownloadLimit *int   `json:"downloadLimit"`
	TimeLimit     *int   `json:"timeLimit"`
}

// DownloadStream 字节流变体的返回值
type DownloadStream struct {
	Reader   io.ReadCloser
	Size     int64
	FileName string
	FileType string
	// CleanupAfter 终次下载时非空，调用方在响应体写完后调用。
	// 终次下载的内容已经完整读入内存，清理与响应发送并发也不会截断数据
	CleanupAfter func()
}

// Service 上传与两种下载变体
type Service interface {
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)
	// GetMetadata 元数据变体：计入一次下载并返回文件信息，不传输内容
	GetMetadata(ctx context.Context, shareID string) (*FileMetadata, error)
	// OpenStream 字节流变体：计入一次下载并返回内容读取器
	OpenStream(ctx context.Context, shareID string) (*DownloadStream, error)
}

type transferService struct {
	fileRepo repositories.FileRepository
	store    storage.StorageService
	expiry   expiry.Service
	cfg      *config.Config
	now      func() time.Time
}

// NewService 创建传输服务实例
func NewService(fileRepo repositories.FileRepository, store storage.StorageService, expirySvc expiry.Service, cfg *config.Config) Service {
	return &transferService{
		fileRepo: fileRepo,
		store:    store,
		expiry:   expirySvc,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *transferService) Upload(ctx context.Context, input *UploadInput) (*UploadResult, error) {
	if input.Reader == nil || input.FileName == "" {
		return nil, xerr.ErrMissingFile
	}
	if input.FileSize > s.cfg.File.MaxFileSize {
		return nil, xerr.ErrFileTooLarge
	}

	var expiresAt time.Time
	var storedLimit *int
	var timeLimit *int

	switch input.ExpiryType {
	case models.ExpiryTypeTime:
		if input.TimeLimit == nil || *input.TimeLimit <= 0 {
			return nil, xerr.ErrInvalidParams
		}
		expiresAt = s.now().Add(time.Duration(*input.TimeLimit) * time.Hour)
		timeLimit = input.TimeLimit
	case models.ExpiryTypeDownloads:
		if input.DownloadLimit == nil || *input.DownloadLimit <= 0 {
			return nil, xerr.ErrInvalidParams
		}
		// 按下载次数过期的文件也有 72h 硬性兜底
		expiresAt = s.now().Add(s.cfg.File.MaxLifetime)
		// 存储值 +1：计数从 0 开始且在比较前自增，不加一会让首次下载
		// 之后立刻 count==limit，第二个人永远拿不到文件
		adjusted := *input.DownloadLimit + 1
		storedLimit = &adjusted
	default:
		return nil, xerr.ErrInvalidExpiryType
	}

	shareID, err := utils.GenerateShareID()
	if err != nil {
		return nil, err
	}

	fileKey := fmt.Sprintf("files/%s/%s", shareID, input.FileName)
	_, err = s.store.PutObject(ctx, s.bucketName(), fileKey, input.Reader, input.FileSize, input.FileType,
		storage.PutObjectOptions{ExpiresAt: expiresAt})
	if err != nil {
		logger.Error("上传文件到对象存储失败", zap.String("fileKey", fileKey), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}

	file := &models.File{
		FileKey:       fileKey,
		FileName:      input.FileName,
		FileType:      input.FileType,
		FileSize:      input.FileSize,
		ShareID:       shareID,
		ExpiryType:    input.ExpiryType,
		DownloadLimit: storedLimit,
		TimeLimit:     timeLimit,
		ExpiresAt:     expiresAt,
		DownloadCount: 0,
		IsExpired:     false,
		UploadedAt:    s.now(),
	}
	if err := s.fileRepo.Create(file); err != nil {
		logger.Error("写入文件记录失败", zap.String("shareID", shareID), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.DatabaseErrorCode, xerr.ErrDatabaseError)
	}

	logger.Info("文件上传成功",
		zap.String("shareID", shareID),
		zap.String("fileName", input.FileName),
		zap.Int64("fileSize", input.FileSize),
		zap.String("expiryType", input.ExpiryType))

	return &UploadResult{
		ShareID:  shareID,
		ShareURL: fmt.Sprintf("%s/download/%s", s.cfg.Server.BaseURL, shareID),
		FileName: input.FileName,
		FileSize: input.FileSize,
	}, nil
}

// resolveLive 两种下载变体共享的前置步骤：
// 查记录 → 过期判定（不存活时顺带标记失效）→ 自增计数 → 用自增前的值判断本次是否为终次下载
func (s *transferService) resolveLive(ctx context.Context, shareID string) (*models.File, bool, error) {
	file, err := s.fileRepo.FindByShareID(shareID)
	if err != nil {
		return nil, false, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}
	if file == nil {
		return nil, false, xerr.ErrFileNotFound
	}

	if result := s.expiry.CheckAndMaybeExpire(ctx, file); !result.Live {
		logger.Info("访问已失效的分享链接",
			zap.String("shareID", shareID), zap.String("reason", result.Reason))
		return nil, false, xerr.ErrLinkExpired
	}

	// 无条件自增：后续 blob 获取失败也不回滚，这是接受的不一致
	if err := s.fileRepo.IncrementDownloadCount(file.ID); err != nil {
		return nil, false, xerr.NewCodeError(xerr.DatabaseErrorCode, err)
	}

	// 终次判定用自增前的计数，对照用户可见的次数上限（存储值 -1）：
	// 本次下载使计数达到用户上限时即为终次，存储值里多出的 1 只用来保证首次下载放行
	willExpire := file.ExpiryType == models.ExpiryTypeDownloads &&
		file.DownloadLimit != nil &&
		file.DownloadCount+1 >= *file.DownloadLimit-1

	return file, willExpire, nil
}

func (s *transferService) GetMetadata(ctx context.Context, shareID string) (*FileMetadata, error) {
	file, willExpire, err := s.resolveLive(ctx, shareID)
	if err != nil {
		return nil, err
	}

	meta := &FileMetadata{
		ID:            file.ID,
		FileName:      file.FileName,
		FileSize:      file.FileSize,
		FileType:      file.FileType,
		FileURL:       s.store.GetObjectURL(s.bucketName(), file.FileKey),
		DownloadCount: file.DownloadCount + 1,
		IsExpired:     willExpire,
		ExpiryType:    file.ExpiryType,
		DownloadLimit: file.DisplayDownloadLimit(),
		TimeLimit:     file.TimeLimit,
	}

	// 终次下载：元数据变体不传内容，直接同步标记失效
	if willExpire {
		s.expiry.Expire(ctx, file)
	}
	return meta, nil
}

func (s *transferService) OpenStream(ctx context.Context, shareID string) (*DownloadStream, error) {
	file, willExpire, err := s.resolveLive(ctx, shareID)
	if err != nil {
		return nil, err
	}

	obj, err := s.store.GetObject(ctx, s.bucketName(), file.FileKey)
	if err != nil {
		// 计数已经加过了，这里不回滚
		logger.Error("获取文件内容失败", zap.String("fileKey", file.FileKey), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
	}

	stream := &DownloadStream{
		Reader:   obj.Reader,
		Size:     file.FileSize,
		FileName: file.FileName,
		FileType: file.FileType,
	}

	if willExpire {
		// 终次下载：把内容整个读进内存再标记源对象失效，
		// 失效处理与响应发送并发进行也不会影响已缓冲的数据
		data, readErr := io.ReadAll(obj.Reader)
		obj.Reader.Close()
		if readErr != nil {
			logger.Error("读取文件内容失败", zap.String("fileKey", file.FileKey), zap.Error(readErr))
			return nil, xerr.NewCodeError(xerr.StorageErrorCode, xerr.ErrStorageError)
		}
		stream.Reader = io.NopCloser(bytes.NewReader(data))
		stream.Size = int64(len(data))
		stream.CleanupAfter = func() {
			s.expiry.Expire(context.Background(), file)
		}
	}

	return stream, nil
}

func (s *transferService) bucketName() string {
	if s.cfg.Storage.Type == "aliyun_oss" {
		return s.cfg.AliyunOSS.BucketName
	}
	return s.cfg.MinIO.BucketName
}
