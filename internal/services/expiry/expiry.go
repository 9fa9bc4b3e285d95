package expiry

import (
	"context"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"go.uber.org/zap"
)

// 文件失效原因
const (
	ReasonMarked    = "marked"    // 已被标记为过期，等待物理删除
	ReasonTime      = "time"      // 超过 expiresAt
	ReasonDownloads = "downloads" // 下载次数耗尽
)

// CheckResult 是一次存活判定的结果
type CheckResult struct {
	Live   bool
	Reason string // 不存活时给出原因: marked / time / downloads
}

// SweepItem 周期清理中单个文件的处理结果
type SweepItem struct {
	ID       uint64 `json:"id"`
	FileName string `json:"file_name"`
	Success  bool   `json:"success"`
}

// SweepResult 周期清理的汇总结果
type SweepResult struct {
	DeletedCount int         `json:"deleted_count"`
	Results      []SweepItem `json:"results"`
}

// Service 文件过期引擎：判定存活、执行清理、周期扫除
// 所有下载读取路径都必须先过 CheckAndMaybeExpire，不能只依赖周期扫除——
// 链接越过限制后必须立刻表现为失效
type Service interface {
	// Check 纯判定，不产生副作用
	Check(file *models.File) CheckResult
	// CheckAndMaybeExpire 判定存活；不存活时触发懒失效（删 blob、标记 is_expired）
	CheckAndMaybeExpire(ctx context.Context, file *models.File) CheckResult
	// Expire 懒失效：删 blob（失败记日志并继续），把行标记为 is_expired，删行留给周期扫除。
	// 访问路径只标记不删行，已销毁的链接再次访问仍然渲染"已过期"而不是"不存在"
	Expire(ctx context.Context, file *models.File) bool
	// Cleanup 物理清理：先删 blob（失败记日志并继续），再删行。幂等，周期扫除使用
	Cleanup(ctx context.Context, file *models.File) bool
	// SweepFiles 批量清理所有已过期的文件记录，单条失败不中断批次
	SweepFiles(ctx context.Context) (*SweepResult, error)
	// SweepPremium 把所有到期的 premium 记录翻成 inactive，返回影响行数
	SweepPremium(ctx context.Context) (int64, error)
}

type expiryService struct {
	fileRepo    repositories.FileRepository
	premiumRepo repositories.PremiumUserRepository
	store       storage.StorageService
	cfg         *config.Config
	now         func() time.Time // 测试中注入假时钟
}

// NewService 创建过期引擎实例
func NewService(fileRepo repositories.FileRepository, premiumRepo repositories.PremiumUserRepository, store storage.StorageService, cfg *config.Config) Service {
	return &expiryService{
		fileRepo:    fileRepo,
		premiumRepo: premiumRepo,
		store:       store,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *expiryService) Check(file *models.File) CheckResult {
	if file.IsExpired {
		return CheckResult{Live: false, Reason: ReasonMarked}
	}
	if s.now().After(file.ExpiresAt) {
		return CheckResult{Live: false, Reason: ReasonTime}
	}
	if file.ExpiryType == models.ExpiryTypeDownloads && file.DownloadLimit != nil &&
		file.DownloadCount >= *file.DownloadLimit {
		return CheckResult{Live: false, Reason: ReasonDownloads}
	}
	return CheckResult{Live: true}
}

func (s *expiryService) CheckAndMaybeExpire(ctx context.Context, file *models.File) CheckResult {
	result := s.Check(file)
	if !result.Live {
		s.Expire(ctx, file)
	}
	return result
}

// Expire 删 blob 并把行标记为 is_expired，不删行。
// 标记过的行让后续访问稳定命中 marked 原因（410），物理删除由 SweepFiles 完成。
func (s *expiryService) Expire(ctx context.Context, file *models.File) bool {
	logger.Info("标记失效文件",
		zap.Uint64("fileID", file.ID),
		zap.String("fileName", file.FileName),
		zap.String("shareID", file.ShareID))

	if err := s.store.RemoveObject(ctx, s.bucketName(), file.FileKey); err != nil {
		logger.Warn("删除对象存储文件失败，继续标记数据库记录",
			zap.String("fileKey", file.FileKey), zap.Error(err))
	}

	if file.IsExpired {
		return true
	}
	if err := s.fileRepo.MarkExpired(file.ID); err != nil {
		logger.Error("标记文件过期失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return false
	}
	file.IsExpired = true
	return true
}

// Cleanup 先删对象存储里的 blob，再删数据库行。
// blob 删除失败只记日志不阻断删行——孤儿 blob 是接受的、有日志的结果，不是致命错误。
// 对同一条记录重复调用是无害的 no-op（行已不在）。
func (s *expiryService) Cleanup(ctx context.Context, file *models.File) bool {
	logger.Info("清理过期文件",
		zap.Uint64("fileID", file.ID),
		zap.String("fileName", file.FileName),
		zap.String("shareID", file.ShareID))

	if err := s.store.RemoveObject(ctx, s.bucketName(), file.FileKey); err != nil {
		logger.Warn("删除对象存储文件失败，继续删除数据库记录",
			zap.String("fileKey", file.FileKey), zap.Error(err))
	}

	if err := s.fileRepo.Delete(file.ID); err != nil {
		logger.Error("删除文件记录失败", zap.Uint64("fileID", file.ID), zap.Error(err))
		return false
	}
	return true
}

func (s *expiryService) SweepFiles(ctx context.Context) (*SweepResult, error) {
	expired, err := s.fileRepo.FindExpired(s.now())
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Results: make([]SweepItem, 0, len(expired))}
	for i := range expired {
		file := &expired[i]
		ok := s.Cleanup(ctx, file)
		if ok {
			result.DeletedCount++
		}
		result.Results = append(result.Results, SweepItem{
			ID:       file.ID,
			FileName: file.FileName,
			Success:  ok,
		})
	}

	logger.Info("周期清理完成",
		zap.Int("expired", len(expired)),
		zap.Int("deleted", result.DeletedCount))
	return result, nil
}

func (s *expiryService) SweepPremium(ctx context.Context) (int64, error) {
	count, err := s.premiumRepo.DeactivateExpired(s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger.Info("停用过期 premium 订阅", zap.Int64("count", count))
	}
	return count, nil
}

func (s *expiryService) bucketName() string {
	if s.cfg.Storage.Type == "aliyun_oss" {
		return s.cfg.AliyunOSS.BucketName
	}
	return s.cfg.MinIO.BucketName
}
