package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/models"
	"gorm.io/gorm"
)

type FileRepository interface {
	Create(file *models.File) error
	FindByShareID(shareID string) (*models.File, error)
	FindByID(id uint64) (*models.File, error)
	// IncrementDownloadCount 单语句自增，不做 compare-and-swap：
	// 并发下载计数可能超过上限，这是接受的弱保证
	IncrementDownloadCount(id uint64) error
	MarkExpired(id uint64) error
	Delete(id uint64) error
	// FindExpired 查出所有 is_expired 或 expires_at 已过的记录，供周期清理使用
	FindExpired(now time.Time) ([]models.File, error)
}

type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建新的fileRepository实例
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(file *models.File) error {
	return r.db.Create(file).Error
}

// FindByShareID 根据公开分享ID查找记录，未找到返回 nil, nil
func (r *fileRepository) FindByShareID(shareID string) (*models.File, error) {
	var file models.File
	err := r.db.Where("share_id = ?", shareID).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询分享文件失败: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) FindByID(id uint64) (*models.File, error) {
	var file models.File
	err := r.db.Where("id = ?", id).First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询文件记录失败: %w", err)
	}
	return &file, nil
}

func (r *fileRepository) IncrementDownloadCount(id uint64) error {
	err := r.db.Model(&models.File{}).
		Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("自增下载次数失败: %w", err)
	}
	return nil
}

func (r *fileRepository) MarkExpired(id uint64) error {
	err := r.db.Model(&models.File{}).
		Where("id = ?", id).
		UpdateColumn("is_expired", true).Error
	if err != nil {
		return fmt.Errorf("标记文件过期失败: %w", err)
	}
	return nil
}

// Delete 物理删除记录，记录已不存在时不报错（清理操作要求幂等）
func (r *fileRepository) Delete(id uint64) error {
	err := r.db.Where("id = ?", id).Delete(&models.File{}).Error
	if err != nil {
		return fmt.Errorf("删除文件记录失败: %w", err)
	}
	return nil
}

func (r *fileRepository) FindExpired(now time.Time) ([]models.File, error) {
	var files []models.File
	err := r.db.Where("is_expired = ? OR expires_at < ?", true, now).Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("查询过期文件失败: %w", err)
	}
	return files, nil
}
