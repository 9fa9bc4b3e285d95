package repositories

import (
	"errors"
	"fmt"

	"github.com/3Eeeecho/go-dropburn/internal/models"
	"gorm.io/gorm"
)

type TransactionLogRepository interface {
	Create(log *models.TransactionLog) error
	FindBySignature(signature string) (*models.TransactionLog, error)
	// UpdateStatus 按签名更新状态，metadata 为 nil 时保留原值
	UpdateStatus(signature, status string, metadata *string) error
}

type transactionLogRepository struct {
	db *gorm.DB
}

// NewTransactionLogRepository 创建新的transactionLogRepository实例
func NewTransactionLogRepository(db *gorm.DB) TransactionLogRepository {
	return &transactionLogRepository{db: db}
}

func (r *transactionLogRepository) Create(log *models.TransactionLog) error {
	if err := r.db.Create(log).Error; err != nil {
		return fmt.Errorf("写入交易日志失败: %w", err)
	}
	return nil
}

func (r *transactionLogRepository) FindBySignature(signature string) (*models.TransactionLog, error) {
	var log models.TransactionLog
	err := r.db.Where("signature = ?", signature).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询交易日志失败: %w", err)
	}
	return &log, nil
}

func (r *transactionLogRepository) UpdateStatus(signature, status string, metadata *string) error {
	updates := map[string]any{"status": status}
	if metadata != nil {
		updates["metadata"] = *metadata
	}
	result := r.db.Model(&models.TransactionLog{}).
		Where("signature = ?", signature).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("更新交易日志失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
