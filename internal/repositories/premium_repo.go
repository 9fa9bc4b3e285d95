package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/models"
	"gorm.io/gorm"
)

type PremiumUserRepository interface {
	FindByWallet(walletAddress string) (*models.PremiumUser, error)
	FindBySignature(signature string) (*models.PremiumUser, error)
	// FindActiveByWallet 只返回 is_active 且未过期的记录
	FindActiveByWallet(walletAddress string, now time.Time) (*models.PremiumUser, error)
	// Upsert 按钱包地址写入：已存在则更新整行，不存在则插入。
	// 一个钱包最多一条记录的约束靠这里保证
	Upsert(user *models.PremiumUser) error
	// DeactivateExpired 把所有已过期但仍 active 的记录翻成 inactive，返回影响行数。
	// 只翻标记不删行，审计历史保留
	DeactivateExpired(now time.Time) (int64, error)
}

type premiumUserRepository struct {
	db *gorm.DB
}

// NewPremiumUserRepository 创建新的premiumUserRepository实例
func NewPremiumUserRepository(db *gorm.DB) PremiumUserRepository {
	return &premiumUserRepository{db: db}
}

func (r *premiumUserRepository) FindByWallet(walletAddress string) (*models.PremiumUser, error) {
	var user models.PremiumUser
	err := r.db.Where("wallet_address = ?", walletAddress).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询 premium 用户失败: %w", err)
	}
	return &user, nil
}

func (r *premiumUserRepository) FindBySignature(signature string) (*models.PremiumUser, error) {
	var user models.PremiumUser
	err := r.db.Where("transaction_signature = ?", signature).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("按交易签名查询 premium 用户失败: %w", err)
	}
	return &user, nil
}

func (r *premiumUserRepository) FindActiveByWallet(walletAddress string, now time.Time) (*models.PremiumUser, error) {
	var user models.PremiumUser
	err := r.db.Where("wallet_address = ? AND is_active = ? AND expires_at > ?", walletAddress, true, now).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询有效 premium 用户失败: %w", err)
	}
	return &user, nil
}

func (r *premiumUserRepository) Upsert(user *models.PremiumUser) error {
	existing, err := r.FindByWallet(user.WalletAddress)
	if err != nil {
		return err
	}
	if existing == nil {
		if err := r.db.Create(user).Error; err != nil {
			return fmt.Errorf("创建 premium 用户失败: %w", err)
		}
		return nil
	}

	err = r.db.Model(&models.PremiumUser{}).
		Where("wallet_address = ?", user.WalletAddress).
		Updates(map[string]any{
			"transaction_signature": user.TransactionSignature,
			"purchased_at":          user.PurchasedAt,
			"expires_at":            user.ExpiresAt,
			"is_active":             user.IsActive,
			"amount":                user.Amount,
		}).Error
	if err != nil {
		return fmt.Errorf("更新 premium 用户失败: %w", err)
	}
	return nil
}

func (r *premiumUserRepository) DeactivateExpired(now time.Time) (int64, error) {
	result := r.db.Model(&models.PremiumUser{}).
		Where("is_active = ? AND expires_at < ?", true, now).
		UpdateColumn("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("停用过期 premium 用户失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}
