package models

import (
	"time"
)

// PremiumUser 对应 premium_users 表，一个钱包地址最多一条记录
// 同一钱包重复购买时更新原记录而不是插入新行；
// TransactionSignature 的唯一约束是防止同一笔交易重复入账的幂等保障
type PremiumUser struct {
	ID                   uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletAddress        string    `gorm:"type:varchar(64);unique;not null" json:"wallet_address"`
	TransactionSignature string    `gorm:"type:varchar(128);unique;not null" json:"transaction_signature"`
	PurchasedAt          time.Time `gorm:"not null" json:"purchased_at"`
	ExpiresAt            time.Time `gorm:"not null" json:"expires_at"`
	IsActive             bool      `gorm:"not null;default:true" json:"is_active"`
	Amount               uint64    `gorm:"not null" json:"amount"` // lamports
}

// TableName 指定 GORM 使用的表名
func (PremiumUser) TableName() string {
	return "premium_users"
}
