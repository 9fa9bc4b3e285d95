package models

import (
	"time"
)

// 交易日志状态
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// TransactionLog 对应 transaction_logs 表，按交易签名追加/更新的审计流水
// 客户端发起支付时先写入 pending 占位记录，验证引擎确认后写入 confirmed 记录
type TransactionLog struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Signature     string    `gorm:"type:varchar(128);unique;not null" json:"signature"`
	WalletAddress string    `gorm:"type:varchar(64);not null" json:"wallet_address"`
	Amount        uint64    `gorm:"not null" json:"amount"` // lamports
	Status        string    `gorm:"type:varchar(16);not null" json:"status"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
	Metadata      *string   `gorm:"type:text" json:"metadata"` // JSON 字符串
}

// TableName 指定 GORM 使用的表名
func (TransactionLog) TableName() string {
	return "transaction_logs"
}
