package models

import (
	"time"
)

// 过期策略类型
const (
	ExpiryTypeDownloads = "downloads" // 按下载次数过期，72h 兜底
	ExpiryTypeTime      = "time"      // 按时间过期
)

// File 对应 files 表，一条记录即一个自毁分享文件
//
// 注意：按下载次数过期的文件，DownloadLimit 存的是用户选择的次数 +1，
// 保证第一次下载一定成功；展示给前端时需要减回去。
type File struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	FileKey  string `gorm:"type:varchar(512);unique;not null" json:"file_key"` // 对象存储中的定位 key
	FileName string `gorm:"type:varchar(255);not null" json:"file_name"`
	FileType string `gorm:"type:varchar(128);not null" json:"file_type"`
	FileSize int64  `gorm:"type:bigint;not null" json:"file_size"`

	// ShareID 是下载链接中的公开 token，与内部 ID、FileKey 都不同
	ShareID string `gorm:"type:varchar(32);unique;not null;index" json:"share_id"`

	ExpiryType    string `gorm:"type:varchar(16);not null" json:"expiry_type"` // downloads 或 time
	DownloadLimit *int   `gorm:"default:null" json:"download_limit"`           // 已 +1 的存储值
	TimeLimit     *int   `gorm:"default:null" json:"time_limit"`               // 小时

	// ExpiresAt 创建后永不为空：time 型为 now+TimeLimit，downloads 型为 now+72h 兜底
	ExpiresAt     time.Time `gorm:"not null" json:"expires_at"`
	DownloadCount int       `gorm:"not null;default:0" json:"download_count"`
	IsExpired     bool      `gorm:"not null;default:false" json:"is_expired"` // 终态标记，置位后等待物理删除
	UploadedAt    time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// TableName 指定 GORM 使用的表名
func (File) TableName() string {
	return "files"
}

// DisplayDownloadLimit 把存储值换算回用户可见的下载次数
func (f *File) DisplayDownloadLimit() *int {
	if f.ExpiryType != ExpiryTypeDownloads || f.DownloadLimit == nil {
		return f.DownloadLimit
	}
	display := *f.DownloadLimit - 1
	return &display
}
