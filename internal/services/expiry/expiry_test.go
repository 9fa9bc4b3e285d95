package expiry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db      *gorm.DB
	store   *storage.MockStorageService
	filesvc *expiryService
	files   repositories.FileRepository
	premium repositories.PremiumUserRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.File{}, &models.PremiumUser{}, &models.TransactionLog{}))

	cfg := &config.Config{
		Storage: config.StorageConfig{Type: "minio"},
		MinIO:   config.MinIOConfig{BucketName: "test-bucket"},
	}
	store := storage.NewMockStorageService()
	fileRepo := repositories.NewFileRepository(db)
	premiumRepo := repositories.NewPremiumUserRepository(db)

	svc := NewService(fileRepo, premiumRepo, store, cfg).(*expiryService)
	return &testEnv{
		db:      db,
		store:   store,
		filesvc: svc,
		files:   fileRepo,
		premium: premiumRepo,
	}
}

func intPtr(v int) *int { return &v }

func (e *testEnv) seedFile(t *testing.T, file *models.File) *models.File {
	t.Helper()
	require.NoError(t, e.files.Create(file))
	if file.FileKey != "" {
		_, err := e.store.PutObject(context.Background(), "test-bucket", file.FileKey,
			strings.NewReader("content"), 7, "text/plain", storage.PutObjectOptions{})
		require.NoError(t, err)
	}
	return file
}

func TestCheckLiveness(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now()
	env.filesvc.now = func() time.Time { return base }

	tests := []struct {
		name   string
		file   models.File
		live   bool
		reason string
	}{
		{
			name: "按次数过期的新文件存活",
			file: models.File{
				ExpiryType: models.ExpiryTypeDownloads, DownloadLimit: intPtr(3),
				DownloadCount: 0, ExpiresAt: base.Add(72 * time.Hour),
			},
			live: true,
		},
		{
			name: "已标记过期",
			file: models.File{
				ExpiryType: models.ExpiryTypeTime, IsExpired: true,
				ExpiresAt: base.Add(time.Hour),
			},
			live: false, reason: ReasonMarked,
		},
		{
			name: "超过到期时间",
			file: models.File{
				ExpiryType: models.ExpiryTypeTime,
				ExpiresAt:  base.Add(-time.Minute),
			},
			live: false, reason: ReasonTime,
		},
		{
			name: "下载次数耗尽",
			file: models.File{
				ExpiryType: models.ExpiryTypeDownloads, DownloadLimit: intPtr(2),
				DownloadCount: 2, ExpiresAt: base.Add(72 * time.Hour),
			},
			live: false, reason: ReasonDownloads,
		},
		{
			name: "次数型文件同样受 72h 兜底约束",
			file: models.File{
				ExpiryType: models.ExpiryTypeDownloads, DownloadLimit: intPtr(10),
				DownloadCount: 0, ExpiresAt: base.Add(-time.Second),
			},
			live: false, reason: ReasonTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := env.filesvc.Check(&tt.file)
			assert.Equal(t, tt.live, result.Live)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestCheckAndMaybeExpireMarksRow(t *testing.T) {
	env := newTestEnv(t)
	file := env.seedFile(t, &models.File{
		FileKey: "files/abc/doc.txt", FileName: "doc.txt", FileType: "text/plain",
		FileSize: 7, ShareID: "abc", ExpiryType: models.ExpiryTypeTime,
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	result := env.filesvc.CheckAndMaybeExpire(context.Background(), file)
	assert.False(t, result.Live)
	assert.Equal(t, ReasonTime, result.Reason)

	// blob 被删，行保留并被标记，物理删除留给周期扫除
	assert.False(t, env.store.HasObject("test-bucket", file.FileKey))
	got, err := env.files.FindByID(file.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsExpired)

	// 标记过的行再判定稳定命中 marked
	again := env.filesvc.Check(got)
	assert.False(t, again.Live)
	assert.Equal(t, ReasonMarked, again.Reason)
}

func TestExpireMarkAndBlobFailure(t *testing.T) {
	env := newTestEnv(t)
	file := env.seedFile(t, &models.File{
		FileKey: "files/mk/c.bin", FileName: "c.bin", FileType: "application/octet-stream",
		FileSize: 7, ShareID: "mk", ExpiryType: models.ExpiryTypeTime,
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	env.store.RemoveErr = errors.New("storage unavailable")

	// blob 删除失败不阻断标记
	assert.True(t, env.filesvc.Expire(context.Background(), file))
	got, err := env.files.FindByID(file.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsExpired)

	// 重复标记无害
	assert.True(t, env.filesvc.Expire(context.Background(), file))
}

func TestCleanupIdempotent(t *testing.T) {
	env := newTestEnv(t)
	file := env.seedFile(t, &models.File{
		FileKey: "files/xyz/a.bin", FileName: "a.bin", FileType: "application/octet-stream",
		FileSize: 7, ShareID: "xyz", ExpiryType: models.ExpiryTypeTime,
		ExpiresAt: time.Now().Add(-time.Hour),
	})

	assert.True(t, env.filesvc.Cleanup(context.Background(), file))
	// 第二次清理同一条记录是无害的 no-op
	assert.True(t, env.filesvc.Cleanup(context.Background(), file))
}

func TestCleanupBlobFailureStillDeletesRow(t *testing.T) {
	env := newTestEnv(t)
	file := env.seedFile(t, &models.File{
		FileKey: "files/fail/b.bin", FileName: "b.bin", FileType: "application/octet-stream",
		FileSize: 7, ShareID: "fail", ExpiryType: models.ExpiryTypeTime,
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	env.store.RemoveErr = errors.New("storage unavailable")

	// blob 删除失败不阻断删行，孤儿 blob 是接受的结果
	assert.True(t, env.filesvc.Cleanup(context.Background(), file))
	got, err := env.files.FindByID(file.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSweepFiles(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	env.seedFile(t, &models.File{
		FileKey: "files/e1/1.txt", FileName: "1.txt", FileType: "text/plain", FileSize: 7,
		ShareID: "e1", ExpiryType: models.ExpiryTypeTime, ExpiresAt: now.Add(-time.Hour),
	})
	env.seedFile(t, &models.File{
		FileKey: "files/e2/2.txt", FileName: "2.txt", FileType: "text/plain", FileSize: 7,
		ShareID: "e2", ExpiryType: models.ExpiryTypeDownloads, DownloadLimit: intPtr(2),
		IsExpired: true, ExpiresAt: now.Add(time.Hour),
	})
	live := env.seedFile(t, &models.File{
		FileKey: "files/l1/3.txt", FileName: "3.txt", FileType: "text/plain", FileSize: 7,
		ShareID: "l1", ExpiryType: models.ExpiryTypeTime, ExpiresAt: now.Add(time.Hour),
	})

	result, err := env.filesvc.SweepFiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Len(t, result.Results, 2)

	// 存活文件不受影响
	got, err := env.files.FindByID(live.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, env.store.HasObject("test-bucket", live.FileKey))
}

func TestSweepPremium(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()

	require.NoError(t, env.premium.Upsert(&models.PremiumUser{
		WalletAddress: "wallet-expired", TransactionSignature: "sig-1",
		PurchasedAt: now.AddDate(0, 0, -31), ExpiresAt: now.Add(-time.Hour),
		IsActive: true, Amount: 10_000_000,
	}))
	require.NoError(t, env.premium.Upsert(&models.PremiumUser{
		WalletAddress: "wallet-active", TransactionSignature: "sig-2",
		PurchasedAt: now, ExpiresAt: now.AddDate(0, 0, 30),
		IsActive: true, Amount: 10_000_000,
	}))

	count, err := env.filesvc.SweepPremium(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// 只翻 is_active 标记，行保留
	expired, err := env.premium.FindByWallet("wallet-expired")
	require.NoError(t, err)
	require.NotNil(t, expired)
	assert.False(t, expired.IsActive)

	active, err := env.premium.FindActiveByWallet("wallet-active", now)
	require.NoError(t, err)
	require.NotNil(t, active)
}
