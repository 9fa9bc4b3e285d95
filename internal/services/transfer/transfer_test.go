package transfer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/storage"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/3Eeeecho/go-dropburn/internal/services/expiry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db    *gorm.DB
	store *storage.MockStorageService
	svc   *transferService
	files repositories.FileRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.File{}, &models.PremiumUser{}, &models.TransactionLog{}))

	cfg := &config.Config{
		Server:  config.ServerConfig{BaseURL: "http://localhost:8080"},
		Storage: config.StorageConfig{Type: "minio"},
		MinIO:   config.MinIOConfig{BucketName: "test-bucket"},
		File: config.FileConfig{
			MaxFileSize: 50 * 1024 * 1024,
			MaxLifetime: 72 * time.Hour,
		},
	}
	store := storage.NewMockStorageService()
	fileRepo := repositories.NewFileRepository(db)
	premiumRepo := repositories.NewPremiumUserRepository(db)
	expirySvc := expiry.NewService(fileRepo, premiumRepo, store, cfg)

	svc := NewService(fileRepo, store, expirySvc, cfg).(*transferService)
	return &testEnv{db: db, store: store, svc: svc, files: fileRepo}
}

func intPtr(v int) *int { return &v }

func (e *testEnv) upload(t *testing.T, content, expiryType string, downloadLimit, timeLimit *int) *UploadResult {
	t.Helper()
	result, err := e.svc.Upload(context.Background(), &UploadInput{
		FileName:      "doc.txt",
		FileType:      "text/plain",
		FileSize:      int64(len(content)),
		Reader:        strings.NewReader(content),
		ExpiryType:    expiryType,
		DownloadLimit: downloadLimit,
		TimeLimit:     timeLimit,
	})
	require.NoError(t, err)
	return result
}

func TestUploadStoresAdjustedDownloadLimit(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeDownloads, intPtr(1), nil)

	file, err := env.files.FindByShareID(result.ShareID)
	require.NoError(t, err)
	require.NotNil(t, file)

	// 用户选 1 次，存储 2；展示值换算回 1
	require.NotNil(t, file.DownloadLimit)
	assert.Equal(t, 2, *file.DownloadLimit)
	assert.Equal(t, 1, *file.DisplayDownloadLimit())

	// 次数型文件也带 72h 硬性兜底
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), file.ExpiresAt, time.Minute)
	assert.Contains(t, result.ShareURL, "/download/"+result.ShareID)
}

func TestUploadTimeExpiry(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeTime, nil, intPtr(24))

	file, err := env.files.FindByShareID(result.ShareID)
	require.NoError(t, err)
	require.NotNil(t, file)

	assert.Nil(t, file.DownloadLimit)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), file.ExpiresAt, time.Minute)
}

func TestUploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Upload(ctx, &UploadInput{FileName: "", Reader: strings.NewReader("x"), ExpiryType: models.ExpiryTypeTime, TimeLimit: intPtr(1)})
	assert.ErrorIs(t, err, xerr.ErrMissingFile)

	_, err = env.svc.Upload(ctx, &UploadInput{
		FileName: "big.bin", FileType: "application/octet-stream",
		FileSize: 51 * 1024 * 1024, Reader: strings.NewReader("x"),
		ExpiryType: models.ExpiryTypeTime, TimeLimit: intPtr(1),
	})
	assert.ErrorIs(t, err, xerr.ErrFileTooLarge)

	_, err = env.svc.Upload(ctx, &UploadInput{
		FileName: "a.txt", FileType: "text/plain", FileSize: 1,
		Reader: strings.NewReader("x"), ExpiryType: "weekly",
	})
	assert.ErrorIs(t, err, xerr.ErrInvalidExpiryType)

	// downloads 型缺 downloadLimit
	_, err = env.svc.Upload(ctx, &UploadInput{
		FileName: "a.txt", FileType: "text/plain", FileSize: 1,
		Reader: strings.NewReader("x"), ExpiryType: models.ExpiryTypeDownloads,
	})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestFirstDownloadSucceedsThenLinkDies(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeDownloads, intPtr(1), nil)
	ctx := context.Background()

	// 用户限 1 次：第一次下载必须成功，且被标为终次
	meta, err := env.svc.GetMetadata(ctx, result.ShareID)
	require.NoError(t, err)
	assert.True(t, meta.IsExpired)
	assert.Equal(t, 1, meta.DownloadCount)
	assert.Equal(t, 1, *meta.DownloadLimit)

	// 终次下载后链接销毁，但再访问渲染"已过期"而不是"不存在"
	_, err = env.svc.GetMetadata(ctx, result.ShareID)
	assert.ErrorIs(t, err, xerr.ErrLinkExpired)

	// 行还在，只是被标记；物理删除留给周期扫除
	file, err := env.files.FindByShareID(result.ShareID)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.True(t, file.IsExpired)
}

func TestIntermediateDownloadNotTerminal(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeDownloads, intPtr(3), nil)
	ctx := context.Background()

	meta, err := env.svc.GetMetadata(ctx, result.ShareID)
	require.NoError(t, err)
	assert.False(t, meta.IsExpired)
	assert.Equal(t, 1, meta.DownloadCount)

	meta, err = env.svc.GetMetadata(ctx, result.ShareID)
	require.NoError(t, err)
	assert.False(t, meta.IsExpired)
	assert.Equal(t, 2, meta.DownloadCount)

	// 第三次触达用户上限，终次
	meta, err = env.svc.GetMetadata(ctx, result.ShareID)
	require.NoError(t, err)
	assert.True(t, meta.IsExpired)
	assert.Equal(t, 3, meta.DownloadCount)
}

func TestExpiredTimeLinkIsGone(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeTime, nil, intPtr(1))
	ctx := context.Background()

	// 把到期时间拨到过去，模拟超时
	require.NoError(t, env.db.Model(&models.File{}).
		Where("share_id = ?", result.ShareID).
		UpdateColumn("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err := env.svc.GetMetadata(ctx, result.ShareID)
	assert.ErrorIs(t, err, xerr.ErrLinkExpired)

	// 懒失效只标记不删行，重复访问仍然是 410
	_, err = env.svc.GetMetadata(ctx, result.ShareID)
	assert.ErrorIs(t, err, xerr.ErrLinkExpired)
}

func TestUnknownShareIDNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetMetadata(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, xerr.ErrFileNotFound)
}

func TestOpenStreamTerminalDownloadBuffersContent(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "terminal content", models.ExpiryTypeDownloads, intPtr(1), nil)
	ctx := context.Background()

	stream, err := env.svc.OpenStream(ctx, result.ShareID)
	require.NoError(t, err)
	require.NotNil(t, stream.CleanupAfter)

	// 失效处理先执行，内容仍然完整可读——终次下载已整体读入内存
	stream.CleanupAfter()
	data, err := io.ReadAll(stream.Reader)
	require.NoError(t, err)
	assert.Equal(t, "terminal content", string(data))

	file, err := env.files.FindByShareID(result.ShareID)
	require.NoError(t, err)
	require.NotNil(t, file)
	assert.True(t, file.IsExpired)
	assert.False(t, env.store.HasObject("test-bucket", "files/"+result.ShareID+"/doc.txt"))
}

func TestOpenStreamNonTerminalStreamsDirectly(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "streaming content", models.ExpiryTypeDownloads, intPtr(5), nil)

	stream, err := env.svc.OpenStream(context.Background(), result.ShareID)
	require.NoError(t, err)
	assert.Nil(t, stream.CleanupAfter)

	data, err := io.ReadAll(stream.Reader)
	require.NoError(t, err)
	require.NoError(t, stream.Reader.Close())
	assert.Equal(t, "streaming content", string(data))
}

func TestOpenStreamStorageFailureKeepsIncrement(t *testing.T) {
	env := newTestEnv(t)
	result := env.upload(t, "hello", models.ExpiryTypeDownloads, intPtr(3), nil)
	env.store.GetErr = errors.New("storage unavailable")

	_, err := env.svc.OpenStream(context.Background(), result.ShareID)
	assert.ErrorIs(t, err, xerr.ErrStorageError)

	// 计数在 blob 获取之前自增且不回滚
	file, ferr := env.files.FindByShareID(result.ShareID)
	require.NoError(t, ferr)
	require.NotNil(t, file)
	assert.Equal(t, 1, file.DownloadCount)
}
