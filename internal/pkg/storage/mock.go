package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MockStorageService 测试用的内存对象存储
type MockStorageService struct {
	mu sync.RWMutex

	objects map[string][]byte // "bucket/object" -> 内容
	// RemoveErr 非 nil 时 RemoveObject 返回该错误，模拟存储后端故障
	RemoveErr error
	// GetErr 非 nil 时 GetObject 返回该错误
	GetErr error
}

// NewMockStorageService 创建空的内存存储
func NewMockStorageService() *MockStorageService {
	return &MockStorageService{
		objects: make(map[string][]byte),
	}
}

func objectKey(bucketName, objectName string) string {
	return bucketName + "/" + objectName
}

func (m *MockStorageService) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, contentType string, opts PutObjectOptions) (PutObjectResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return PutObjectResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(bucketName, objectName)] = data
	return PutObjectResult{
		Bucket: bucketName,
		Key:    objectName,
		Size:   int64(len(data)),
	}, nil
}

func (m *MockStorageService) GetObject(ctx context.Context, bucketName, objectName string) (GetObjectResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return GetObjectResult{}, m.GetErr
	}
	data, ok := m.objects[objectKey(bucketName, objectName)]
	if !ok {
		return GetObjectResult{}, fmt.Errorf("object not found: %s/%s", bucketName, objectName)
	}
	return GetObjectResult{
		Reader: io.NopCloser(bytes.NewReader(data)),
		Size:   int64(len(data)),
	}, nil
}

func (m *MockStorageService) RemoveObject(ctx context.Context, bucketName, objectName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.objects, objectKey(bucketName, objectName))
	return nil
}

func (m *MockStorageService) IsBucketExist(ctx context.Context, bucketName string) (bool, error) {
	return true, nil
}

func (m *MockStorageService) MakeBucket(ctx context.Context, bucketName string) error {
	return nil
}

func (m *MockStorageService) GetObjectURL(bucketName, objectName string) string {
	return fmt.Sprintf("mock://%s/%s", bucketName, objectName)
}

// HasObject 断言辅助：对象是否仍然存在
func (m *MockStorageService) HasObject(bucketName, objectName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[objectKey(bucketName, objectName)]
	return ok
}

// 编译期确认 MockStorageService 实现了 StorageService
var _ StorageService = (*MockStorageService)(nil)
