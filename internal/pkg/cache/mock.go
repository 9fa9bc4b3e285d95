package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryCache 测试用的内存 Cache 实现，不处理过期淘汰
type MemoryCache struct {
	mu sync.RWMutex

	entries map[string][]byte
	// FailOps 为 true 时所有操作返回错误，模拟 redis 不可用
	FailOps bool
	failErr error
}

// NewMemoryCache 创建空的内存缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string][]byte),
	}
}

// Fail 让后续所有操作返回给定错误
func (m *MemoryCache) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailOps = true
	m.failErr = err
}

func (m *MemoryCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOps {
		return m.failErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string, target any) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailOps {
		return m.failErr
	}
	data, ok := m.entries[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(data, target)
}

func (m *MemoryCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailOps {
		return m.failErr
	}
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

var _ Cache = (*MemoryCache)(nil)
