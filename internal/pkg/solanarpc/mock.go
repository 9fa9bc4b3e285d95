package solanarpc

import (
	"context"
	"sync"
)

// MockChainClient 是测试用的内存 ChainClient，按签名返回预置交易
type MockChainClient struct {
	mu sync.RWMutex

	transactions map[string]*TransactionDetail
	references   map[string]string // reference 公钥 -> 签名
}

// NewMockChainClient 创建空的 mock 链客户端
func NewMockChainClient() *MockChainClient {
	return &MockChainClient{
		transactions: make(map[string]*TransactionDetail),
		references:   make(map[string]string),
	}
}

// AddTransaction 预置一笔链上交易
func (m *MockChainClient) AddTransaction(detail *TransactionDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[detail.Signature] = detail
}

// AddReference 预置 reference -> 签名的映射
func (m *MockChainClient) AddReference(reference, signature string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.references[reference] = signature
}

func (m *MockChainClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	detail, ok := m.transactions[signature]
	if !ok {
		return nil, ErrTxNotOnChain
	}
	return detail, nil
}

func (m *MockChainClient) FindSignatureByReference(ctx context.Context, reference string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sig, ok := m.references[reference]
	if !ok {
		return "", ErrReferenceNotFound
	}
	return sig, nil
}
