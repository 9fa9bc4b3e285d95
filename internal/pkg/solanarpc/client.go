package solanarpc

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTxNotOnChain 交易在链上不存在或尚未达到 confirmed
	ErrTxNotOnChain = errors.New("链上未找到该交易")
	// ErrReferenceNotFound Solana Pay 的 reference 公钥没有关联到任何交易
	ErrReferenceNotFound = errors.New("未找到引用该 reference 的交易")
)

// TransactionDetail 是支付验证引擎需要的最小交易视图
// 余额以 lamports 计，Pre/PostBalances 与 AccountKeys 按下标一一对应
type TransactionDetail struct {
	Signature    string
	AccountKeys  []string
	PreBalances  []uint64
	PostBalances []uint64
	Failed       bool // 交易上链但执行出错 (meta.err 非空)
	Slot         uint64
	BlockTime    *time.Time
}

// ChainClient 是对 Solana RPC 的只读封装
// 支付验证引擎只依赖这个接口，测试用 MockChainClient 代替真实 RPC
type ChainClient interface {
	// GetTransaction 按签名获取已确认交易，不存在时返回 ErrTxNotOnChain
	GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error)
	// FindSignatureByReference 把 Solana Pay 的 reference 公钥解析为交易签名
	FindSignatureByReference(ctx context.Context, reference string) (string, error)
}
