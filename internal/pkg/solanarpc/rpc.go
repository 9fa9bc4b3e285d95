package solanarpc

import (
	"context"
	"fmt"

	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// RPCChainClient 基于 solana-go 的 ChainClient 实现
type RPCChainClient struct {
	client *rpc.Client
}

// NewRPCChainClient 创建指向给定 RPC 节点的客户端
// endpoint 例如 https://api.mainnet-beta.solana.com
func NewRPCChainClient(endpoint string) *RPCChainClient {
	logger.Info("Solana RPC 客户端初始化", zap.String("endpoint", endpoint))
	return &RPCChainClient{
		client: rpc.New(endpoint),
	}
}

func (c *RPCChainClient) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("交易签名格式无效: %w", err)
	}

	maxVersion := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransaction RPC 调用失败: %w", err)
	}
	if out == nil {
		return nil, ErrTxNotOnChain
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("解析交易内容失败: %w", err)
	}

	detail := &TransactionDetail{
		Signature: signature,
		Failed:    out.Meta != nil && out.Meta.Err != nil,
		Slot:      out.Slot,
	}
	for _, key := range tx.Message.AccountKeys {
		detail.AccountKeys = append(detail.AccountKeys, key.String())
	}
	if out.Meta != nil {
		detail.PreBalances = out.Meta.PreBalances
		detail.PostBalances = out.Meta.PostBalances
	}
	if out.BlockTime != nil {
		t := out.BlockTime.Time()
		detail.BlockTime = &t
	}
	return detail, nil
}

// FindSignatureByReference 查询引用了 reference 公钥的最近一笔成功交易
// Solana Pay 的 reference 是一次性公钥，正常情况下只会出现在目标交易里
func (c *RPCChainClient) FindSignatureByReference(ctx context.Context, reference string) (string, error) {
	refKey, err := solana.PublicKeyFromBase58(reference)
	if err != nil {
		return "", fmt.Errorf("reference 公钥格式无效: %w", err)
	}

	sigs, err := c.client.GetSignaturesForAddress(ctx, refKey)
	if err != nil {
		return "", fmt.Errorf("GetSignaturesForAddress RPC 调用失败: %w", err)
	}

	// 返回结果按时间倒序，取最近一笔执行成功的
	for _, info := range sigs {
		if info.Err == nil {
			return info.Signature.String(), nil
		}
	}
	return "", ErrReferenceNotFound
}
