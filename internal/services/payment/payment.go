package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/solanarpc"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 支付方式标签，写入交易日志的 metadata
const (
	MethodPhantom   = "phantom"
	MethodSolanaPay = "solana-pay"
	MethodManual    = "manual_verification"
)

// amountToleranceRatio 金额容忍下限：实到金额不低于标价的 80% 即接受，
// 吸收手续费与取整造成的偏差
const amountToleranceRatio = 0.8

// VerifyInput 支付验证请求
type VerifyInput struct {
	Signature string // 交易签名，Solana Pay 流程中可作为 reference 解析失败的后备
	Sender    string // 可选：调用方声明的付款钱包，链上无法识别付款人时的提示
	Recipient string // 调用方声明的收款方，必须等于配置的收款钱包
	Reference string // Solana Pay 的一次性 reference 公钥
	Method    string // solana-pay 或留空（Phantom 直连）
}

// ActivationResult 验证并激活成功的结果
type ActivationResult struct {
	Signature     string
	WalletAddress string
	Amount        uint64
	ExpiresAt     time.Time
	Method        string
	// AlreadyProcessed 同一签名重复提交时为 true，返回首次激活的 ExpiresAt
	AlreadyProcessed bool
	// LocalOnly 付款已确认但服务端持久化失败。付款不可撤销，所以仍然算成功，
	// 由客户端把权益写进本地缓存兜底
	LocalOnly bool
}

// Service 支付验证引擎：把一笔链上付款转换为限时 premium 权益，每个签名只入账一次
type Service interface {
	// VerifyPayment 标准验证入口，按 Method 分流 Phantom / Solana Pay
	VerifyPayment(ctx context.Context, input *VerifyInput) (*ActivationResult, error)
	// EmergencyActivate 手工救援入口：只凭签名走严格校验
	EmergencyActivate(ctx context.Context, signature string) (*ActivationResult, error)
	// LogPending 客户端发起支付前写入的占位流水，返回生成的占位签名
	LogPending(ctx context.Context, walletAddress string, amount uint64, status string, metadata *string) (string, error)
	// UpdateLog 按签名更新流水状态
	UpdateLog(ctx context.Context, signature, status string, errMsg *string) error
}

type paymentService struct {
	chain       solanarpc.ChainClient
	premiumRepo repositories.PremiumUserRepository
	logRepo     repositories.TransactionLogRepository
	cfg         *config.Config
	now         func() time.Time
}

// NewService 创建支付验证引擎实例
func NewService(chain solanarpc.ChainClient, premiumRepo repositories.PremiumUserRepository, logRepo repositories.TransactionLogRepository, cfg *config.Config) Service {
	return &paymentService{
		chain:       chain,
		premiumRepo: premiumRepo,
		logRepo:     logRepo,
		cfg:         cfg,
		now:         time.Now,
	}
}

// transfer 从交易余额变化里解码出的转账事实
type transfer struct {
	amount uint64 // 收款方实收 lamports
	sender string
}

// decodeTransfer 从交易的 pre/post 余额推导向收款钱包的转账
// 返回的错误只会是 ErrInvalidRecipient / ErrNoPayment / ErrAmountTooLow 之一
func (s *paymentService) decodeTransfer(tx *solanarpc.TransactionDetail, senderHint string) (*transfer, error) {
	recipient := s.cfg.Solana.RecipientWallet

	recipientIndex := -1
	for i, key := range tx.AccountKeys {
		if key == recipient {
			recipientIndex = i
			break
		}
	}
	if recipientIndex == -1 || recipientIndex >= len(tx.PreBalances) || recipientIndex >= len(tx.PostBalances) {
		return nil, xerr.ErrInvalidRecipient
	}

	pre := tx.PreBalances[recipientIndex]
	post := tx.PostBalances[recipientIndex]
	if post <= pre {
		return nil, xerr.ErrNoPayment
	}
	amount := post - pre

	minimum := uint64(float64(s.cfg.Solana.PremiumPriceLamports) * amountToleranceRatio)
	if amount < minimum {
		logger.Warn("转账金额低于容忍下限",
			zap.Uint64("amount", amount),
			zap.Uint64("expected", s.cfg.Solana.PremiumPriceLamports),
			zap.Uint64("minimum", minimum))
		return nil, xerr.ErrAmountTooLow
	}

	// 付款人识别：第一个余额减少的账户 → 调用方提示 → 交易的第一个账户
	sender := ""
	for i, key := range tx.AccountKeys {
		if i == recipientIndex || i >= len(tx.PreBalances) || i >= len(tx.PostBalances) {
			continue
		}
		if tx.PreBalances[i] > tx.PostBalances[i] {
			sender = key
			break
		}
	}
	if sender == "" && senderHint != "" {
		sender = senderHint
	}
	if sender == "" && len(tx.AccountKeys) > 0 {
		sender = tx.AccountKeys[0]
	}

	return &transfer{amount: amount, sender: sender}, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, input *VerifyInput) (*ActivationResult, error) {
	if input.Signature == "" && input.Reference == "" {
		return nil, xerr.ErrInvalidParams
	}
	if input.Recipient != "" && input.Recipient != s.cfg.Solana.RecipientWallet {
		return nil, xerr.ErrInvalidRecipient
	}

	if input.Method == MethodSolanaPay && input.Reference != "" {
		return s.verifySolanaPay(ctx, input)
	}
	return s.verifyStandard(ctx, input)
}

// verifyStandard Phantom 钱包直连流程：按签名取交易并解码转账
func (s *paymentService) verifyStandard(ctx context.Context, input *VerifyInput) (*ActivationResult, error) {
	tx, err := s.fetchTransaction(ctx, input.Signature)
	if err != nil {
		return nil, err
	}

	tr, decodeErr := s.decodeTransfer(tx, input.Sender)
	if decodeErr != nil {
		// 金额明确偏低就直接拒绝，让用户能自行补足
		if errors.Is(decodeErr, xerr.ErrAmountTooLow) {
			return nil, decodeErr
		}
		// 宽松后备：余额里解不出转账，但交易确实上链且执行成功。
		// 上游钱包产出的交易布局五花八门，这里按标价入账，弱化金额精确性换可用性
		if !tx.Failed {
			logger.Warn("未解码出转账，但交易上链成功，按宽松策略接受",
				zap.String("signature", tx.Signature),
				zap.String("stage", "lenient"),
				zap.Error(decodeErr))
			sender := input.Sender
			if sender == "" && len(tx.AccountKeys) > 0 {
				sender = tx.AccountKeys[0]
			}
			tr = &transfer{amount: s.cfg.Solana.PremiumPriceLamports, sender: sender}
		} else {
			return nil, decodeErr
		}
	} else {
		logger.Info("转账验证通过",
			zap.String("signature", tx.Signature),
			zap.String("stage", "strict"),
			zap.Uint64("amount", tr.amount))
	}

	return s.settle(ctx, tx.Signature, tr, MethodPhantom)
}

// verifySolanaPay Solana Pay 流程：先把 reference 解析为签名，再走两段式校验
func (s *paymentService) verifySolanaPay(ctx context.Context, input *VerifyInput) (*ActivationResult, error) {
	signature, err := s.chain.FindSignatureByReference(ctx, input.Reference)
	if err != nil {
		// reference 查不到时退回调用方直接给的签名
		if input.Signature == "" {
			if errors.Is(err, solanarpc.ErrReferenceNotFound) {
				return nil, xerr.ErrTxNotFound
			}
			return nil, xerr.NewCodeError(xerr.ChainRPCErrorCode, err)
		}
		logger.Warn("按 reference 查找交易失败，改用调用方提供的签名",
			zap.String("reference", input.Reference),
			zap.String("signature", input.Signature),
			zap.Error(err))
		signature = input.Signature
	}

	tx, err := s.fetchTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}

	// 第一段：严格校验（收款方 + 金额）
	tr, decodeErr := s.decodeTransfer(tx, input.Sender)
	if decodeErr != nil {
		// 第二段：校验失败但交易上链且没有错误码，视为已确认。
		// 这是刻意的宽松取舍，容忍上游校验库的误报，代价是金额保证变弱。
		// 两段产出相同的结果类型，调用方分不出保证强弱，差异只体现在日志里
		if tx.Failed {
			return nil, xerr.ErrTxValidationFailed
		}
		logger.Warn("Solana Pay 严格校验失败，交易上链成功，按宽松策略接受",
			zap.String("signature", signature),
			zap.String("stage", "lenient"),
			zap.Error(decodeErr))
		sender := input.Sender
		if sender == "" && len(tx.AccountKeys) > 0 {
			sender = tx.AccountKeys[0]
		}
		tr = &transfer{amount: s.cfg.Solana.PremiumPriceLamports, sender: sender}
	} else {
		logger.Info("Solana Pay 严格校验通过",
			zap.String("signature", signature),
			zap.String("stage", "strict"))
	}

	return s.settle(ctx, signature, tr, MethodSolanaPay)
}

func (s *paymentService) EmergencyActivate(ctx context.Context, signature string) (*ActivationResult, error) {
	if signature == "" {
		return nil, xerr.ErrInvalidParams
	}

	tx, err := s.fetchTransaction(ctx, signature)
	if err != nil {
		return nil, err
	}

	// 救援入口不走宽松后备，收款方、金额都必须严格对上
	tr, err := s.decodeTransfer(tx, "")
	if err != nil {
		return nil, err
	}

	return s.settle(ctx, signature, tr, MethodManual)
}

func (s *paymentService) fetchTransaction(ctx context.Context, signature string) (*solanarpc.TransactionDetail, error) {
	tx, err := s.chain.GetTransaction(ctx, signature)
	if err != nil {
		if errors.Is(err, solanarpc.ErrTxNotOnChain) {
			return nil, xerr.ErrTxNotFound
		}
		logger.Error("Solana RPC 调用失败", zap.String("signature", signature), zap.Error(err))
		return nil, xerr.NewCodeError(xerr.ChainRPCErrorCode, xerr.ErrChainRPC)
	}
	return tx, nil
}

// settle 入账：幂等检查 → upsert premium → 写确认流水
// 步骤 1-5 失败时调用方不会走到这里；到这里之后付款已经确认且不可撤销，
// 持久化失败不再算失败，降级为 LocalOnly 成功
func (s *paymentService) settle(ctx context.Context, signature string, tr *transfer, method string) (*ActivationResult, error) {
	existingLog, err := s.logRepo.FindBySignature(signature)
	if err == nil && existingLog != nil {
		existingPremium, perr := s.premiumRepo.FindBySignature(signature)
		if perr == nil && existingPremium != nil {
			logger.Info("交易已处理过，返回原有权益",
				zap.String("signature", signature),
				zap.Time("expiresAt", existingPremium.ExpiresAt))
			return &ActivationResult{
				Signature:        signature,
				WalletAddress:    existingPremium.WalletAddress,
				Amount:           existingPremium.Amount,
				ExpiresAt:        existingPremium.ExpiresAt,
				Method:           method,
				AlreadyProcessed: true,
			}, nil
		}
		// 签名有流水却没有对应权益，状态不一致，需要人工介入
		return nil, xerr.ErrTxInconsistent
	}

	expiresAt := s.now().AddDate(0, 0, s.cfg.Solana.PremiumDurationDays)
	result := &ActivationResult{
		Signature:     signature,
		WalletAddress: tr.sender,
		Amount:        tr.amount,
		ExpiresAt:     expiresAt,
		Method:        method,
	}

	user := &models.PremiumUser{
		WalletAddress:        tr.sender,
		TransactionSignature: signature,
		PurchasedAt:          s.now(),
		ExpiresAt:            expiresAt,
		IsActive:             true,
		Amount:               tr.amount,
	}
	if err := s.premiumRepo.Upsert(user); err != nil {
		logger.Error("付款已确认但写入 premium 记录失败，降级为本地兜底",
			zap.String("signature", signature), zap.Error(err))
		result.LocalOnly = true
		return result, nil
	}

	metadata, _ := json.Marshal(map[string]string{
		"type":      "premium_upgrade",
		"method":    method,
		"duration":  fmt.Sprintf("%d days", s.cfg.Solana.PremiumDurationDays),
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
	metaStr := string(metadata)

	if existingLog == nil {
		logEntry := &models.TransactionLog{
			Signature:     signature,
			WalletAddress: tr.sender,
			Amount:        tr.amount,
			Status:        models.TxStatusConfirmed,
			Timestamp:     s.now(),
			Metadata:      &metaStr,
		}
		if err := s.logRepo.Create(logEntry); err != nil {
			// 权益已经写进去了，流水缺失只记日志
			logger.Error("写入确认流水失败", zap.String("signature", signature), zap.Error(err))
		}
	}

	logger.Info("premium 激活成功",
		zap.String("wallet", tr.sender),
		zap.String("signature", signature),
		zap.String("method", method),
		zap.Time("expiresAt", expiresAt))
	return result, nil
}

func (s *paymentService) LogPending(ctx context.Context, walletAddress string, amount uint64, status string, metadata *string) (string, error) {
	if walletAddress == "" || amount == 0 || status == "" {
		return "", xerr.ErrInvalidParams
	}

	// 占位签名，真实签名由验证引擎确认后另行写入
	placeholder := fmt.Sprintf("pending_%d_%s", s.now().UnixMilli(), uuid.NewString()[:13])
	logEntry := &models.TransactionLog{
		Signature:     placeholder,
		WalletAddress: walletAddress,
		Amount:        amount,
		Status:        status,
		Timestamp:     s.now(),
		Metadata:      metadata,
	}
	if err := s.logRepo.Create(logEntry); err != nil {
		return "", err
	}
	return placeholder, nil
}

func (s *paymentService) UpdateLog(ctx context.Context, signature, status string, errMsg *string) error {
	if signature == "" || status == "" {
		return xerr.ErrInvalidParams
	}

	var metadata *string
	if errMsg != nil {
		data, _ := json.Marshal(map[string]string{"error": *errMsg})
		str := string(data)
		metadata = &str
	}
	if err := s.logRepo.UpdateStatus(signature, status, metadata); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return xerr.ErrTxNotFound
		}
		return err
	}
	return nil
}
