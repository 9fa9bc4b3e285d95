package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/models"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/solanarpc"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	recipientWallet = "RecipientWallet1111111111111111111111111111"
	senderWallet    = "SenderWallet2222222222222222222222222222222"
	premiumPrice    = uint64(10_000_000)
)

type testEnv struct {
	db      *gorm.DB
	chain   *solanarpc.MockChainClient
	svc     *paymentService
	premium repositories.PremiumUserRepository
	logs    repositories.TransactionLogRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PremiumUser{}, &models.TransactionLog{}))

	cfg := &config.Config{
		Solana: config.SolanaConfig{
			RecipientWallet:      recipientWallet,
			PremiumPriceLamports: premiumPrice,
			PremiumDurationDays:  30,
		},
	}
	chain := solanarpc.NewMockChainClient()
	premiumRepo := repositories.NewPremiumUserRepository(db)
	logRepo := repositories.NewTransactionLogRepository(db)

	svc := NewService(chain, premiumRepo, logRepo, cfg).(*paymentService)
	return &testEnv{db: db, chain: chain, svc: svc, premium: premiumRepo, logs: logRepo}
}

// addTransfer 预置一笔 sender -> recipient 的转账交易
func (e *testEnv) addTransfer(signature string, amount uint64, failed bool) {
	e.chain.AddTransaction(&solanarpc.TransactionDetail{
		Signature:    signature,
		AccountKeys:  []string{senderWallet, recipientWallet},
		PreBalances:  []uint64{1_000_000_000, 500_000_000},
		PostBalances: []uint64{1_000_000_000 - amount, 500_000_000 + amount},
		Failed:       failed,
	})
}

func TestVerifyPaymentAcceptsWithinTolerance(t *testing.T) {
	env := newTestEnv(t)
	// 85% 的标价，手续费偏差在容忍范围内
	env.addTransfer("sig-85", premiumPrice*85/100, false)

	result, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Signature: "sig-85",
		Recipient: recipientWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, senderWallet, result.WalletAddress)
	assert.Equal(t, premiumPrice*85/100, result.Amount)
	assert.False(t, result.AlreadyProcessed)
	assert.False(t, result.LocalOnly)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 30), result.ExpiresAt, time.Minute)

	// premium 记录与确认流水都已落库
	user, err := env.premium.FindActiveByWallet(senderWallet, time.Now())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "sig-85", user.TransactionSignature)

	logEntry, err := env.logs.FindBySignature("sig-85")
	require.NoError(t, err)
	require.NotNil(t, logEntry)
	assert.Equal(t, models.TxStatusConfirmed, logEntry.Status)
	require.NotNil(t, logEntry.Metadata)
	assert.Contains(t, *logEntry.Metadata, "premium_upgrade")
}

func TestVerifyPaymentRejectsBelowTolerance(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-75", premiumPrice*75/100, false)

	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{Signature: "sig-75"})
	assert.ErrorIs(t, err, xerr.ErrAmountTooLow)

	user, uerr := env.premium.FindByWallet(senderWallet)
	require.NoError(t, uerr)
	assert.Nil(t, user)
}

func TestVerifyPaymentRecipientMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-ok", premiumPrice, false)

	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Signature: "sig-ok",
		Recipient: "SomeOtherWallet3333333333333333333333333333",
	})
	assert.ErrorIs(t, err, xerr.ErrInvalidRecipient)
}

func TestVerifyPaymentTxNotOnChain(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{Signature: "missing"})
	assert.ErrorIs(t, err, xerr.ErrTxNotFound)
}

func TestVerifyPaymentMissingArguments(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{})
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestDuplicateSignatureIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-dup", premiumPrice, false)
	ctx := context.Background()

	first, err := env.svc.VerifyPayment(ctx, &VerifyInput{Signature: "sig-dup"})
	require.NoError(t, err)

	second, err := env.svc.VerifyPayment(ctx, &VerifyInput{Signature: "sig-dup"})
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	// 重复提交不会续期，返回首次激活的到期时间
	assert.Equal(t, first.ExpiresAt.Unix(), second.ExpiresAt.Unix())
}

func TestLogWithoutPremiumIsInconsistent(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-orphan", premiumPrice, false)

	// 有确认流水却没有 premium 记录，需要人工介入
	require.NoError(t, env.logs.Create(&models.TransactionLog{
		Signature: "sig-orphan", WalletAddress: senderWallet,
		Amount: premiumPrice, Status: models.TxStatusConfirmed, Timestamp: time.Now(),
	}))

	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{Signature: "sig-orphan"})
	assert.ErrorIs(t, err, xerr.ErrTxInconsistent)
}

func TestLenientFallbackForUndecodableTransfer(t *testing.T) {
	env := newTestEnv(t)
	// 余额里解不出转账（收款方余额没涨），但交易上链且执行成功
	env.chain.AddTransaction(&solanarpc.TransactionDetail{
		Signature:    "sig-weird",
		AccountKeys:  []string{senderWallet, recipientWallet},
		PreBalances:  []uint64{1_000_000_000, 500_000_000},
		PostBalances: []uint64{1_000_000_000, 500_000_000},
		Failed:       false,
	})

	result, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Signature: "sig-weird",
		Sender:    senderWallet,
	})
	require.NoError(t, err)
	// 宽松入账按标价计
	assert.Equal(t, premiumPrice, result.Amount)
	assert.Equal(t, senderWallet, result.WalletAddress)
}

func TestFailedTransactionRejected(t *testing.T) {
	env := newTestEnv(t)
	env.chain.AddTransaction(&solanarpc.TransactionDetail{
		Signature:    "sig-failed",
		AccountKeys:  []string{senderWallet, recipientWallet},
		PreBalances:  []uint64{1_000_000_000, 500_000_000},
		PostBalances: []uint64{1_000_000_000, 500_000_000},
		Failed:       true,
	})

	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{Signature: "sig-failed"})
	assert.Error(t, err)

	user, uerr := env.premium.FindByWallet(senderWallet)
	require.NoError(t, uerr)
	assert.Nil(t, user)
}

func TestSolanaPayReferenceFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-pay", premiumPrice, false)
	env.chain.AddReference("ref-123", "sig-pay")

	result, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Reference: "ref-123",
		Method:    MethodSolanaPay,
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-pay", result.Signature)
	assert.Equal(t, MethodSolanaPay, result.Method)
}

func TestSolanaPayReferenceFallsBackToSignature(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-direct", premiumPrice, false)

	// reference 查不到，但调用方带了签名
	result, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Signature: "sig-direct",
		Reference: "ref-unknown",
		Method:    MethodSolanaPay,
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-direct", result.Signature)
}

func TestSolanaPayFailedTxValidation(t *testing.T) {
	env := newTestEnv(t)
	env.chain.AddTransaction(&solanarpc.TransactionDetail{
		Signature:    "sig-pay-fail",
		AccountKeys:  []string{senderWallet, recipientWallet},
		PreBalances:  []uint64{1_000_000_000, 500_000_000},
		PostBalances: []uint64{1_000_000_000, 500_000_000},
		Failed:       true,
	})
	env.chain.AddReference("ref-fail", "sig-pay-fail")

	_, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{
		Reference: "ref-fail",
		Method:    MethodSolanaPay,
	})
	assert.ErrorIs(t, err, xerr.ErrTxValidationFailed)
}

func TestEmergencyActivateIsStrict(t *testing.T) {
	env := newTestEnv(t)
	// 救援通道不做宽松后备，解不出转账就拒绝
	env.chain.AddTransaction(&solanarpc.TransactionDetail{
		Signature:    "sig-rescue-bad",
		AccountKeys:  []string{senderWallet, recipientWallet},
		PreBalances:  []uint64{1_000_000_000, 500_000_000},
		PostBalances: []uint64{1_000_000_000, 500_000_000},
		Failed:       false,
	})
	_, err := env.svc.EmergencyActivate(context.Background(), "sig-rescue-bad")
	assert.ErrorIs(t, err, xerr.ErrNoPayment)

	env.addTransfer("sig-rescue-ok", premiumPrice, false)
	result, err := env.svc.EmergencyActivate(context.Background(), "sig-rescue-ok")
	require.NoError(t, err)
	assert.Equal(t, MethodManual, result.Method)
}

func TestLocalOnlyWhenPersistenceFails(t *testing.T) {
	env := newTestEnv(t)
	env.addTransfer("sig-localonly", premiumPrice, false)

	// 模拟数据库在确认付款之后坏掉
	require.NoError(t, env.db.Migrator().DropTable(&models.PremiumUser{}))

	result, err := env.svc.VerifyPayment(context.Background(), &VerifyInput{Signature: "sig-localonly"})
	require.NoError(t, err)
	// 付款不可撤销：持久化失败仍算成功，由客户端本地缓存兜底
	assert.True(t, result.LocalOnly)
}

func TestLogPendingGeneratesPlaceholder(t *testing.T) {
	env := newTestEnv(t)

	signature, err := env.svc.LogPending(context.Background(), senderWallet, premiumPrice, models.TxStatusPending, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signature, "pending_"))

	logEntry, err := env.logs.FindBySignature(signature)
	require.NoError(t, err)
	require.NotNil(t, logEntry)
	assert.Equal(t, models.TxStatusPending, logEntry.Status)

	_, err = env.svc.LogPending(context.Background(), "", premiumPrice, models.TxStatusPending, nil)
	assert.ErrorIs(t, err, xerr.ErrInvalidParams)
}

func TestUpdateLogStatus(t *testing.T) {
	env := newTestEnv(t)
	signature, err := env.svc.LogPending(context.Background(), senderWallet, premiumPrice, models.TxStatusPending, nil)
	require.NoError(t, err)

	errMsg := "user rejected"
	require.NoError(t, env.svc.UpdateLog(context.Background(), signature, models.TxStatusFailed, &errMsg))

	logEntry, err := env.logs.FindBySignature(signature)
	require.NoError(t, err)
	require.NotNil(t, logEntry)
	assert.Equal(t, models.TxStatusFailed, logEntry.Status)
	require.NotNil(t, logEntry.Metadata)
	assert.Contains(t, *logEntry.Metadata, "user rejected")

	err = env.svc.UpdateLog(context.Background(), "no-such-signature", models.TxStatusConfirmed, nil)
	assert.ErrorIs(t, err, xerr.ErrTxNotFound)
}
