package xerr

import "errors"

var (
	// 通用错误
	ErrInternalServer = errors.New("服务器内部错误")

	// 客户端请求错误
	ErrInvalidParams     = errors.New("无效的请求参数")
	ErrMissingFile       = errors.New("请求中没有携带文件")
	ErrFileTooLarge      = errors.New("文件大小超出 50MB 限制")
	ErrInvalidExpiryType = errors.New("过期策略必须是 downloads 或 time")

	// 分享链接
	ErrFileNotFound = errors.New("文件不存在")
	ErrLinkExpired  = errors.New("分享链接已过期")

	// 支付验证
	ErrTxNotFound         = errors.New("链上交易不存在，请确认签名后重试")
	ErrInvalidRecipient   = errors.New("该交易的收款方不是本站收款钱包")
	ErrNoPayment          = errors.New("交易中未检测到向收款钱包的转账")
	ErrAmountTooLow       = errors.New("转账金额低于所需金额")
	ErrTxValidationFailed = errors.New("交易校验失败")
	ErrTxInconsistent     = errors.New("交易已处理过，但未找到对应的 premium 记录")

	// 数据库与外部服务错误
	ErrDatabaseError = errors.New("数据库操作失败")
	ErrStorageError  = errors.New("存储服务操作失败")
	ErrChainRPC      = errors.New("Solana RPC 调用失败")
)
