package xerr

// 定义了统一的业务错误码
const (
	SuccessCode = 20000 // 通用成功码

	// --- 客户端请求错误系列 (400xx) ---
	InvalidParamsCode      = 40000 // 无效的请求参数
	MissingFileCode        = 40001 // 未携带上传文件
	FileTooLargeCode       = 40002 // 文件超出 50MiB 限制
	InvalidExpiryTypeCode  = 40003 // 过期策略类型无效
	InvalidRecipientCode   = 40004 // 交易收款方不是本站钱包
	NoPaymentCode          = 40005 // 交易中未检测到转账
	AmountTooLowCode       = 40006 // 转账金额低于容忍下限
	TxValidationFailedCode = 40007 // Solana Pay 校验失败
	TxInconsistentCode     = 40008 // 交易已记录但未找到对应的 premium 记录

	// --- 资源未找到错误系列 (404xx) ---
	NotFoundCode     = 40400 // 通用资源未找到
	FileNotFoundCode = 40401 // 分享文件不存在
	TxNotFoundCode   = 40402 // 链上交易不存在或尚未确认

	// --- 资源已销毁系列 (410xx)，与 404 严格区分 ---
	LinkExpiredCode = 41000 // 分享链接已过期（时间或下载次数耗尽）

	// --- 服务器内部错误系列 (500xx) ---
	InternalServerErrorCode = 50000 // 服务器内部通用错误
	DatabaseErrorCode       = 50001 // 数据库操作失败
	StorageErrorCode        = 50002 // 存储服务操作失败（如MinIO）
	ChainRPCErrorCode       = 50003 // Solana RPC 调用失败
)
