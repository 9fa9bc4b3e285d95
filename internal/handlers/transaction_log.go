package handlers

import (
	"errors"
	"net/http"

	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TransactionLogHandler struct {
	paymentService payment.Service
}

func NewTransactionLogHandler(paymentService payment.Service) *TransactionLogHandler {
	return &TransactionLogHandler{
		paymentService: paymentService,
	}
}

// CreateLogRequest 创建占位流水请求体
type CreateLogRequest struct {
	WalletAddress string  `json:"walletAddress" binding:"required"`
	Amount        uint64  `json:"amount" binding:"required"`
	Status        string  `json:"status" binding:"required"`
	Metadata      *string `json:"metadata"`
}

// UpdateLogRequest 更新流水状态请求体
type UpdateLogRequest struct {
	Signature string  `json:"signature" binding:"required"`
	Status    string  `json:"status" binding:"required"`
	Error     *string `json:"error"`
}

// Create 客户端发起支付前写入占位流水
// @Summary 记录待确认交易
// @Description 支付发起前写入一条占位流水，返回生成的占位签名，真实签名由验证引擎确认后写入
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body CreateLogRequest true "流水内容"
// @Success 200 {object} xerr.Response "占位签名"
// @Failure 400 {object} xerr.Response "参数无效"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/transaction-log [post]
func (h *TransactionLogHandler) Create(c *gin.Context) {
	var req CreateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	signature, err := h.paymentService.LogPending(c.Request.Context(), req.WalletAddress, req.Amount, req.Status, req.Metadata)
	if err != nil {
		if errors.Is(err, xerr.ErrInvalidParams) {
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
			return
		}
		logger.Error("写入占位流水失败", zap.String("wallet", req.WalletAddress), zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "写入交易流水失败")
		return
	}

	xerr.Success(c, http.StatusOK, "交易流水已记录", gin.H{
		"signature": signature,
	})
}

// Update 按签名更新流水状态
// @Summary 更新交易流水状态
// @Description 按签名把流水更新为 confirmed / failed，失败时可附带错误信息
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body UpdateLogRequest true "更新内容"
// @Success 200 {object} xerr.Response "更新成功"
// @Failure 400 {object} xerr.Response "参数无效"
// @Failure 404 {object} xerr.Response "流水不存在"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/transaction-log [put]
func (h *TransactionLogHandler) Update(c *gin.Context) {
	var req UpdateLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	if err := h.paymentService.UpdateLog(c.Request.Context(), req.Signature, req.Status, req.Error); err != nil {
		switch {
		case errors.Is(err, xerr.ErrInvalidParams):
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		case errors.Is(err, xerr.ErrTxNotFound):
			xerr.Error(c, http.StatusNotFound, xerr.TxNotFoundCode, err.Error())
		default:
			logger.Error("更新交易流水失败", zap.String("signature", req.Signature), zap.Error(err))
			xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "更新交易流水失败")
		}
		return
	}

	xerr.Success(c, http.StatusOK, "交易流水已更新", nil)
}
