package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/utils"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/payment"
	"github.com/3Eeeecho/go-dropburn/internal/services/premium"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// premiumCookieName premium 权益 cookie 的名字，JWT 由服务端签发
const premiumCookieName = "premium_token"

type PaymentHandler struct {
	paymentService payment.Service
	premiumService premium.Service
	cfg            *config.Config
}

func NewPaymentHandler(paymentService payment.Service, premiumService premium.Service, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		premiumService: premiumService,
		cfg:            cfg,
	}
}

// VerifyPaymentRequest 支付验证请求体
type VerifyPaymentRequest struct {
	Signature     string `json:"signature"`
	Sender        string `json:"sender"`
	Recipient     string `json:"recipient"`
	Reference     string `json:"reference"`
	PaymentMethod string `json:"paymentMethod"`
}

// EmergencyActivateRequest 救援激活请求体
type EmergencyActivateRequest struct {
	Signature string `json:"signature" binding:"required"`
}

// VerifyPayment 验证链上付款并激活 premium
// @Summary 验证 Solana 付款
// @Description 校验交易签名（或 Solana Pay reference）并激活 30 天 premium 权益，成功时签发 premium_token cookie
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body VerifyPaymentRequest true "支付凭据"
// @Success 200 {object} xerr.Response "激活成功"
// @Failure 400 {object} xerr.Response "交易校验未通过"
// @Failure 404 {object} xerr.Response "链上交易不存在"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/verify-payment [post]
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	input := &payment.VerifyInput{
		Signature: req.Signature,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Reference: req.Reference,
		Method:    req.PaymentMethod,
	}
	result, err := h.paymentService.VerifyPayment(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.finishActivation(c, result)
}

// EmergencyActivate 手工救援入口，只凭签名严格校验
// @Summary 紧急激活 premium
// @Description 自动验证失败时的救援通道：只凭交易签名做严格校验后激活权益
// @Tags 支付
// @Accept json
// @Produce json
// @Param request body EmergencyActivateRequest true "交易签名"
// @Success 200 {object} xerr.Response "激活成功"
// @Failure 400 {object} xerr.Response "交易校验未通过"
// @Failure 404 {object} xerr.Response "链上交易不存在"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/emergency-activate [post]
func (h *PaymentHandler) EmergencyActivate(c *gin.Context) {
	var req EmergencyActivateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	result, err := h.paymentService.EmergencyActivate(c.Request.Context(), req.Signature)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.finishActivation(c, result)
}

// finishActivation 激活成功后的收尾：签发 cookie、刷新镜像、拼装响应
func (h *PaymentHandler) finishActivation(c *gin.Context, result *payment.ActivationResult) {
	// LocalOnly: 服务端持久化失败，不签 cookie，由客户端本地缓存兜底
	if !result.LocalOnly {
		h.issuePremiumCookie(c, result.WalletAddress, result.ExpiresAt)
		h.premiumService.WriteMirror(c.Request.Context(), result.WalletAddress, result.ExpiresAt)
	}

	message := "premium 激活成功"
	if result.AlreadyProcessed {
		message = "交易已处理，返回原有权益"
	}
	xerr.Success(c, http.StatusOK, message, gin.H{
		"premium": gin.H{
			"isPremium": true,
			"expiresAt": result.ExpiresAt,
			"localOnly": result.LocalOnly,
		},
		"transaction": gin.H{
			"signature": result.Signature,
			"wallet":    result.WalletAddress,
			"amount":    result.Amount,
			"method":    result.Method,
		},
	})
}

// issuePremiumCookie 签发 premium JWT cookie，JWT 的 exp 与权益到期时刻一致
func (h *PaymentHandler) issuePremiumCookie(c *gin.Context, walletAddress string, expiresAt time.Time) {
	token, err := utils.GeneratePremiumToken(walletAddress, expiresAt, h.cfg.JWT.SecretKey, h.cfg.JWT.Issuer)
	if err != nil {
		// cookie 只是便利层，签发失败不影响激活结果
		logger.Error("签发 premium token 失败", zap.String("wallet", walletAddress), zap.Error(err))
		return
	}

	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(premiumCookieName, token, maxAge, "/", "", h.cfg.Server.SecureCookie, true)
}

func (h *PaymentHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, xerr.ErrInvalidParams):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
	case errors.Is(err, xerr.ErrTxNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.TxNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrInvalidRecipient):
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidRecipientCode, err.Error())
	case errors.Is(err, xerr.ErrNoPayment):
		xerr.Error(c, http.StatusBadRequest, xerr.NoPaymentCode, err.Error())
	case errors.Is(err, xerr.ErrAmountTooLow):
		xerr.Error(c, http.StatusBadRequest, xerr.AmountTooLowCode, err.Error())
	case errors.Is(err, xerr.ErrTxValidationFailed):
		xerr.Error(c, http.StatusBadRequest, xerr.TxValidationFailedCode, err.Error())
	case errors.Is(err, xerr.ErrTxInconsistent):
		xerr.Error(c, http.StatusConflict, xerr.TxInconsistentCode, err.Error())
	case errors.Is(err, xerr.ErrChainRPC):
		xerr.Error(c, http.StatusBadGateway, xerr.ChainRPCErrorCode, err.Error())
	default:
		logger.Error("支付验证失败", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "支付验证失败")
	}
}
