package handlers

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/utils"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/premium"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// walletHeader 未持有 cookie 的客户端用这个请求头声明自己的钱包
const walletHeader = "X-Wallet-Address"

type PremiumHandler struct {
	premiumService premium.Service
	cfg            *config.Config
}

func NewPremiumHandler(premiumService premium.Service, cfg *config.Config) *PremiumHandler {
	return &PremiumHandler{
		premiumService: premiumService,
		cfg:            cfg,
	}
}

// Status 查询 premium 状态
// @Summary 查询 premium 状态
// @Description 优先校验 premium_token cookie；没有或已失效时按 X-Wallet-Address 查库，命中则重新签发 cookie
// @Tags Premium
// @Produce json
// @Param X-Wallet-Address header string false "钱包地址"
// @Success 200 {object} xerr.Response "premium 状态与配额"
// @Router /api/premium/status [get]
func (h *PremiumHandler) Status(c *gin.Context) {
	status := &premium.Status{IsPremium: false}

	if tokenString, err := c.Cookie(premiumCookieName); err == nil && tokenString != "" {
		status = h.premiumService.StatusFromToken(tokenString)
	}

	// cookie 不在或已失效，退回钱包地址查询权威层
	if !status.IsPremium {
		if wallet := c.GetHeader(walletHeader); wallet != "" {
			status = h.premiumService.StatusFromWallet(c.Request.Context(), wallet)
			// 权威层确认有权益，补发 cookie 省掉后续查询
			if status.IsPremium && status.ExpiresAt != nil {
				h.reissueCookie(c, wallet, status)
			}
		}
	}

	quota := h.cfg.File.FreeDailyQuota
	if status.IsPremium {
		quota = h.cfg.File.PremiumDailyQuota
	}

	xerr.Success(c, http.StatusOK, "查询成功", gin.H{
		"isPremium":  status.IsPremium,
		"expiresAt":  status.ExpiresAt,
		"source":     status.Source,
		"dailyQuota": quota,
	})
}

// Clear 清除本端的 premium 凭据
// @Summary 清除 premium 凭据
// @Description 吊销 premium_token cookie，并清掉该钱包的缓存镜像
// @Tags Premium
// @Produce json
// @Param X-Wallet-Address header string false "钱包地址"
// @Success 200 {object} xerr.Response "已清除"
// @Router /api/premium/status [delete]
func (h *PremiumHandler) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(premiumCookieName, "", -1, "/", "", h.cfg.Server.SecureCookie, true)

	if wallet := c.GetHeader(walletHeader); wallet != "" {
		h.premiumService.ClearMirror(c.Request.Context(), wallet)
	}

	xerr.Success(c, http.StatusOK, "premium 凭据已清除", nil)
}

func (h *PremiumHandler) reissueCookie(c *gin.Context, wallet string, status *premium.Status) {
	token, err := utils.GeneratePremiumToken(wallet, *status.ExpiresAt, h.cfg.JWT.SecretKey, h.cfg.JWT.Issuer)
	if err != nil {
		logger.Error("补发 premium token 失败", zap.String("wallet", wallet), zap.Error(err))
		return
	}
	maxAge := int(time.Until(*status.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(premiumCookieName, token, maxAge, "/", "", h.cfg.Server.SecureCookie, true)
}
