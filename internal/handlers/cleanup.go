package handlers

import (
	"fmt"
	"net/http"

	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/expiry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CleanupHandler struct {
	expiryService expiry.Service
}

func NewCleanupHandler(expiryService expiry.Service) *CleanupHandler {
	return &CleanupHandler{
		expiryService: expiryService,
	}
}

// SweepFiles 批量清理所有已过期的文件
// @Summary 清理过期文件
// @Description 扫描并删除所有已过期的分享文件（对象存储 + 数据库记录），供定时任务调用
// @Tags 清理
// @Produce json
// @Success 200 {object} xerr.Response "清理结果汇总"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/cleanup [get]
func (h *CleanupHandler) SweepFiles(c *gin.Context) {
	result, err := h.expiryService.SweepFiles(c.Request.Context())
	if err != nil {
		logger.Error("SweepFiles: 清理过期文件失败", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "清理过期文件失败")
		return
	}

	message := fmt.Sprintf("已清理 %d 个过期文件", result.DeletedCount)
	xerr.Success(c, http.StatusOK, message, result)
}

// SweepPremium 停用到期的 premium 订阅
// @Summary 检查 premium 到期
// @Description 把所有已到期的 premium 记录翻成 inactive，供 cron 调用
// @Tags 清理
// @Produce json
// @Success 200 {object} xerr.Response "停用数量"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/cron/check-premium-expiry [get]
func (h *CleanupHandler) SweepPremium(c *gin.Context) {
	count, err := h.expiryService.SweepPremium(c.Request.Context())
	if err != nil {
		logger.Error("SweepPremium: 检查 premium 到期失败", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.DatabaseErrorCode, "检查 premium 到期失败")
		return
	}

	xerr.Success(c, http.StatusOK, "premium 到期检查完成", gin.H{
		"deactivated_count": count,
	})
}
