package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/transfer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DownloadHandler struct {
	transferService transfer.Service
}

func NewDownloadHandler(transferService transfer.Service) *DownloadHandler {
	return &DownloadHandler{
		transferService: transferService,
	}
}

// GetMetadata 元数据变体：计入一次下载并返回文件信息
// @Summary 获取分享文件信息
// @Description 按 shareId 查询文件元数据。本接口会消耗一次下载次数，由前端自行取回文件内容
// @Tags 文件
// @Produce json
// @Param shareId path string true "分享ID"
// @Success 200 {object} xerr.Response "文件元数据"
// @Failure 404 {object} xerr.Response "分享不存在"
// @Failure 410 {object} xerr.Response "链接已过期"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/download/{shareId} [get]
func (h *DownloadHandler) GetMetadata(c *gin.Context) {
	shareID := c.Param("shareId")
	if shareID == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	meta, err := h.transferService.GetMetadata(c.Request.Context(), shareID)
	if err != nil {
		h.respondError(c, shareID, err)
		return
	}

	xerr.Success(c, http.StatusOK, "获取文件信息成功", meta)
}

// DirectDownload 字节流变体：计入一次下载并直接回传文件内容
// @Summary 直接下载分享文件
// @Description 按 shareId 以附件形式回传文件字节流，同样消耗一次下载次数
// @Tags 文件
// @Produce octet-stream
// @Param shareId path string true "分享ID"
// @Success 200 {file} binary "文件内容"
// @Failure 404 {object} xerr.Response "分享不存在"
// @Failure 410 {object} xerr.Response "链接已过期"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/direct-download/{shareId} [get]
func (h *DownloadHandler) DirectDownload(c *gin.Context) {
	shareID := c.Param("shareId")
	if shareID == "" {
		xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, xerr.ErrInvalidParams.Error())
		return
	}

	stream, err := h.transferService.OpenStream(c.Request.Context(), shareID)
	if err != nil {
		h.respondError(c, shareID, err)
		return
	}
	defer stream.Reader.Close()

	contentType := stream.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, url.PathEscape(stream.FileName)),
	}
	c.DataFromReader(http.StatusOK, stream.Size, contentType, stream.Reader, extraHeaders)

	// 终次下载：响应体已从内存缓冲发出，此时销毁源文件
	if stream.CleanupAfter != nil {
		stream.CleanupAfter()
	}
}

func (h *DownloadHandler) respondError(c *gin.Context, shareID string, err error) {
	switch {
	case errors.Is(err, xerr.ErrFileNotFound):
		xerr.Error(c, http.StatusNotFound, xerr.FileNotFoundCode, err.Error())
	case errors.Is(err, xerr.ErrLinkExpired):
		// 410 与 404 严格区分：链接曾经存在，现在已销毁
		xerr.Error(c, http.StatusGone, xerr.LinkExpiredCode, err.Error())
	case errors.Is(err, xerr.ErrStorageError):
		xerr.Error(c, http.StatusInternalServerError, xerr.StorageErrorCode, err.Error())
	default:
		logger.Error("下载处理失败", zap.String("shareID", shareID), zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "下载失败")
	}
}
