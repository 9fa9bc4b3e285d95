package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/3Eeeecho/go-dropburn/internal/config"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/logger"
	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/3Eeeecho/go-dropburn/internal/services/transfer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UploadHandler struct {
	transferService transfer.Service
	cfg             *config.Config
}

func NewUploadHandler(transferService transfer.Service, cfg *config.Config) *UploadHandler {
	return &UploadHandler{
		transferService: transferService,
		cfg:             cfg,
	}
}

// Upload handles anonymous file upload.
// @Summary 上传文件
// @Description 上传一个自毁文件，按下载次数或时间过期，返回分享链接
// @Tags 文件
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "文件内容，不超过50MB"
// @Param expiryType formData string true "过期策略: downloads 或 time"
// @Param downloadLimit formData int false "下载次数上限，expiryType=downloads 时必填"
// @Param timeLimit formData int false "有效小时数，expiryType=time 时必填"
// @Success 200 {object} xerr.Response "上传成功，返回 shareId 和 shareUrl"
// @Failure 400 {object} xerr.Response "参数无效"
// @Failure 413 {object} xerr.Response "文件超出大小限制"
// @Failure 500 {object} xerr.Response "服务器内部错误"
// @Router /api/upload [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		xerr.Error(c, http.StatusBadRequest, xerr.MissingFileCode, xerr.ErrMissingFile.Error())
		return
	}

	// 在读流之前先用 multipart 头里的大小挡掉超限文件
	if fileHeader.Size > h.cfg.File.MaxFileSize {
		xerr.Error(c, http.StatusRequestEntityTooLarge, xerr.FileTooLargeCode, xerr.ErrFileTooLarge.Error())
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		logger.Error("打开上传文件失败", zap.Error(err))
		xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "读取上传文件失败")
		return
	}
	defer src.Close()

	input := &transfer.UploadInput{
		FileName:   fileHeader.Filename,
		FileType:   fileHeader.Header.Get("Content-Type"),
		FileSize:   fileHeader.Size,
		Reader:     src,
		ExpiryType: c.PostForm("expiryType"),
	}
	if v := c.PostForm("downloadLimit"); v != "" {
		if limit, convErr := strconv.Atoi(v); convErr == nil {
			input.DownloadLimit = &limit
		}
	}
	if v := c.PostForm("timeLimit"); v != "" {
		if limit, convErr := strconv.Atoi(v); convErr == nil {
			input.TimeLimit = &limit
		}
	}

	result, err := h.transferService.Upload(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, xerr.ErrFileTooLarge):
			xerr.Error(c, http.StatusRequestEntityTooLarge, xerr.FileTooLargeCode, err.Error())
		case errors.Is(err, xerr.ErrMissingFile):
			xerr.Error(c, http.StatusBadRequest, xerr.MissingFileCode, err.Error())
		case errors.Is(err, xerr.ErrInvalidExpiryType):
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidExpiryTypeCode, err.Error())
		case errors.Is(err, xerr.ErrInvalidParams):
			xerr.Error(c, http.StatusBadRequest, xerr.InvalidParamsCode, err.Error())
		default:
			logger.Error("Upload: 上传失败", zap.Error(err))
			xerr.Error(c, http.StatusInternalServerError, xerr.InternalServerErrorCode, "上传失败")
		}
		return
	}

	xerr.Success(c, http.StatusOK, "上传成功", result)
}
