package handlers

import (
	"net/http"
	"time"

	"github.com/3Eeeecho/go-dropburn/internal/pkg/xerr"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check 健康检查
// @Summary 健康检查
// @Description 返回服务与数据库的连通状态
// @Tags 系统
// @Produce json
// @Success 200 {object} xerr.Response "服务正常"
// @Failure 503 {object} xerr.Response "数据库不可达"
// @Router /api/health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	dbStatus := "ok"
	httpStatus := http.StatusOK

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		dbStatus = "unreachable"
		httpStatus = http.StatusServiceUnavailable
	}

	payload := gin.H{
		"status":    dbStatus,
		"database":  dbStatus,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if httpStatus == http.StatusOK {
		xerr.Success(c, httpStatus, "服务正常", payload)
	} else {
		xerr.Error(c, httpStatus, xerr.DatabaseErrorCode, "数据库不可达")
	}
}
