package v1

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Sarahmoonshot/nrw-report/internal/exporter"
)

// downloadTTL 导出文件下载链接有效期
const downloadTTL = 10 * time.Minute

type exportRequest struct {
	Year   int    `json:"year"`
	Device string `json:"device"`
}

// Export 导出年度 NRW 工作簿，返回一次性下载令牌
// POST /api/export
func (h *Handler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误"})
		return
	}
	if req.Year < 2000 || req.Year > 2999 || req.Device == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "非法的 year 或 device"})
		return
	}

	rep, err := h.assembler.Yearly(req.Year, req.Device)
	if err != nil {
		renderReportError(c, err, req.Device, fmt.Sprintf("%d", req.Year))
		return
	}
	roundYearlyInPlace(rep)

	file, err := exporter.BuildYearly(rep)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成工作簿失败: " + err.Error()})
		return
	}
	defer file.Close()

	outPath := filepath.Join(h.exportDir, fmt.Sprintf("nrw-%d-%s.xlsx", req.Year, uuid.New().String()[:8]))
	if err := file.SaveAs(outPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存工作簿失败: " + err.Error()})
		return
	}

	token := h.downloads.put(outPath, req.Year, req.Device, downloadTTL)
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"filename": fmt.Sprintf("NRW年报-%d-%s.xlsx", req.Year, rep.Name),
	})
}

// DownloadExport 按令牌下载导出文件
// GET /api/export/download/:token
func (h *Handler) DownloadExport(c *gin.Context) {
	token := c.Param("token")
	item, ok := h.downloads.get(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "下载链接不存在或已过期"})
		return
	}

	filename := fmt.Sprintf("NRW年报-%d.xlsx", item.year)
	c.FileAttachment(item.filePath, filename)
}
