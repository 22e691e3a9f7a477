package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/Sarahmoonshot/nrw-report/internal/devices"
	"github.com/Sarahmoonshot/nrw-report/internal/nrw"
	"github.com/Sarahmoonshot/nrw-report/internal/store"
)

// Handler V1 API 处理器
type Handler struct {
	assembler *nrw.Assembler
	matcher   *devices.Matcher
	store     *store.Store
	exportDir string
	downloads *exportDownloadStore
}

// NewHandler 创建 V1 API 处理器
func NewHandler(assembler *nrw.Assembler, matcher *devices.Matcher, st *store.Store, exportDir string) *Handler {
	return &Handler{
		assembler: assembler,
		matcher:   matcher,
		store:     st,
		exportDir: exportDir,
		downloads: newExportDownloadStore(),
	}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)
	// 设备映射表
	router.GET("/devices", h.ListDevices)

	// NRW 报表
	router.GET("/nrw/monthly", h.GetMonthlyNRW)
	router.GET("/nrw/daily", h.GetDailyNRW)
	router.GET("/nrw/hourly", h.GetHourlyNRW)
	router.GET("/nrw/yearly", h.GetYearlyNRW)

	// 月度快照
	router.GET("/snapshots", h.ListSnapshots)

	// 年报导出
	router.POST("/export", h.Export)
	router.GET("/export/download/:token", h.DownloadExport)
}
