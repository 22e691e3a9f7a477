package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sarahmoonshot/nrw-report/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized   bool              `json:"initialized"`   // 是否已有计算快照
	DeviceCount   int               `json:"deviceCount"`   // 已登记设备数
	SnapshotCount int               `json:"snapshotCount"` // 快照月份数
	Months        []store.MonthStat `json:"months"`        // 已有快照的月份
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	months, err := h.store.ListAvailableMonths()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Initialized:   len(months) > 0,
		DeviceCount:   len(h.matcher.Entries()),
		SnapshotCount: len(months),
		Months:        months,
	})
}

// ListDevices 获取设备映射表（声明顺序即子串匹配优先级）
// GET /api/devices
func (h *Handler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": h.matcher.Entries(),
	})
}

// ListSnapshots 查询月度快照
// GET /api/snapshots[?month=YYYY-MM]
func (h *Handler) ListSnapshots(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		months, err := h.store.ListAvailableMonths()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"months": months})
		return
	}

	snaps, err := h.store.ListMonthSnapshots(month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":     month,
		"snapshots": snaps,
	})
}
