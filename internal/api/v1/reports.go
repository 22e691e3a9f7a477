package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sarahmoonshot/nrw-report/internal/nrw"
)

// resolveDevice 解析选择器：优先 device（设备码），其次 name（自由文本经匹配器）
func (h *Handler) resolveDevice(c *gin.Context) (string, bool) {
	device := c.Query("device")
	if device != "" {
		return device, true
	}
	if name := c.Query("name"); name != "" {
		if code, ok := h.matcher.Match(name); ok {
			return code, true
		}
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("名称 %s 未匹配到任何设备", name)})
		return "", false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 device 或 name 参数"})
	return "", false
}

// parseYearMonth 解析 YYYY-MM
func parseYearMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), t.Month(), nil
}

// parseDate 解析 YYYY-MM 或 YYYY-MM-DD（前者取月初）
func parseDate(s string) (time.Time, error) {
	layout := "2006-01-02"
	if len(s) == 7 {
		layout = "2006-01"
	}
	return time.Parse(layout, s)
}

// renderReportError 装配错误到响应的统一映射
func renderReportError(c *gin.Context, err error, device, period string) {
	switch {
	case errors.Is(err, nrw.ErrUnknownDevice):
		c.JSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("设备 %s 未登记", device)})
	case errors.Is(err, nrw.ErrNoData):
		// 无数据是正常可上报结果，沿用 200 + message 的口径
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("设备 %s 在 %s 无数据", device, period)})
	case errors.Is(err, nrw.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"error": "上游数据源不可用，结果不可判定"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetMonthlyNRW 月度 NRW 报表
// GET /api/nrw/monthly?month=YYYY-MM&device=CODE
func (h *Handler) GetMonthlyNRW(c *gin.Context) {
	monthStr := c.Query("month")
	if monthStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 month 参数"})
		return
	}
	year, month, err := parseYearMonth(monthStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month 格式错误，应为 YYYY-MM"})
		return
	}
	device, ok := h.resolveDevice(c)
	if !ok {
		return
	}

	rep, err := h.assembler.Monthly(year, month, device)
	if err != nil {
		renderReportError(c, err, device, monthStr)
		return
	}
	roundMonthlyInPlace(rep)
	c.JSON(http.StatusOK, rep)
}

// GetDailyNRW 日度 NRW 报表
// GET /api/nrw/daily?date=YYYY-MM[-DD]&device=CODE
func (h *Handler) GetDailyNRW(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 date 参数"})
		return
	}
	date, err := parseDate(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 格式错误，应为 YYYY-MM 或 YYYY-MM-DD"})
		return
	}
	device, ok := h.resolveDevice(c)
	if !ok {
		return
	}

	rep, err := h.assembler.Daily(date.Year(), date.Month(), device)
	if err != nil {
		renderReportError(c, err, device, dateStr)
		return
	}
	roundDailyInPlace(rep)
	c.JSON(http.StatusOK, rep)
}

// GetHourlyNRW 时度 NRW 报表
// GET /api/nrw/hourly?date=YYYY-MM[-DD]&device=CODE（只给月份时取月初）
func (h *Handler) GetHourlyNRW(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 date 参数"})
		return
	}
	date, err := parseDate(dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date 格式错误，应为 YYYY-MM 或 YYYY-MM-DD"})
		return
	}
	device, ok := h.resolveDevice(c)
	if !ok {
		return
	}

	rep, err := h.assembler.Hourly(date.Year(), date.Month(), date.Day(), device)
	if err != nil {
		renderReportError(c, err, device, dateStr)
		return
	}
	roundHourlyInPlace(rep)
	c.JSON(http.StatusOK, rep)
}

// GetYearlyNRW 年度 NRW 报表
// GET /api/nrw/yearly?year=YYYY&device=CODE
func (h *Handler) GetYearlyNRW(c *gin.Context) {
	yearStr := c.Query("year")
	if yearStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 year 参数"})
		return
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 2999 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year 格式错误，应为 YYYY"})
		return
	}
	device, ok := h.resolveDevice(c)
	if !ok {
		return
	}

	rep, err := h.assembler.Yearly(year, device)
	if err != nil {
		renderReportError(c, err, device, yearStr)
		return
	}
	roundYearlyInPlace(rep)
	c.JSON(http.StatusOK, rep)
}
