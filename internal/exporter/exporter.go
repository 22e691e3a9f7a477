package exporter

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

const sheetName = "NRW年报"

// BuildYearly 将年度 NRW 报表渲染成工作簿
//
// 一个月一行，无数据月份留空数值列，末行为全年合计。
func BuildYearly(rep *model.YearlyReport) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("创建表头样式失败: %w", err)
	}

	title := fmt.Sprintf("%s（%s）%d 年 NRW 汇总", rep.Name, rep.DeviceCode, rep.Year)
	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return nil, fmt.Errorf("写入标题失败: %w", err)
	}
	if err := f.MergeCell(sheetName, "A1", "F1"); err != nil {
		return nil, fmt.Errorf("合并标题单元格失败: %w", err)
	}

	headers := []string{"月份", "总流量 (m³)", "计费量 (m³)", "NRW (m³)", "NRW (%)", "数据状态"}
	for i, hd := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheetName, cell, hd); err != nil {
			return nil, fmt.Errorf("写入表头失败: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", "F2", headerStyle); err != nil {
		return nil, fmt.Errorf("应用表头样式失败: %w", err)
	}

	keys := make([]string, 0, len(rep.Months))
	for k := range rep.Months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := 3
	for _, key := range keys {
		m := rep.Months[key]
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), key)
		if m.HasData {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), m.TotalFlow)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), m.BilledQty)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), m.NRWVolume)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), m.NRWPercent)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), "有数据")
		} else {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), "无数据")
		}
		row++
	}

	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "全年合计")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), rep.TotalFlow)
	_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), rep.BilledQty)
	_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), rep.NRWVolume)
	_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), rep.NRWPercent)
	if err := f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("F%d", row), headerStyle); err != nil {
		return nil, fmt.Errorf("应用合计行样式失败: %w", err)
	}

	if err := f.SetColWidth(sheetName, "A", "F", 16); err != nil {
		return nil, fmt.Errorf("设置列宽失败: %w", err)
	}

	f.SetActiveSheet(0)
	return f, nil
}
