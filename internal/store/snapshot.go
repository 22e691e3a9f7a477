package store

import (
	"database/sql"
	"fmt"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// MonthlySnapshot 落库的月度计算结果
type MonthlySnapshot struct {
	MonthKey       string            `json:"monthKey"`
	DeviceCode     string            `json:"deviceCode"`
	EntityName     string            `json:"entityName"`
	EntityLevel    model.EntityLevel `json:"entityLevel"`
	TotalFlow      float64           `json:"totalFlow"`
	BilledQty      float64           `json:"billedQty"`
	NRWVolume      float64           `json:"nrwM3"`
	NRWPercent     float64           `json:"nrwPercent"`
	BilledComplete float64           `json:"billedCompleted"`
	FlowStatus     model.FetchStatus `json:"flowStatus"`
	HasAnomaly     bool              `json:"hasAnomaly"`
	UpdatedAt      string            `json:"updatedAt"`
}

// SnapshotFromReport 由月度报表构造快照
func SnapshotFromReport(r model.MonthlyReport) MonthlySnapshot {
	return MonthlySnapshot{
		MonthKey:       r.Month,
		DeviceCode:     r.DeviceCode,
		EntityName:     r.Name,
		EntityLevel:    r.Level,
		TotalFlow:      r.TotalFlow,
		BilledQty:      r.BilledQty,
		NRWVolume:      r.NRWVolume,
		NRWPercent:     r.NRWPercent,
		BilledComplete: r.BilledComplete,
		FlowStatus:     r.FlowStatus,
		HasAnomaly:     r.HasAnomaly,
	}
}

// UpsertMonthly 按 (月份, 设备) 写入或更新月度快照
func (s *Store) UpsertMonthly(snap MonthlySnapshot) error {
	_, err := s.db.Exec(`
		INSERT INTO monthly_snapshots (
			month_key, device_code, entity_name, entity_level,
			total_flow, billed_qty, nrw_m3, nrw_percent,
			billed_completed, flow_status, has_anomaly
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(month_key, device_code) DO UPDATE SET
			entity_name = excluded.entity_name,
			entity_level = excluded.entity_level,
			total_flow = excluded.total_flow,
			billed_qty = excluded.billed_qty,
			nrw_m3 = excluded.nrw_m3,
			nrw_percent = excluded.nrw_percent,
			billed_completed = excluded.billed_completed,
			flow_status = excluded.flow_status,
			has_anomaly = excluded.has_anomaly,
			updated_at = CURRENT_TIMESTAMP
	`, snap.MonthKey, snap.DeviceCode, snap.EntityName, string(snap.EntityLevel),
		snap.TotalFlow, snap.BilledQty, snap.NRWVolume, snap.NRWPercent,
		snap.BilledComplete, string(snap.FlowStatus), boolToInt(snap.HasAnomaly))
	if err != nil {
		return fmt.Errorf("upsert monthly snapshot failed: %w", err)
	}
	return nil
}

// GetMonthly 读取某月某设备的快照，第二个返回值表示是否存在
func (s *Store) GetMonthly(monthKey, deviceCode string) (MonthlySnapshot, bool, error) {
	var snap MonthlySnapshot
	var level, status string
	var anomaly int
	err := s.db.QueryRow(`
		SELECT month_key, device_code, entity_name, entity_level,
		       total_flow, billed_qty, nrw_m3, nrw_percent,
		       billed_completed, flow_status, has_anomaly, updated_at
		FROM monthly_snapshots
		WHERE month_key = ? AND device_code = ?
	`, monthKey, deviceCode).Scan(
		&snap.MonthKey, &snap.DeviceCode, &snap.EntityName, &level,
		&snap.TotalFlow, &snap.BilledQty, &snap.NRWVolume, &snap.NRWPercent,
		&snap.BilledComplete, &status, &anomaly, &snap.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return MonthlySnapshot{}, false, nil
		}
		return MonthlySnapshot{}, false, fmt.Errorf("query monthly snapshot failed: %w", err)
	}
	snap.EntityLevel = model.EntityLevel(level)
	snap.FlowStatus = model.FetchStatus(status)
	snap.HasAnomaly = anomaly != 0
	return snap, true, nil
}

// MonthStat 快照库中某月的统计
type MonthStat struct {
	MonthKey    string `json:"monthKey"`
	DeviceCount int    `json:"deviceCount"`
}

// ListAvailableMonths 列出已有快照的月份（倒序）
func (s *Store) ListAvailableMonths() ([]MonthStat, error) {
	rows, err := s.db.Query(`
		SELECT month_key, COUNT(1)
		FROM monthly_snapshots
		GROUP BY month_key
		ORDER BY month_key DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query available months failed: %w", err)
	}
	defer rows.Close()

	var out []MonthStat
	for rows.Next() {
		var it MonthStat
		if err := rows.Scan(&it.MonthKey, &it.DeviceCount); err != nil {
			return nil, fmt.Errorf("scan available months failed: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate available months failed: %w", err)
	}
	return out, nil
}

// ListMonthSnapshots 列出某月全部设备的快照
func (s *Store) ListMonthSnapshots(monthKey string) ([]MonthlySnapshot, error) {
	rows, err := s.db.Query(`
		SELECT month_key, device_code, entity_name, entity_level,
		       total_flow, billed_qty, nrw_m3, nrw_percent,
		       billed_completed, flow_status, has_anomaly, updated_at
		FROM monthly_snapshots
		WHERE month_key = ?
		ORDER BY device_code
	`, monthKey)
	if err != nil {
		return nil, fmt.Errorf("query month snapshots failed: %w", err)
	}
	defer rows.Close()

	var out []MonthlySnapshot
	for rows.Next() {
		var snap MonthlySnapshot
		var level, status string
		var anomaly int
		if err := rows.Scan(
			&snap.MonthKey, &snap.DeviceCode, &snap.EntityName, &level,
			&snap.TotalFlow, &snap.BilledQty, &snap.NRWVolume, &snap.NRWPercent,
			&snap.BilledComplete, &status, &anomaly, &snap.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan month snapshot failed: %w", err)
		}
		snap.EntityLevel = model.EntityLevel(level)
		snap.FlowStatus = model.FetchStatus(status)
		snap.HasAnomaly = anomaly != 0
		out = append(out, snap)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
