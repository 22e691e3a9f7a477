package v1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/Sarahmoonshot/nrw-report/internal/billing"
	"github.com/Sarahmoonshot/nrw-report/internal/config"
	"github.com/Sarahmoonshot/nrw-report/internal/devices"
	"github.com/Sarahmoonshot/nrw-report/internal/model"
	"github.com/Sarahmoonshot/nrw-report/internal/nrw"
	"github.com/Sarahmoonshot/nrw-report/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testZone = time.FixedZone("local", 8*3600)

// fakeFlow 固定返回一组读数
type fakeFlow struct {
	readings []model.AccumulatorReading
	status   model.FetchStatus
}

func (f *fakeFlow) FetchReadings(device string, instants []int64) ([]model.AccumulatorReading, model.FetchStatus) {
	return f.readings, f.status
}

// fakeBilling 按月份键返回汇总
type fakeBilling struct {
	months map[string]billing.MonthAggregates
}

func (f *fakeBilling) AggregateMonth(year int, month time.Month) billing.MonthAggregates {
	if agg, ok := f.months[nrw.MonthKey(year, month)]; ok {
		return agg
	}
	return billing.MonthAggregates{Status: model.FetchEmpty}
}

// janReadings 2025-01 整月逐日线性累计读数，月内增量合计 10000
func janReadings() []model.AccumulatorReading {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, testZone)
	var out []model.AccumulatorReading
	for i := 0; i <= 31; i++ {
		t := first.AddDate(0, 0, i-1)
		v := 10000 * float64(i) / 31
		out = append(out, model.AccumulatorReading{TimestampMillis: t.UnixMilli(), Value: &v})
	}
	return out
}

func janAggregates() billing.MonthAggregates {
	return billing.MonthAggregates{
		Projects: billing.Aggregate([]model.BillingRow{
			{ProjectName: "Libona WTP", Location: "Poblacion", QtyM3: 3000, ActiveCustomers: 10, PercentageComplete: 50},
			{ProjectName: "Libona WTP", Location: "Kilangit", QtyM3: 4500, ActiveCustomers: 30, PercentageComplete: 90},
		}),
		Status: model.FetchOK,
	}
}

// newTestRouter 搭一套带真实 SQLite 快照库的路由
func newTestRouter(t *testing.T, flow nrw.FlowSource, bill nrw.BillingSource) (*gin.Engine, *store.Store) {
	t.Helper()

	st, err := store.New(t.TempDir() + "/nrw.db")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	matcher := devices.NewMatcher(config.DefaultConfig().Devices.Mapping)
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))
	assembler := nrw.NewAssembler(flow, bill, matcher, st, 8*time.Hour, clock)

	router := gin.New()
	h := NewHandler(assembler, matcher, st, t.TempDir())
	h.RegisterRoutes(router.Group("/api"))
	return router, st
}

func doGet(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestGetMonthlyNRW(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	w := doGet(router, "/api/nrw/monthly?month=2025-01&device=40961")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rep model.MonthlyReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Name != "LIBONA WTP" || rep.Level != model.LevelWTP {
		t.Fatalf("unexpected entity: %s / %s", rep.Name, rep.Level)
	}
	if rep.TotalFlow != 10000 || rep.BilledQty != 7500 {
		t.Fatalf("unexpected volumes: %+v", rep)
	}
	if rep.NRWVolume != 2500 || rep.NRWPercent != 25 {
		t.Fatalf("unexpected nrw: %+v", rep)
	}
}

func TestGetMonthlyNRW_ByName(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	w := doGet(router, "/api/nrw/monthly?month=2025-01&name=Upper+Libona+Pump+Station")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rep model.MonthlyReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.DeviceCode != "40961" {
		t.Fatalf("unexpected device: %s", rep.DeviceCode)
	}
}

func TestGetMonthlyNRW_Validation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchEmpty}, &fakeBilling{})

	cases := []struct {
		path string
		code int
		want string
	}{
		{"/api/nrw/monthly?device=40961", http.StatusBadRequest, "缺少 month 参数"},
		{"/api/nrw/monthly?month=202501&device=40961", http.StatusBadRequest, "month 格式错误"},
		{"/api/nrw/monthly?month=2025-01", http.StatusBadRequest, "缺少 device 或 name 参数"},
		{"/api/nrw/monthly?month=2025-01&name=nonexistent+plant", http.StatusNotFound, "未匹配到任何设备"},
		{"/api/nrw/monthly?month=2025-01&device=999999", http.StatusNotFound, "设备 999999 未登记"},
	}
	for _, tc := range cases {
		w := doGet(router, tc.path)
		if w.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d: %s", tc.path, tc.code, w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), tc.want) {
			t.Fatalf("%s: expected %q in body, got %s", tc.path, tc.want, w.Body.String())
		}
	}
}

func TestGetMonthlyNRW_NoData(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchEmpty}, &fakeBilling{})

	// 无数据是 200 + message，不是错误
	w := doGet(router, "/api/nrw/monthly?month=2025-01&device=40961")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "无数据") {
		t.Fatalf("expected no-data message, got %s", w.Body.String())
	}
}

func TestGetMonthlyNRW_UpstreamDown(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchUnavailable}, &fakeBilling{})

	w := doGet(router, "/api/nrw/monthly?month=2025-01&device=40961")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "上游数据源不可用") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetDailyNRW(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	w := doGet(router, "/api/nrw/daily?date=2025-01&device=40961")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rep model.DailyReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rep.Rows) != 31 {
		t.Fatalf("expected 31 rows, got %d", len(rep.Rows))
	}
	// 7500/31 保留两位
	if rep.Rows[0].BilledEst != 241.94 {
		t.Fatalf("unexpected billed est: %v", rep.Rows[0].BilledEst)
	}

	// 无效日期
	w = doGet(router, "/api/nrw/daily?date=bad&device=40961")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetHourlyNRW_Validation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchEmpty}, &fakeBilling{})

	w := doGet(router, "/api/nrw/hourly?device=40961")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = doGet(router, "/api/nrw/hourly?date=20250101&device=40961")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
	// 只给月份默认取月初，参数合法；两个月都无计费 → 无数据口径
	w = doGet(router, "/api/nrw/hourly?date=2025-01&device=40961")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "无数据") {
		t.Fatalf("expected 200 no-data for month-only date, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetYearlyNRW(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	w := doGet(router, "/api/nrw/yearly?year=2025&device=40961")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rep model.YearlyReport
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rep.Months) != 12 {
		t.Fatalf("expected 12 months, got %d", len(rep.Months))
	}
	if !rep.Months["2025-01"].HasData || rep.Months["2025-06"].HasData {
		t.Fatalf("unexpected month data flags: %+v", rep.Months)
	}

	w = doGet(router, "/api/nrw/yearly?year=abc&device=40961")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusAndSnapshots(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	// 初始状态：无快照
	w := doGet(router, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var st StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Initialized || st.SnapshotCount != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
	if st.DeviceCount != len(config.DefaultConfig().Devices.Mapping) {
		t.Fatalf("unexpected device count: %d", st.DeviceCount)
	}

	// 月度计算应落快照
	if w := doGet(router, "/api/nrw/monthly?month=2025-01&device=40961"); w.Code != http.StatusOK {
		t.Fatalf("monthly: %d", w.Code)
	}

	w = doGet(router, "/api/status")
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Initialized || st.SnapshotCount != 1 {
		t.Fatalf("expected snapshot recorded, got %+v", st)
	}

	w = doGet(router, "/api/snapshots?month=2025-01")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "40961") {
		t.Fatalf("snapshots: %d %s", w.Code, w.Body.String())
	}
}

func TestListDevices(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchEmpty}, &fakeBilling{})

	w := doGet(router, "/api/devices")
	if w.Code != http.StatusOK {
		t.Fatalf("devices: %d", w.Code)
	}
	for _, code := range []string{"40961", "3993042948", "3993042952"} {
		if !strings.Contains(w.Body.String(), code) {
			t.Fatalf("expected device %s in %s", code, w.Body.String())
		}
	}
}

func TestExportAndDownload(t *testing.T) {
	flow := &fakeFlow{readings: janReadings(), status: model.FetchOK}
	bill := &fakeBilling{months: map[string]billing.MonthAggregates{"2025-01": janAggregates()}}
	router, _ := newTestRouter(t, flow, bill)

	body, _ := json.Marshal(map[string]any{"year": 2025, "device": "40961"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/export", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("export: %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Token    string `json:"token"`
		Filename string `json:"filename"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || !strings.HasSuffix(resp.Filename, ".xlsx") {
		t.Fatalf("unexpected export response: %+v", resp)
	}

	dl := doGet(router, fmt.Sprintf("/api/export/download/%s", resp.Token))
	if dl.Code != http.StatusOK {
		t.Fatalf("download: %d", dl.Code)
	}
	if dl.Body.Len() == 0 {
		t.Fatal("expected workbook bytes")
	}

	// 伪造令牌
	if bad := doGet(router, "/api/export/download/bogus"); bad.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for bogus token, got %d", bad.Code)
	}
}

func TestExportValidation(t *testing.T) {
	router, _ := newTestRouter(t, &fakeFlow{status: model.FetchEmpty}, &fakeBilling{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"year": 1990, "device": "40961"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
