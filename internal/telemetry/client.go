package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// DefaultBatchSize 单次远端读取默认携带的时间点上限
const DefaultBatchSize = 30

// Client 流量遥测批量拉取客户端
//
// 按批次顺序逐个发起请求（不并发），单个批次失败只记日志并降级为空结果，
// 拉取本身从不返回错误；调用方通过 FetchStatus 区分数据缺失和数值为零。
type Client struct {
	baseURL   string
	batchSize int
	http      *http.Client
}

// NewClient 创建遥测客户端
func NewClient(baseURL string, batchSize int, timeout time.Duration) *Client {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		batchSize: batchSize,
		http:      &http.Client{Timeout: timeout},
	}
}

// readingsEnvelope 远端响应外层结构
type readingsEnvelope struct {
	Payload struct {
		Readings []model.AccumulatorReading `json:"readings"`
	} `json:"payload"`
}

// FetchReadings 拉取指定设备在一组时间点附近的累计读数
//
// instants 按批大小切分，逐批请求后按批次顺序拼接；批内返回顺序不做保证，
// 响应中多余的采样一并保留（下游按采样自身时间戳重新分桶）。
func (c *Client) FetchReadings(device string, instants []int64) ([]model.AccumulatorReading, model.FetchStatus) {
	if len(instants) == 0 {
		return nil, model.FetchEmpty
	}

	chunks := lo.Chunk(instants, c.batchSize)
	var readings []model.AccumulatorReading
	failed := 0

	for i, chunk := range chunks {
		batch, err := c.fetchChunk(device, chunk)
		if err != nil {
			log.Printf("[ERROR] 遥测批次 %d/%d 拉取失败 device=%s: %v", i+1, len(chunks), device, err)
			failed++
			continue
		}
		readings = append(readings, batch...)
	}

	switch {
	case failed == len(chunks):
		return nil, model.FetchUnavailable
	case failed > 0:
		return readings, model.FetchPartial
	case len(readings) == 0:
		return nil, model.FetchEmpty
	default:
		return readings, model.FetchOK
	}
}

// fetchChunk 单个批次的远端读取
func (c *Client) fetchChunk(device string, instants []int64) ([]model.AccumulatorReading, error) {
	parts := make([]string, len(instants))
	for i, ts := range instants {
		parts[i] = strconv.FormatInt(ts, 10)
	}

	q := url.Values{}
	q.Set("device", device)
	q.Set("timestamps", strings.Join(parts, ","))
	reqURL := c.baseURL + "/get-accumulator-readings?" + q.Encode()

	resp, err := c.http.Get(reqURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var envelope readingsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode payload failed: %w", err)
	}

	return envelope.Payload.Readings, nil
}
