package billing

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sarahmoonshot/nrw-report/internal/model"
)

// Client 计费系统客户端
//
// 拉取失败在此边界被吃掉并降级为“无数据”状态——由 FetchStatus 携带，
// 绝不把上游故障折叠成计费量为 0。
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *TokenProvider
}

// NewClient 创建计费客户端
func NewClient(baseURL string, tokens *TokenProvider, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// locationPeriodsResponse 计费接口响应外层结构
type locationPeriodsResponse struct {
	Data []model.BillingRow `json:"data"`
}

// FetchLocationPeriods 拉取某计费月（YYYY-MM）的全部片区计费记录
func (c *Client) FetchLocationPeriods(yearMonth string) ([]model.BillingRow, model.FetchStatus) {
	rows, err := c.fetchLocationPeriods(yearMonth)
	if err != nil {
		log.Printf("[ERROR] 计费记录拉取失败 yearMonth=%s: %v", yearMonth, err)
		return nil, model.FetchUnavailable
	}
	if len(rows) == 0 {
		return nil, model.FetchEmpty
	}
	return rows, model.FetchOK
}

func (c *Client) fetchLocationPeriods(yearMonth string) ([]model.BillingRow, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("acquire token failed: %w", err)
	}

	q := url.Values{}
	q.Set("yearMonth", yearMonth)
	reqURL := c.baseURL + "/Billing/GetLocationPeriods?" + q.Encode()

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// 令牌失效，作废缓存让下次请求重新登录
		c.tokens.Invalidate()
		return nil, fmt.Errorf("unauthorized, token invalidated")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result locationPeriodsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	return result.Data, nil
}

// MonthAggregates 某个计费月的汇总结果与数据状态
type MonthAggregates struct {
	Projects []model.ProjectAggregate `json:"projects"`
	Status   model.FetchStatus        `json:"status"`
}

// AggregateMonth 拉取并汇总某月计费
func (c *Client) AggregateMonth(year int, month time.Month) MonthAggregates {
	yearMonth := fmt.Sprintf("%04d-%02d", year, int(month))
	rows, status := c.FetchLocationPeriods(yearMonth)
	return MonthAggregates{
		Projects: Aggregate(rows),
		Status:   status,
	}
}
