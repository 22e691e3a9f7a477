package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// defaultTokenTTL 登录响应未携带 expires_in 时的默认有效期（秒）
const defaultTokenTTL = 3600

// TokenProvider 计费网关访问令牌提供者
//
// 令牌与过期时间由互斥锁保护：并发请求下过期时只发生一次刷新，
// 其余调用方等待并复用刷新结果。时钟注入以便测试控制过期。
type TokenProvider struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	clock    clockwork.Clock

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenProvider 创建令牌提供者
func NewTokenProvider(baseURL, username, password string, timeout time.Duration, clock clockwork.Clock) *TokenProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenProvider{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		clock:    clock,
	}
}

// signInResponse 登录响应外层结构
type signInResponse struct {
	Data struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	} `json:"data"`
}

// Token 返回缓存令牌，过期或缺失时刷新一次
func (p *TokenProvider) Token() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.clock.Now().Before(p.expiry) {
		return p.token, nil
	}

	token, expiresIn, err := p.signIn()
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiry = p.clock.Now().Add(time.Duration(expiresIn) * time.Second)
	return p.token, nil
}

// Invalidate 主动作废缓存令牌（上游返回 401 时使用）
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
}

// signIn 调用登录接口换取新令牌
func (p *TokenProvider) signIn() (token string, expiresIn int, err error) {
	body, err := json.Marshal(map[string]string{
		"username": p.username,
		"password": p.password,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal sign-in body failed: %w", err)
	}

	resp, err := p.http.Post(p.baseURL+"/Identity/User/SignIn", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("sign-in request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("sign-in unexpected status: %d", resp.StatusCode)
	}

	var result signInResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, fmt.Errorf("decode sign-in response failed: %w", err)
	}
	if result.Data.AccessToken == "" {
		return "", 0, fmt.Errorf("sign-in response missing access_token")
	}

	expiresIn = result.Data.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenTTL
	}
	return result.Data.AccessToken, expiresIn, nil
}
