package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

func init() {
	Register("generic_http", func(cfg Config) (Client, error) {
		return NewHTTPClient(cfg, nil)
	})
}

// HTTPClient 对接通用 REST 风格的注册商 API
type HTTPClient struct {
	name     string
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewHTTPClient 默认限速 5 req/s, 突发 10
func NewHTTPClient(cfg Config, hc *http.Client) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("注册商 %s 未配置 API 地址", cfg.Name)
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("注册商 API 地址非法: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{
		name:     cfg.Name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(5), 10),
	}, nil
}

func (c *HTTPClient) Name() string {
	return c.name
}

func (c *HTTPClient) CheckAvailability(ctx context.Context, domain string) (*Availability, error) {
	var out Availability
	q := url.Values{"domain": {domain}}
	if err := c.do(ctx, http.MethodGet, "/domains/check?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	var out Registration
	if err := c.do(ctx, http.MethodPost, "/domains", req, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			return nil, fmt.Errorf("%s: %w", req.Domain, ErrUnavailable)
		}
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Renew(ctx context.Context, domain string, years int) (*Registration, error) {
	var out Registration
	body := map[string]int{"years": years}
	if err := c.do(ctx, http.MethodPost, "/domains/"+url.PathEscape(domain)+"/renew", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateNameservers(ctx context.Context, domain string, nameservers []string) error {
	body := map[string][]string{"nameservers": nameservers}
	return c.do(ctx, http.MethodPut, "/domains/"+url.PathEscape(domain)+"/nameservers", body, nil)
}

func (c *HTTPClient) GetPrices(ctx context.Context) ([]TldPrice, error) {
	var out struct {
		Prices []TldPrice `json:"prices"`
	}
	if err := c.do(ctx, http.MethodGet, "/prices", nil, &out); err != nil {
		return nil, err
	}
	return out.Prices, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求注册商 %s 失败: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析注册商响应失败: %w", err)
	}
	return nil
}
