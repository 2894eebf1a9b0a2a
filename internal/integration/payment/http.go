package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway 对接 REST 风格的支付处理器 (POST /charges, POST /refunds)
type HTTPGateway struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewHTTPGateway(cfg Config, hc *http.Client) (*HTTPGateway, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("支付网关地址不能为空")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{endpoint: strings.TrimRight(cfg.Endpoint, "/"), apiKey: cfg.APIKey, http: hc}, nil
}

func (g *HTTPGateway) Name() string {
	return "http"
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	var out ChargeResult
	if err := g.post(ctx, "/charges", req.IdempotencyKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	var out RefundResult
	if err := g.post(ctx, "/refunds", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, in, out interface{}) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求支付网关失败: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("%w: %s", ErrDeclined, e.Message)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("支付网关返回 HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析支付网关响应失败: %w", err)
	}
	return nil
}
