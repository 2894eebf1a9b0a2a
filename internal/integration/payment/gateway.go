// Package payment 支付网关抽象, 卡号等敏感信息只以网关令牌的形式出现
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrDeclined 网关拒绝扣款
var ErrDeclined = errors.New("支付被拒绝")

type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type ChargeRequest struct {
	Token       string `json:"token"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	// 同一账单同一支付方式的重复扣款由网关去重
	IdempotencyKey string `json:"-"`
}

type ChargeResult struct {
	TransactionRef string `json:"id"`
}

type RefundRequest struct {
	TransactionRef string `json:"charge"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason,omitempty"`
}

type RefundResult struct {
	RefundRef string `json:"id"`
}

// Config 网关配置
type Config struct {
	Driver   string
	Endpoint string
	APIKey   string
}

// New 根据 driver 创建网关, 未配置时使用 mock
func New(cfg Config) (Gateway, error) {
	switch cfg.Driver {
	case "", "mock":
		return NewMockGateway(), nil
	case "http":
		return NewHTTPGateway(cfg, nil)
	default:
		return nil, fmt.Errorf("未知的支付网关 '%s'", cfg.Driver)
	}
}
