// Package registrar 域名注册商 API 客户端
package registrar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable 域名已被注册
var ErrUnavailable = errors.New("域名不可注册")

// Client 是所有注册商实现都必须满足的接口
type Client interface {
	Name() string
	CheckAvailability(ctx context.Context, domain string) (*Availability, error)
	Register(ctx context.Context, req RegisterRequest) (*Registration, error)
	Renew(ctx context.Context, domain string, years int) (*Registration, error)
	UpdateNameservers(ctx context.Context, domain string, nameservers []string) error
	// GetPrices 返回注册商当前全部 TLD 价格 (最小货币单位)
	GetPrices(ctx context.Context) ([]TldPrice, error)
}

type Availability struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Premium   bool   `json:"premium"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
}

type Contact struct {
	Name       string `json:"name"`
	Company    string `json:"company,omitempty"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type RegisterRequest struct {
	Domain      string   `json:"domain"`
	Years       int      `json:"years"`
	Nameservers []string `json:"nameservers,omitempty"`
	Privacy     bool     `json:"privacy"`
	Contact     Contact  `json:"contact"`
}

type Registration struct {
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expires_at"`
	OrderRef  string    `json:"order_id"`
}

type TldPrice struct {
	Tld      string `json:"tld"`
	Register int64  `json:"register"`
	Renew    int64  `json:"renew"`
	Transfer int64  `json:"transfer"`
	Currency string `json:"currency"`
}

// APIError 注册商返回的非 2xx 响应
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("registrar api error (%d): %s", e.Status, e.Message)
}

// Config 创建客户端所需的参数, 来自 registrars 表
type Config struct {
	Name     string
	Endpoint string
	APIKey   string
}
