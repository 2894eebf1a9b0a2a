package registrar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

func init() {
	Register("mock", func(cfg Config) (Client, error) {
		return NewMockClient(cfg.Name), nil
	})
}

// MockClient 内存实现, 用于开发环境和测试; 以 "taken" 开头的域名视为已被注册
type MockClient struct {
	name   string
	mu     sync.Mutex
	now    func() time.Time
	Prices []TldPrice
	// 记录调用, 便于测试断言
	Registered  map[string]time.Time
	Nameservers map[string][]string
	FailWith    error
}

func NewMockClient(name string) *MockClient {
	return &MockClient{
		name: name,
		now:  time.Now,
		Prices: []TldPrice{
			{Tld: ".com", Register: 1099, Renew: 1299, Transfer: 1099, Currency: "USD"},
			{Tld: ".net", Register: 1199, Renew: 1399, Transfer: 1199, Currency: "USD"},
			{Tld: ".org", Register: 999, Renew: 1199, Transfer: 999, Currency: "USD"},
		},
		Registered:  make(map[string]time.Time),
		Nameservers: make(map[string][]string),
	}
}

func (m *MockClient) Name() string {
	return m.name
}

func (m *MockClient) CheckAvailability(_ context.Context, domain string) (*Availability, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, registered := m.Registered[domain]
	out := &Availability{
		Domain:    domain,
		Available: !registered && !strings.HasPrefix(domain, "taken"),
		Currency:  "USD",
	}
	if p, ok := m.priceFor(domain); ok {
		out.Price = p.Register
		out.Currency = p.Currency
	}
	return out, nil
}

func (m *MockClient) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	avail, err := m.CheckAvailability(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	if !avail.Available {
		return nil, fmt.Errorf("%s: %w", req.Domain, ErrUnavailable)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expires := m.now().AddDate(req.Years, 0, 0)
	m.Registered[req.Domain] = expires
	m.Nameservers[req.Domain] = req.Nameservers
	return &Registration{Domain: req.Domain, ExpiresAt: expires, OrderRef: "mock-" + req.Domain}, nil
}

func (m *MockClient) Renew(_ context.Context, domain string, years int) (*Registration, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.Registered[domain]
	if !ok {
		current = m.now()
	}
	expires := current.AddDate(years, 0, 0)
	m.Registered[domain] = expires
	return &Registration{Domain: domain, ExpiresAt: expires, OrderRef: "mock-renew-" + domain}, nil
}

func (m *MockClient) UpdateNameservers(_ context.Context, domain string, nameservers []string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nameservers[domain] = append([]string(nil), nameservers...)
	return nil
}

func (m *MockClient) GetPrices(_ context.Context) ([]TldPrice, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TldPrice(nil), m.Prices...), nil
}

func (m *MockClient) priceFor(domain string) (TldPrice, bool) {
	for _, p := range m.Prices {
		if strings.HasSuffix(domain, p.Tld) {
			return p, true
		}
	}
	return TldPrice{}, false
}
