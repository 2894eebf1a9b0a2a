package panel

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

func init() {
	Register("mock", func(cfg Config) (Client, error) {
		return NewMockClient(), nil
	})
}

// MockClient 内存面板, 开发环境与测试使用
type MockClient struct {
	mu       sync.Mutex
	Accounts map[string]*Account
	Emails   map[string][]EmailAccount
	Domains  map[string][]AddonDomain
	FailWith error
}

func NewMockClient() *MockClient {
	return &MockClient{
		Accounts: make(map[string]*Account),
		Emails:   make(map[string][]EmailAccount),
		Domains:  make(map[string][]AddonDomain),
	}
}

func (m *MockClient) ListAccounts(_ context.Context) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]Account, 0, len(m.Accounts))
	for _, a := range m.Accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MockClient) ListEmailAccounts(_ context.Context, username string) ([]EmailAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EmailAccount(nil), m.Emails[username]...), nil
}

func (m *MockClient) ListDomains(_ context.Context, username string) ([]AddonDomain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AddonDomain(nil), m.Domains[username]...), nil
}

func (m *MockClient) CreateAccount(_ context.Context, req CreateAccountRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.Accounts[req.Username]; ok {
		return fmt.Errorf("账号 %s 已存在", req.Username)
	}
	m.Accounts[req.Username] = &Account{
		Username:     req.Username,
		Domain:       req.Domain,
		Plan:         req.Plan,
		ContactEmail: req.ContactEmail,
	}
	return nil
}

func (m *MockClient) SuspendAccount(_ context.Context, username, reason string) error {
	return m.update(username, func(a *Account) {
		a.Suspended = true
		a.SuspendReason = reason
	})
}

func (m *MockClient) UnsuspendAccount(_ context.Context, username string) error {
	return m.update(username, func(a *Account) {
		a.Suspended = false
		a.SuspendReason = ""
	})
}

func (m *MockClient) TerminateAccount(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	if _, ok := m.Accounts[username]; !ok {
		return fmt.Errorf("账号 %s 不存在", username)
	}
	delete(m.Accounts, username)
	delete(m.Emails, username)
	delete(m.Domains, username)
	return nil
}

func (m *MockClient) ChangePackage(_ context.Context, username, plan string) error {
	return m.update(username, func(a *Account) { a.Plan = plan })
}

func (m *MockClient) update(username string, fn func(a *Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	a, ok := m.Accounts[username]
	if !ok {
		return fmt.Errorf("账号 %s 不存在", username)
	}
	fn(a)
	return nil
}
