// Package panel 主机控制面板 (cPanel/WHM 等) 客户端
package panel

import (
	"context"
	"fmt"
	"sync"
)

// Client 面板需要提供的账号管理与查询能力
type Client interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	ListEmailAccounts(ctx context.Context, username string) ([]EmailAccount, error)
	ListDomains(ctx context.Context, username string) ([]AddonDomain, error)
	CreateAccount(ctx context.Context, req CreateAccountRequest) error
	SuspendAccount(ctx context.Context, username, reason string) error
	UnsuspendAccount(ctx context.Context, username string) error
	TerminateAccount(ctx context.Context, username string) error
	ChangePackage(ctx context.Context, username, plan string) error
}

type Account struct {
	Username        string
	Domain          string
	Plan            string
	ContactEmail    string
	Suspended       bool
	SuspendReason   string
	DiskUsedMB      int
	DiskLimitMB     int
	BandwidthUsedMB int
}

type EmailAccount struct {
	Address string
	QuotaMB int
	UsedMB  int
}

type AddonDomain struct {
	Domain string
	// addon, parked, sub
	Kind string
}

type CreateAccountRequest struct {
	Username     string
	Domain       string
	Plan         string
	ContactEmail string
	Password     string
}

// Config 来自 hosting_servers 表
type Config struct {
	Hostname string
	Port     int
	UseSSL   bool
	APIUser  string
	APIToken string
}

// Factory 根据服务器配置创建客户端
type Factory func(cfg Config) (Client, error)

var (
	mu       sync.RWMutex
	registry = make(map[string]Factory)
)

// Register 注册一种面板实现
func Register(panelType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[panelType]; exists {
		panic(fmt.Sprintf("面板类型 '%s' 已被注册", panelType))
	}
	registry[panelType] = f
}

// New 按面板类型创建客户端
func New(panelType string, cfg Config) (Client, error) {
	mu.RLock()
	f, exists := registry[panelType]
	mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("未找到名为 '%s' 的面板实现", panelType)
	}
	return f(cfg)
}
