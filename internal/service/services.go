// Package service 实现后台的全部业务逻辑, handler 与 worker 共用
package service

import (
	"time"

	"github.com/isp-backoffice/internal/cache"
	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/integration/registrar"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/pkg/config"
	"gorm.io/gorm"
)

// RegistrarClientFactory 根据 registrars 表的记录创建 API 客户端
type RegistrarClientFactory func(r *model.Registrar) (registrar.Client, error)

// PanelClientFactory 根据 hosting_servers 表的记录创建面板客户端
type PanelClientFactory func(s *model.HostingServer) (panel.Client, error)

func DefaultRegistrarClient(r *model.Registrar) (registrar.Client, error) {
	return registrar.New(r.Kind, registrar.Config{Name: r.Name, Endpoint: r.APIEndpoint, APIKey: r.APIKey})
}

func DefaultPanelClient(s *model.HostingServer) (panel.Client, error) {
	return panel.New(s.PanelType, panel.Config{
		Hostname: s.Hostname,
		Port:     s.Port,
		UseSSL:   s.UseSSL,
		APIUser:  s.APIUser,
		APIToken: s.APIToken,
	})
}

// Options 构造 Services 所需的依赖, 未设置的可选项使用默认实现
type Options struct {
	DB        *gorm.DB
	Billing   config.BillingConfig
	Auth      config.AuthConfig
	Queue     tasks.Enqueuer
	RateCache cache.RateCache
	Gateway   payment.Gateway
	Metrics   *metrics.Metrics
	Registrar RegistrarClientFactory
	Panel     PanelClientFactory
	// SyncConcurrency 全量主机同步时同时处理的服务器数
	SyncConcurrency int
	Now             func() time.Time
}

// Services 聚合全部业务服务
type Services struct {
	Auth           *AuthService
	Customers      *CustomerService
	PaymentMethods *CustomerPaymentMethodService
	Currencies     *CurrencyService
	Taxes          *TaxService
	Invoices       *InvoiceService
	Payments       *PaymentService
	PaymentIntents *PaymentIntentService
	Refunds        *RefundService
	Credits        *CreditService
	Quotes         *QuoteService
	Registrars     *RegistrarService
	PriceSync      *RegistrarTldPriceSyncService
	Domains        *DomainService
	Dns            *DnsService
	Hosting        *HostingService
	HostingManager *HostingManagerService
	HostingSync    *HostingSyncService
	Emails         *EmailService
	Dashboard      *DashboardService
}

func New(opts Options) *Services {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RateCache == nil {
		opts.RateCache = cache.NewMemoryRateCache()
	}
	if opts.Gateway == nil {
		opts.Gateway = payment.NewMockGateway()
	}
	if opts.Registrar == nil {
		opts.Registrar = DefaultRegistrarClient
	}
	if opts.Panel == nil {
		opts.Panel = DefaultPanelClient
	}
	if opts.SyncConcurrency <= 0 {
		opts.SyncConcurrency = 4
	}

	s := &Services{}
	s.Emails = &EmailService{db: opts.DB, queue: opts.Queue, metrics: opts.Metrics, now: opts.Now}
	s.Currencies = &CurrencyService{db: opts.DB, cache: opts.RateCache, base: opts.Billing.BaseCurrency, ttl: 10 * time.Minute}
	s.Auth = &AuthService{db: opts.DB, cfg: opts.Auth, now: opts.Now}
	s.Customers = &CustomerService{db: opts.DB, billing: opts.Billing}
	s.PaymentMethods = &CustomerPaymentMethodService{db: opts.DB, now: opts.Now}
	s.Taxes = &TaxService{db: opts.DB, homeCountry: opts.Billing.HomeCountry}
	s.Credits = &CreditService{db: opts.DB}
	s.Invoices = &InvoiceService{
		db:      opts.DB,
		billing: opts.Billing,
		taxes:   s.Taxes,
		emails:  s.Emails,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	s.Credits.invoices = s.Invoices
	s.Payments = &PaymentService{
		db:       opts.DB,
		gateway:  opts.Gateway,
		invoices: s.Invoices,
		emails:   s.Emails,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	s.PaymentIntents = &PaymentIntentService{db: opts.DB, payments: s.Payments, now: opts.Now}
	s.Refunds = &RefundService{db: opts.DB, gateway: opts.Gateway}
	s.Quotes = &QuoteService{
		db:       opts.DB,
		billing:  opts.Billing,
		invoices: s.Invoices,
		emails:   s.Emails,
		now:      opts.Now,
	}
	s.Registrars = &RegistrarService{db: opts.DB}
	s.PriceSync = &RegistrarTldPriceSyncService{
		db:      opts.DB,
		clients: opts.Registrar,
		metrics: opts.Metrics,
		now:     opts.Now,
	}
	s.Domains = &DomainService{
		db:         opts.DB,
		clients:    opts.Registrar,
		currencies: s.Currencies,
		invoices:   s.Invoices,
		emails:     s.Emails,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	s.Dns = &DnsService{db: opts.DB, now: opts.Now}
	s.Hosting = &HostingService{db: opts.DB}
	s.HostingManager = &HostingManagerService{
		db:         opts.DB,
		clients:    opts.Panel,
		currencies: s.Currencies,
		invoices:   s.Invoices,
		emails:     s.Emails,
		now:        opts.Now,
	}
	s.HostingSync = &HostingSyncService{
		db:          opts.DB,
		clients:     opts.Panel,
		metrics:     opts.Metrics,
		concurrency: opts.SyncConcurrency,
		now:         opts.Now,
	}
	s.Dashboard = &DashboardService{db: opts.DB, now: opts.Now}
	return s
}
