package service

import (
	"context"
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/integration/registrar"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/isp-backoffice/internal/testutil"
	"github.com/isp-backoffice/pkg/config"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fixedNow 测试统一使用的当前时间 (UTC)
var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	svc       *Services
	queue     *tasks.RecordingEnqueuer
	gateway   *payment.MockGateway
	registrar *registrar.MockClient
	panel     *panel.MockClient
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:        testutil.NewDB(t),
		queue:     &tasks.RecordingEnqueuer{},
		gateway:   payment.NewMockGateway(),
		registrar: registrar.NewMockClient("mock"),
		panel:     panel.NewMockClient(),
		now:       fixedNow,
	}
	f.svc = New(Options{
		DB: f.db,
		Billing: config.BillingConfig{
			BaseCurrency:     "USD",
			HomeCountry:      "US",
			InvoicePrefix:    "INV",
			QuotePrefix:      "QUO",
			PaymentTermsDays: 14,
			QuoteValidDays:   30,
		},
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			Issuer:    "isp-backoffice",
			TokenTTL:  time.Hour,
		},
		Queue:   f.queue,
		Gateway: f.gateway,
		Registrar: func(*model.Registrar) (registrar.Client, error) {
			return f.registrar, nil
		},
		Panel: func(*model.HostingServer) (panel.Client, error) {
			return f.panel, nil
		},
		Now: func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) ctx() context.Context {
	return context.Background()
}

func (f *fixture) seedCurrencies(t *testing.T) {
	t.Helper()
	_, err := f.svc.Currencies.Create(f.ctx(), dto.CreateCurrencyRequest{Code: "USD", Name: "US Dollar", Symbol: "$", IsBase: true})
	require.NoError(t, err)
	_, err = f.svc.Currencies.Create(f.ctx(), dto.CreateCurrencyRequest{Code: "EUR", Name: "Euro", Symbol: "€", ExchangeRate: 920_000})
	require.NoError(t, err)
}

func (f *fixture) customer(t *testing.T, email string, mutate ...func(*dto.CreateCustomerRequest)) *model.Customer {
	t.Helper()
	req := dto.CreateCustomerRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Country:   "US",
		State:     "CA",
	}
	for _, m := range mutate {
		m(&req)
	}
	c, err := f.svc.Customers.Create(f.ctx(), req)
	require.NoError(t, err)
	return c
}

// issuedInvoice 创建并签发一张单明细账单
func (f *fixture) issuedInvoice(t *testing.T, customerID uint, unitPrice int64) *model.Invoice {
	t.Helper()
	inv, err := f.svc.Invoices.Create(f.ctx(), dto.CreateInvoiceRequest{
		CustomerID: customerID,
		Items:      []dto.LineItemRequest{{Description: "Consulting", Quantity: 1, UnitPrice: unitPrice}},
	})
	require.NoError(t, err)
	inv, err = f.svc.Invoices.Issue(f.ctx(), inv.ID)
	require.NoError(t, err)
	return inv
}

func (f *fixture) reloadInvoice(t *testing.T, id uint) *model.Invoice {
	t.Helper()
	inv, err := f.svc.Invoices.GetByID(f.ctx(), id)
	require.NoError(t, err)
	return inv
}

func (f *fixture) reloadCustomer(t *testing.T, id uint) *model.Customer {
	t.Helper()
	c, err := f.svc.Customers.GetByID(f.ctx(), id)
	require.NoError(t, err)
	return c
}

// seedRegistrar 创建注册商、.com TLD 与价格
func (f *fixture) seedRegistrar(t *testing.T) (*model.Registrar, *model.Tld) {
	t.Helper()
	r, err := f.svc.Registrars.Create(f.ctx(), dto.CreateRegistrarRequest{Name: "mock", Kind: model.RegistrarKindMock})
	require.NoError(t, err)
	tld, err := f.svc.Registrars.CreateTld(f.ctx(), dto.CreateTldRequest{Extension: ".com", DefaultRegistrarID: r.ID})
	require.NoError(t, err)
	_, err = f.svc.Registrars.UpsertPrice(f.ctx(), dto.TldPriceRequest{
		RegistrarID:   r.ID,
		TldID:         tld.ID,
		RegisterPrice: 1000,
		RenewPrice:    1200,
		TransferPrice: 1000,
		Currency:      "USD",
	})
	require.NoError(t, err)
	return r, tld
}

// seedServer 创建主机服务器和一个套餐
func (f *fixture) seedServer(t *testing.T) (*model.HostingServer, *model.HostingPackage) {
	t.Helper()
	srv, err := f.svc.Hosting.CreateServer(f.ctx(), dto.CreateHostingServerRequest{
		Name:      "web01",
		Hostname:  "web01.example.net",
		PanelType: model.PanelTypeMock,
	})
	require.NoError(t, err)
	pkg, err := f.svc.Hosting.CreatePackage(f.ctx(), dto.CreateHostingPackageRequest{
		Name:         "Starter",
		ServerID:     srv.ID,
		PanelPlan:    "starter",
		DiskQuotaMB:  1024,
		MonthlyPrice: 500,
		Currency:     "USD",
	})
	require.NoError(t, err)
	return srv, pkg
}

func (f *fixture) emailsWithTemplate(t *testing.T, template string) []model.QueuedEmail {
	t.Helper()
	var out []model.QueuedEmail
	require.NoError(t, f.db.Where("template = ?", template).Order("id asc").Find(&out).Error)
	return out
}
