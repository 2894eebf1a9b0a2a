package service

import (
	"errors"
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainCreate(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	r, _ := f.seedRegistrar(t)
	c := f.customer(t, "ada@example.com")

	d, err := f.svc.Domains.Create(ctx, dto.CreateDomainRequest{
		CustomerID:  c.ID,
		Name:        "Example.COM.",
		Nameservers: []string{"NS1.host.net", "ns2.host.net", "ns1.host.net"},
	})
	require.NoError(t, err)
	assert.Equal(t, "example.com", d.Name)
	assert.Equal(t, model.DomainStatusPending, d.Status)
	assert.Equal(t, r.ID, d.RegistrarID)
	assert.Equal(t, model.StringList{"ns1.host.net", "ns2.host.net"}, d.Nameservers)

	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "example.xyz"})
	assert.ErrorIs(t, err, ErrValidation, "unsupported tld")
	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "bad_name.com"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "one-ns.com", Nameservers: []string{"ns1.host.net"}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: 999, Name: "orphan.com"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.svc.Domains.Delete(ctx, d.ID))
	_, err = f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "example.com"})
	assert.ErrorIs(t, err, ErrConflict, "soft-deleted names stay reserved")
}

func TestDomainCheckAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedRegistrar(t)

	avail, err := f.svc.Domains.CheckAvailability(ctx, "fresh-idea.com")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	// 本地价格覆盖注册商报价 (1099)
	assert.Equal(t, int64(1000), avail.Price)
	assert.Equal(t, "USD", avail.Currency)

	avail, err = f.svc.Domains.CheckAvailability(ctx, "taken-name.com")
	require.NoError(t, err)
	assert.False(t, avail.Available)

	f.registrar.FailWith = errors.New("timeout")
	_, err = f.svc.Domains.CheckAvailability(ctx, "fresh-idea.com")
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestDomainRegisterAndRenew(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedRegistrar(t)
	c := f.customer(t, "ada@example.com")
	d, err := f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "example.com"})
	require.NoError(t, err)

	_, _, err = f.svc.Domains.Register(ctx, d.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	registered, inv, err := f.svc.Domains.Register(ctx, d.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.DomainStatusActive, registered.Status)
	require.NotNil(t, registered.ExpiresAt)
	require.NotNil(t, registered.RegisteredAt)
	assert.Contains(t, f.registrar.Registered, "example.com")

	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, 2, inv.Items[0].Quantity)
	assert.Equal(t, int64(1000), inv.Items[0].UnitPrice)
	assert.Equal(t, model.ItemTypeDomain, inv.Items[0].ItemType)
	assert.Equal(t, d.ID, inv.Items[0].RelatedID)
	assert.Equal(t, int64(2000), inv.Total)

	_, _, err = f.svc.Domains.Register(ctx, d.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	before := *registered.ExpiresAt
	renewed, renewInv, err := f.svc.Domains.Renew(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.After(before))
	assert.Equal(t, int64(1200), renewInv.Items[0].UnitPrice)

	assert.ErrorIs(t, f.svc.Domains.Delete(ctx, d.ID), ErrInvalidState)
}

func TestDomainRegisterUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedRegistrar(t)
	c := f.customer(t, "ada@example.com")
	d, err := f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "taken-already.com"})
	require.NoError(t, err)

	_, _, err = f.svc.Domains.Register(ctx, d.ID, 1)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.svc.Domains.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DomainStatusPending, got.Status)

	var invoices int64
	require.NoError(t, f.db.Model(&model.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices)
}

func TestDomainRegisterConvertsCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedCurrencies(t)
	f.seedRegistrar(t)
	c := f.customer(t, "eu@example.com", func(r *dto.CreateCustomerRequest) { r.Currency = "EUR" })
	d, err := f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "beispiel.com"})
	require.NoError(t, err)

	_, inv, err := f.svc.Domains.Register(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "EUR", inv.Currency)
	assert.Equal(t, int64(920), inv.Items[0].UnitPrice)
}

func TestDomainUpdateNameservers(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedRegistrar(t)
	c := f.customer(t, "ada@example.com")
	d, err := f.svc.Domains.Create(ctx, dto.CreateDomainRequest{CustomerID: c.ID, Name: "example.com"})
	require.NoError(t, err)

	// 未注册的域名只保存本地
	_, err = f.svc.Domains.UpdateNameservers(ctx, d.ID, []string{"a.ns.test", "b.ns.test"})
	require.NoError(t, err)
	assert.NotContains(t, f.registrar.Nameservers, "example.com")

	_, _, err = f.svc.Domains.Register(ctx, d.ID, 1)
	require.NoError(t, err)
	updated, err := f.svc.Domains.UpdateNameservers(ctx, d.ID, []string{"ns1.new.test", "ns2.new.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ns1.new.test", "ns2.new.test"}, f.registrar.Nameservers["example.com"])
	assert.Equal(t, model.StringList{"ns1.new.test", "ns2.new.test"}, updated.Nameservers)

	got, err := f.svc.Domains.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"ns1.new.test", "ns2.new.test"}, got.Nameservers)

	f.registrar.FailWith = errors.New("registry locked")
	_, err = f.svc.Domains.UpdateNameservers(ctx, d.ID, []string{"x.ns.test", "y.ns.test"})
	assert.ErrorIs(t, err, ErrUpstream)
	got, err = f.svc.Domains.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StringList{"ns1.new.test", "ns2.new.test"}, got.Nameservers)
}

func TestDomainProcessExpirations(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, tld := f.seedRegistrar(t)
	c := f.customer(t, "ada@example.com")

	active := func(name string, expires time.Time) *model.Domain {
		d := &model.Domain{
			CustomerID: c.ID,
			Name:       name,
			TldID:      tld.ID,
			Status:     model.DomainStatusActive,
			ExpiresAt:  &expires,
		}
		require.NoError(t, f.db.Create(d).Error)
		return d
	}
	lapsed := active("lapsed.com", fixedNow.AddDate(0, 0, -1))
	active("week.com", fixedNow.AddDate(0, 0, 7))
	active("tenday.com", fixedNow.AddDate(0, 0, 10))
	active("far.com", fixedNow.AddDate(0, 0, 90))

	res, err := f.svc.Domains.ProcessExpirations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Expired)
	assert.Equal(t, 1, res.Reminded)

	got, err := f.svc.Domains.GetByID(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DomainStatusExpired, got.Status)

	reminders := f.emailsWithTemplate(t, TemplateDomainExpiring)
	require.Len(t, reminders, 1)
	assert.Contains(t, reminders[0].Subject, "week.com")

	expiring, err := f.svc.Domains.GetExpiring(ctx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 2)
	assert.Equal(t, "week.com", expiring[0].Name)

	_, err = f.svc.Domains.GetExpiring(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTldPriceSync(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	r, tld := f.seedRegistrar(t)

	res, err := f.svc.PriceSync.SyncRegistrar(ctx, r.ID)
	require.NoError(t, err)
	// .com 已有价格, .net 与 .org 为新建
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 2, res.Created)
	assert.Zero(t, res.Skipped)

	prices, err := f.svc.Registrars.GetPricesForTld(ctx, tld.ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, int64(1099), prices[0].RegisterPrice)
	require.NotNil(t, prices[0].SyncedAt)

	var net model.Tld
	require.NoError(t, f.db.Where("extension = ?", ".net").First(&net).Error)
	assert.False(t, net.Active, "discovered tlds start inactive")

	f.registrar.Prices = append(f.registrar.Prices, f.registrar.Prices[0])
	f.registrar.Prices[len(f.registrar.Prices)-1].Currency = "???"
	res, err = f.svc.PriceSync.SyncRegistrar(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	f.registrar.FailWith = errors.New("api down")
	_, err = f.svc.PriceSync.SyncAll(ctx)
	assert.ErrorIs(t, err, ErrUpstream)
}
