package service

import (
	"errors"
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMonth(t *testing.T) {
	tests := []struct {
		in, want time.Time
	}{
		{time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)},
		{time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, addMonth(tt.in), tt.in.String())
	}
}

func newAccount(t *testing.T, f *fixture, srv *model.HostingServer, pkg *model.HostingPackage, customerID uint, username string) *model.HostingAccount {
	t.Helper()
	a, err := f.svc.Hosting.CreateAccount(f.ctx(), dto.CreateHostingAccountRequest{
		CustomerID:    customerID,
		ServerID:      srv.ID,
		PackageID:     pkg.ID,
		Username:      username,
		PrimaryDomain: username + ".example.com",
	})
	require.NoError(t, err)
	return a
}

func TestHostingCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	srv, pkg := f.seedServer(t)
	c := f.customer(t, "ada@example.com")

	a := newAccount(t, f, srv, pkg, c.ID, "Ada")
	assert.Equal(t, "ada", a.Username)
	assert.Equal(t, model.AccountStatusPending, a.Status)

	_, err := f.svc.Hosting.CreateAccount(ctx, dto.CreateHostingAccountRequest{
		CustomerID: c.ID, ServerID: srv.ID, PackageID: pkg.ID, Username: "ada", PrimaryDomain: "other.com",
	})
	assert.ErrorIs(t, err, ErrConflict)

	other, err := f.svc.Hosting.CreateServer(ctx, dto.CreateHostingServerRequest{Name: "web02", Hostname: "web02.example.net", PanelType: model.PanelTypeMock})
	require.NoError(t, err)
	_, err = f.svc.Hosting.CreateAccount(ctx, dto.CreateHostingAccountRequest{
		CustomerID: c.ID, ServerID: other.ID, PackageID: pkg.ID, Username: "bob", PrimaryDomain: "bob.com",
	})
	assert.ErrorIs(t, err, ErrValidation, "package belongs to another server")

	_, err = f.svc.Hosting.CreateServer(ctx, dto.CreateHostingServerRequest{Name: "web01", Hostname: "web03.example.net", PanelType: model.PanelTypeMock})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.svc.Hosting.UpdateServer(ctx, srv.ID, dto.UpdateHostingServerRequest{MaxAccounts: intPtr(1)})
	require.NoError(t, err)
	_, err = f.svc.Hosting.CreateAccount(ctx, dto.CreateHostingAccountRequest{
		CustomerID: c.ID, ServerID: srv.ID, PackageID: pkg.ID, Username: "carol", PrimaryDomain: "carol.com",
	})
	assert.ErrorIs(t, err, ErrConflict, "server full")

	assert.ErrorIs(t, f.svc.Hosting.DeletePackage(ctx, pkg.ID), ErrConflict)
	assert.ErrorIs(t, f.svc.Hosting.DeleteServer(ctx, srv.ID), ErrConflict)

	require.NoError(t, f.svc.Hosting.DeleteAccount(ctx, a.ID))
	require.NoError(t, f.svc.Hosting.DeletePackage(ctx, pkg.ID))
	require.NoError(t, f.svc.Hosting.DeleteServer(ctx, srv.ID))
}

func TestHostingAccountLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	srv, pkg := f.seedServer(t)
	c := f.customer(t, "ada@example.com")
	a := newAccount(t, f, srv, pkg, c.ID, "ada")

	_, err := f.svc.HostingManager.Suspend(ctx, a.ID, "abuse")
	assert.ErrorIs(t, err, ErrInvalidState, "pending accounts cannot be suspended")

	provisioned, inv, err := f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusActive, provisioned.Status)
	require.NotNil(t, provisioned.NextDueDate)
	assert.True(t, provisioned.NextDueDate.Equal(time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)))
	require.Contains(t, f.panel.Accounts, "ada")
	assert.Equal(t, "starter", f.panel.Accounts["ada"].Plan)
	assert.Equal(t, "ada@example.com", f.panel.Accounts["ada"].ContactEmail)

	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, int64(500), inv.Items[0].UnitPrice)
	assert.Equal(t, model.ItemTypeHosting, inv.Items[0].ItemType)
	assert.Equal(t, a.ID, inv.Items[0].RelatedID)

	_, _, err = f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.svc.Hosting.DeleteAccount(ctx, a.ID), ErrInvalidState)

	suspended, err := f.svc.HostingManager.Suspend(ctx, a.ID, "non-payment")
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusSuspended, suspended.Status)
	assert.True(t, f.panel.Accounts["ada"].Suspended)
	assert.Equal(t, "non-payment", f.panel.Accounts["ada"].SuspendReason)
	notices := f.emailsWithTemplate(t, TemplateHostingSuspended)
	require.Len(t, notices, 1)
	assert.Equal(t, "ada@example.com", notices[0].To)

	unsuspended, err := f.svc.HostingManager.Unsuspend(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusActive, unsuspended.Status)
	assert.Empty(t, unsuspended.SuspendReason)
	assert.False(t, f.panel.Accounts["ada"].Suspended)

	pro, err := f.svc.Hosting.CreatePackage(ctx, dto.CreateHostingPackageRequest{
		Name: "Pro", ServerID: srv.ID, PanelPlan: "pro", MonthlyPrice: 1500, Currency: "USD",
	})
	require.NoError(t, err)
	changed, err := f.svc.HostingManager.ChangePackage(ctx, a.ID, pro.ID)
	require.NoError(t, err)
	assert.Equal(t, pro.ID, changed.PackageID)
	assert.Equal(t, "pro", f.panel.Accounts["ada"].Plan)

	terminated, err := f.svc.HostingManager.Terminate(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusTerminated, terminated.Status)
	assert.Nil(t, terminated.NextDueDate)
	assert.NotContains(t, f.panel.Accounts, "ada")

	_, err = f.svc.HostingManager.Unsuspend(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	require.NoError(t, f.svc.Hosting.DeleteAccount(ctx, a.ID))
}

func TestHostingPanelFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	srv, pkg := f.seedServer(t)
	c := f.customer(t, "ada@example.com")
	a := newAccount(t, f, srv, pkg, c.ID, "ada")

	f.panel.FailWith = errors.New("whm unreachable")
	_, _, err := f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	assert.ErrorIs(t, err, ErrUpstream)

	got, err := f.svc.Hosting.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusPending, got.Status)
	var invoices int64
	require.NoError(t, f.db.Model(&model.Invoice{}).Count(&invoices).Error)
	assert.Zero(t, invoices)

	f.panel.FailWith = nil
	_, _, err = f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	require.NoError(t, err)

	f.panel.FailWith = errors.New("whm unreachable")
	_, err = f.svc.HostingManager.Suspend(ctx, a.ID, "abuse")
	assert.ErrorIs(t, err, ErrUpstream)
	got, err = f.svc.Hosting.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusActive, got.Status)
	assert.Empty(t, f.emailsWithTemplate(t, TemplateHostingSuspended))
}

func TestHostingRecurringInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	srv, pkg := f.seedServer(t)
	c := f.customer(t, "ada@example.com")
	a := newAccount(t, f, srv, pkg, c.ID, "ada")
	_, _, err := f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	require.NoError(t, err)

	// 到期日 4 月 10 日还不在 7 天窗口内
	n, err := f.svc.HostingManager.GenerateRecurringInvoices(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)
	n, err = f.svc.HostingManager.GenerateRecurringInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var issued []model.Invoice
	require.NoError(t, f.db.Where("status = ?", model.InvoiceStatusIssued).Find(&issued).Error)
	require.Len(t, issued, 1)
	require.NotNil(t, issued[0].Number)
	assert.Equal(t, "INV-2025-00001", *issued[0].Number)
	assert.Equal(t, int64(500), issued[0].Total)

	got, err := f.svc.Hosting.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextDueDate)
	assert.True(t, got.NextDueDate.Equal(time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)))

	// 同一周期不会重复开票
	n, err = f.svc.HostingManager.GenerateRecurringInvoices(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHostingSyncServer(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	srv, pkg := f.seedServer(t)
	c := f.customer(t, "ada@example.com")

	alice := newAccount(t, f, srv, pkg, c.ID, "alice")
	carol := &model.HostingAccount{CustomerID: c.ID, ServerID: srv.ID, PackageID: pkg.ID, Username: "carol", Status: model.AccountStatusActive}
	require.NoError(t, f.db.Create(carol).Error)
	dave := &model.HostingAccount{ServerID: srv.ID, Username: "dave", Status: model.AccountStatusTerminated}
	require.NoError(t, f.db.Create(dave).Error)
	require.NoError(t, f.db.Delete(dave).Error)

	f.panel.Accounts["alice"] = &panel.Account{
		Username: "alice", Domain: "alice.example.com", Plan: "starter",
		Suspended: true, SuspendReason: "abuse", DiskUsedMB: 120, BandwidthUsedMB: 2048,
	}
	f.panel.Accounts["dave"] = &panel.Account{Username: "dave", Domain: "dave.example.com", Plan: "starter"}
	f.panel.Accounts["erin"] = &panel.Account{Username: "erin", Domain: "erin.example.com", Plan: "legacy"}
	f.panel.Emails["alice"] = []panel.EmailAccount{
		{Address: "info@alice.example.com", QuotaMB: 500, UsedMB: 12},
		{Address: "billing@alice.example.com", QuotaMB: 500},
	}
	f.panel.Domains["alice"] = []panel.AddonDomain{{Domain: "alice-shop.com"}}

	res, err := f.svc.HostingSync.SyncServer(ctx, srv.ID)
	require.NoError(t, err)
	assert.Equal(t, &HostingSyncResult{Servers: 1, Created: 2, Updated: 1, Removed: 1, Emails: 2, Domains: 1}, res)

	got, err := f.svc.Hosting.GetAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusSuspended, got.Status)
	assert.Equal(t, 120, got.DiskUsedMB)
	assert.Equal(t, c.ID, got.CustomerID, "sync keeps the local customer link")
	require.Len(t, got.EmailAccounts, 2)
	assert.Equal(t, "billing@alice.example.com", got.EmailAccounts[0].Address)
	domains, err := f.svc.Hosting.GetAddonDomains(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, model.AddonKindAddon, domains[0].Kind)

	got, err = f.svc.Hosting.GetAccount(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusRemoved, got.Status)

	restored, err := f.svc.Hosting.GetAccount(ctx, dave.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AccountStatusActive, restored.Status)

	var erin model.HostingAccount
	require.NoError(t, f.db.Where("username = ?", "erin").First(&erin).Error)
	assert.Zero(t, erin.CustomerID)
	assert.Zero(t, erin.PackageID, "unknown plans are not mapped")

	// 再次同步只更新, 子记录整体替换不会重复
	res, err = f.svc.HostingSync.SyncServer(ctx, srv.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Updated)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Removed)
	emails, err := f.svc.Hosting.GetEmailAccounts(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, emails, 2)

	server, err := f.svc.Hosting.GetServer(ctx, srv.ID)
	require.NoError(t, err)
	require.NotNil(t, server.LastSyncAt)
}

func TestHostingSyncAll(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	f.seedServer(t)
	_, err := f.svc.Hosting.CreateServer(ctx, dto.CreateHostingServerRequest{
		Name: "web02", Hostname: "web02.example.net", PanelType: model.PanelTypeMock, Active: boolPtr(false),
	})
	require.NoError(t, err)
	f.panel.Accounts["alice"] = &panel.Account{Username: "alice", Domain: "alice.example.com", Plan: "starter"}

	res, err := f.svc.HostingSync.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Servers, "inactive servers are skipped")
	assert.Equal(t, 1, res.Created)

	f.panel.FailWith = errors.New("connection reset")
	res, err = f.svc.HostingSync.SyncAll(ctx)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 1, res.Failed)
}
