package service

import (
	"testing"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardSummary(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, tld := f.seedRegistrar(t)
	srv, pkg := f.seedServer(t)

	ada := f.customer(t, "ada@example.com")
	grace := f.customer(t, "grace@example.com")
	_, err := f.svc.Customers.Update(ctx, grace.ID, dto.UpdateCustomerRequest{Status: strPtr(model.CustomerStatusSuspended)})
	require.NoError(t, err)

	f.issuedInvoice(t, ada.ID, 1500)
	partly := f.issuedInvoice(t, ada.ID, 1000)
	_, err = f.svc.Payments.RecordPayment(ctx, dto.RecordPaymentRequest{InvoiceID: partly.ID, Amount: 400, Method: model.PayMethodManual})
	require.NoError(t, err)

	expires := fixedNow.AddDate(0, 0, 10)
	require.NoError(t, f.db.Create(&model.Domain{
		CustomerID: ada.ID, Name: "soon.com", TldID: tld.ID, Status: model.DomainStatusActive, ExpiresAt: &expires,
	}).Error)
	later := fixedNow.AddDate(0, 6, 0)
	require.NoError(t, f.db.Create(&model.Domain{
		CustomerID: ada.ID, Name: "later.com", TldID: tld.ID, Status: model.DomainStatusActive, ExpiresAt: &later,
	}).Error)

	a := newAccount(t, f, srv, pkg, ada.ID, "ada")
	_, _, err = f.svc.HostingManager.Provision(ctx, a.ID, "s3cret-pass")
	require.NoError(t, err)

	sum, err := f.svc.Dashboard.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{model.CustomerStatusActive: 1, model.CustomerStatusSuspended: 1}, sum.CustomersByStatus)
	assert.Equal(t, map[string]int64{"USD": 2100}, sum.UnpaidByCurrency)
	assert.Zero(t, sum.OverdueInvoices)
	assert.Equal(t, int64(1), sum.DomainsExpiringSoon)
	assert.Equal(t, int64(1), sum.ActiveHostingAccounts)
	// 两张账单的签发通知和一封收款通知
	assert.Equal(t, int64(3), sum.QueuedEmails)

	f.now = fixedNow.AddDate(0, 0, 15)
	_, err = f.svc.Invoices.MarkOverdue(ctx)
	require.NoError(t, err)
	sum, err = f.svc.Dashboard.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.OverdueInvoices)
	assert.Equal(t, map[string]int64{"USD": 2100}, sum.UnpaidByCurrency)
}
