package service

import (
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxCalculation(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, err := f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "State tax", Country: "us", State: "CA", Rate: 500})
	require.NoError(t, err)
	_, err = f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "Local surcharge", Country: "US", Rate: 1000, Priority: 1, Compound: true})
	require.NoError(t, err)
	_, err = f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "Other state", Country: "US", State: "NY", Rate: 800})
	require.NoError(t, err)

	c := f.customer(t, "ada@example.com")
	lines, err := f.svc.Taxes.CalculateForCustomer(ctx, c.ID, 10_000)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, TaxLine{Name: "State tax", Rate: 500, Amount: 500}, lines[0])
	// 复合税基于 10000 + 500
	assert.Equal(t, TaxLine{Name: "Local surcharge", Rate: 1000, Amount: 1050}, lines[1])

	t.Run("zero subtotal", func(t *testing.T) {
		lines, err := f.svc.Taxes.CalculateForCustomer(ctx, c.ID, 0)
		require.NoError(t, err)
		assert.Empty(t, lines)
	})

	t.Run("invalid rate", func(t *testing.T) {
		_, err := f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "Bad", Country: "US", Rate: 10_001})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestTaxReverseCharge(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, err := f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "VAT", Country: "DE", Rate: 1900, ReverseCharge: true})
	require.NoError(t, err)

	business := f.customer(t, "gmbh@example.de", func(r *dto.CreateCustomerRequest) {
		r.Country, r.State, r.CompanyName, r.VATNumber = "DE", "", "Beispiel GmbH", "DE123456789"
	})
	consumer := f.customer(t, "hans@example.de", func(r *dto.CreateCustomerRequest) {
		r.Country, r.State = "DE", ""
	})

	lines, err := f.svc.Taxes.CalculateForCustomer(ctx, business.ID, 10_000)
	require.NoError(t, err)
	assert.Empty(t, lines)

	lines, err = f.svc.Taxes.CalculateForCustomer(ctx, consumer.ID, 10_000)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1900), lines[0].Amount)
}

func TestInvoiceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, err := f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "Sales tax", Country: "US", Rate: 1000})
	require.NoError(t, err)
	c := f.customer(t, "ada@example.com")

	inv, err := f.svc.Invoices.Create(ctx, dto.CreateInvoiceRequest{
		CustomerID: c.ID,
		Items: []dto.LineItemRequest{
			{Description: "Hosting", Quantity: 2, UnitPrice: 1500},
			{Description: "Setup fee", Quantity: 1, UnitPrice: 1000, Taxable: boolPtr(false)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Nil(t, inv.Number)
	assert.Equal(t, "USD", inv.Currency)
	assert.Equal(t, int64(4000), inv.Subtotal)
	// 只对应税明细 3000 计税
	assert.Equal(t, int64(300), inv.TaxTotal)
	assert.Equal(t, int64(4300), inv.Total)

	updated, err := f.svc.Invoices.Update(ctx, inv.ID, dto.UpdateInvoiceRequest{
		Items: []dto.LineItemRequest{{Description: "Hosting", Quantity: 1, UnitPrice: 2000}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2200), updated.Total)

	issued, err := f.svc.Invoices.Issue(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, issued.Number)
	assert.Equal(t, "INV-2025-00001", *issued.Number)
	assert.Equal(t, model.InvoiceStatusIssued, issued.Status)
	assert.Equal(t, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), issued.DueDate.UTC())
	assert.Contains(t, f.queue.Types(), tasks.TypeSendEmail)
	assert.Len(t, f.emailsWithTemplate(t, TemplateInvoiceIssued), 1)

	_, err = f.svc.Invoices.Update(ctx, inv.ID, dto.UpdateInvoiceRequest{Notes: strPtr("late edit")})
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Invoices.Issue(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.svc.Invoices.Delete(ctx, inv.ID), ErrInvalidState)

	second := f.issuedInvoice(t, c.ID, 100)
	assert.Equal(t, "INV-2025-00002", *second.Number)
}

func TestInvoiceIssueRequiresItems(t *testing.T) {
	f := newFixture(t)
	c := f.customer(t, "ada@example.com")
	inv, err := f.svc.Invoices.Create(f.ctx(), dto.CreateInvoiceRequest{CustomerID: c.ID})
	require.NoError(t, err)
	_, err = f.svc.Invoices.Issue(f.ctx(), inv.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvoiceCreateUnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Invoices.Create(f.ctx(), dto.CreateInvoiceRequest{
		CustomerID: 42,
		Items:      []dto.LineItemRequest{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoiceCancelReturnsCredit(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	_, err := f.svc.Credits.AddCredit(ctx, c.ID, 500, "")
	require.NoError(t, err)
	inv := f.issuedInvoice(t, c.ID, 2000)

	applied, err := f.svc.Credits.ApplyCreditToInvoice(ctx, inv.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(500), applied.CreditApplied)
	assert.Equal(t, int64(0), f.reloadCustomer(t, c.ID).CreditBalance)

	cancelled, err := f.svc.Invoices.Cancel(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(500), f.reloadCustomer(t, c.ID).CreditBalance)

	_, err = f.svc.Invoices.Cancel(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoiceCancelWithPaymentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	inv := f.issuedInvoice(t, c.ID, 2000)
	_, err := f.svc.Payments.RecordPayment(ctx, dto.RecordPaymentRequest{InvoiceID: inv.ID, Amount: 1000, Method: model.PayMethodManual})
	require.NoError(t, err)

	_, err = f.svc.Invoices.Cancel(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestInvoiceMarkOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	inv := f.issuedInvoice(t, c.ID, 1000)

	marked, err := f.svc.Invoices.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, marked)

	f.now = fixedNow.AddDate(0, 0, 15)
	marked, err = f.svc.Invoices.MarkOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)
	assert.Equal(t, model.InvoiceStatusOverdue, f.reloadInvoice(t, inv.ID).Status)

	// 逾期账单仍可收款
	_, err = f.svc.Payments.RecordPayment(ctx, dto.RecordPaymentRequest{InvoiceID: inv.ID, Amount: 1000, Method: model.PayMethodBankTransfer})
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusPaid, f.reloadInvoice(t, inv.ID).Status)
}

func TestInvoiceGetAllFilters(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	a := f.customer(t, "a@example.com")
	b := f.customer(t, "b@example.com")
	f.issuedInvoice(t, a.ID, 100)
	f.issuedInvoice(t, a.ID, 200)
	f.issuedInvoice(t, b.ID, 300)

	page, err := f.svc.Invoices.GetAll(ctx, dto.InvoiceFilter{CustomerID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)

	page, err = f.svc.Invoices.GetAll(ctx, dto.InvoiceFilter{PaginationRequest: dto.PaginationRequest{Page: 2, PageSize: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)
}

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
func uintPtr(v uint) *uint    { return &v }
