package service

import (
	"testing"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuote(t *testing.T, f *fixture, customerID uint) *model.Quote {
	t.Helper()
	q, err := f.svc.Quotes.Create(f.ctx(), dto.CreateQuoteRequest{
		CustomerID: customerID,
		Subject:    "Website migration",
		Items: []dto.LineItemRequest{
			{Description: "Migration", Quantity: 1, UnitPrice: 5000},
			{Description: "Hosting (12 months)", Quantity: 12, UnitPrice: 500, ItemType: model.ItemTypeHosting},
		},
	})
	require.NoError(t, err)
	return q
}

func TestQuoteAcceptAndConvert(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	_, err := f.svc.Taxes.Create(ctx, dto.CreateTaxRuleRequest{Name: "Sales tax", Country: "US", Rate: 1000})
	require.NoError(t, err)
	c := f.customer(t, "ada@example.com")

	q := newQuote(t, f, c.ID)
	assert.Equal(t, "QUO-2025-00001", q.Number)
	assert.Equal(t, model.QuoteStatusDraft, q.Status)
	assert.Equal(t, int64(11_000), q.Subtotal)
	assert.Equal(t, int64(1_100), q.TaxTotal)
	assert.Equal(t, time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), q.ValidUntil.Truncate(24*time.Hour))

	_, err = f.svc.Quotes.Accept(ctx, q.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "draft quotes must be sent first")

	sent, err := f.svc.Quotes.Send(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusSent, sent.Status)
	assert.Len(t, f.emailsWithTemplate(t, TemplateQuoteSent), 1)

	accepted, err := f.svc.Quotes.Accept(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusAccepted, accepted.Status)
	assert.ErrorIs(t, f.svc.Quotes.Delete(ctx, q.ID), ErrInvalidState)

	inv, err := f.svc.Quotes.ConvertToInvoice(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, q.Total, inv.Total)
	assert.Len(t, inv.Items, 2)
	assert.Equal(t, "Quote QUO-2025-00001", inv.Notes)

	got, err := f.svc.Quotes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusInvoiced, got.Status)
	assert.Equal(t, inv.ID, got.InvoiceID)

	_, err = f.svc.Quotes.ConvertToInvoice(ctx, q.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestQuoteAcceptAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	q := newQuote(t, f, c.ID)
	_, err := f.svc.Quotes.Send(ctx, q.ID)
	require.NoError(t, err)

	f.now = fixedNow.AddDate(0, 0, 31)
	_, err = f.svc.Quotes.Accept(ctx, q.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	got, err := f.svc.Quotes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusExpired, got.Status)
}

func TestQuoteExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	sent := newQuote(t, f, c.ID)
	_, err := f.svc.Quotes.Send(ctx, sent.ID)
	require.NoError(t, err)
	draft := newQuote(t, f, c.ID)

	f.now = fixedNow.AddDate(0, 1, 0)
	n, err := f.svc.Quotes.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.svc.Quotes.GetByID(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusDraft, got.Status)
}

func TestQuoteUpdateAndReject(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()
	c := f.customer(t, "ada@example.com")
	q := newQuote(t, f, c.ID)

	updated, err := f.svc.Quotes.Update(ctx, q.ID, dto.UpdateQuoteRequest{
		Subject: strPtr("Migration only"),
		Items:   []dto.LineItemRequest{{Description: "Migration", Quantity: 1, UnitPrice: 4000}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Migration only", updated.Subject)
	assert.Equal(t, int64(4000), updated.Total)

	_, err = f.svc.Quotes.Create(ctx, dto.CreateQuoteRequest{
		CustomerID: c.ID,
		ValidUntil: timePtr(fixedNow.Add(-time.Hour)),
		Items:      []dto.LineItemRequest{{Description: "x", Quantity: 1, UnitPrice: 1}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Quotes.Send(ctx, q.ID)
	require.NoError(t, err)
	rejected, err := f.svc.Quotes.Reject(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStatusRejected, rejected.Status)

	_, err = f.svc.Quotes.Update(ctx, q.ID, dto.UpdateQuoteRequest{Subject: strPtr("again")})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func timePtr(v time.Time) *time.Time { return &v }
