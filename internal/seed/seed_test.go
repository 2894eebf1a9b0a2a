package seed

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/service"
	"github.com/isp-backoffice/internal/testutil"
	"github.com/isp-backoffice/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServices(t *testing.T) *service.Services {
	t.Helper()
	return service.New(service.Options{
		DB:      testutil.NewDB(t),
		Billing: config.BillingConfig{BaseCurrency: "USD", HomeCountry: "US", InvoicePrefix: "INV", QuotePrefix: "QUO", PaymentTermsDays: 14, QuoteValidDays: 30},
	})
}

func TestLoad(t *testing.T) {
	t.Run("empty file", func(t *testing.T) {
		f, err := Load(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, f.Currencies)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err := Load(strings.NewReader("currencies:\n  - code: USD\n    colour: green\n"))
		assert.Error(t, err)
	})
}

func TestApplyExampleIsIdempotent(t *testing.T) {
	fh, err := os.Open("../../config/seed.example.yaml")
	require.NoError(t, err)
	defer fh.Close()
	f, err := Load(fh)
	require.NoError(t, err)

	svc := newServices(t)
	ctx := context.Background()

	res, err := Apply(ctx, svc, f)
	require.NoError(t, err)
	assert.Equal(t, Count{Created: 3}, res.Currencies)
	assert.Equal(t, Count{Created: 2}, res.TaxRules)
	assert.Equal(t, Count{Created: 1}, res.Registrars)
	assert.Equal(t, Count{Created: 3}, res.Tlds)
	assert.Equal(t, Count{Created: 3}, res.Prices)
	assert.Equal(t, Count{Created: 1}, res.Servers)
	assert.Equal(t, Count{Created: 2}, res.Packages)

	base, err := svc.Currencies.GetByCode(ctx, "USD")
	require.NoError(t, err)
	assert.True(t, base.IsBase)

	again, err := Apply(ctx, svc, f)
	require.NoError(t, err)
	assert.Equal(t, Count{Skipped: 3}, again.Currencies)
	assert.Equal(t, Count{Skipped: 2}, again.TaxRules)
	assert.Equal(t, Count{Skipped: 1}, again.Registrars)
	assert.Equal(t, Count{Skipped: 3}, again.Tlds)
	assert.Equal(t, Count{Skipped: 1}, again.Servers)
	assert.Equal(t, Count{Skipped: 2}, again.Packages)

	// 价格覆盖写入, 不产生重复
	prices, err := svc.Registrars.GetAllPrices(ctx, dto.PaginationRequest{Page: 1, PageSize: 100}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, prices.Total)
}

func TestApplyUpdatesPrices(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	doc := `
currencies:
  - {code: USD, name: US Dollar, base: true}
registrars:
  - name: Sandbox
    kind: mock
    tlds:
      - {extension: .org, register: 900, renew: 900, transfer: 900, currency: usd}
`
	f, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	_, err = Apply(ctx, svc, f)
	require.NoError(t, err)

	f.Registrars[0].Tlds[0].Renew = 1100
	_, err = Apply(ctx, svc, f)
	require.NoError(t, err)

	prices, err := svc.Registrars.GetAllPrices(ctx, dto.PaginationRequest{Page: 1, PageSize: 10}, 0)
	require.NoError(t, err)
	require.Len(t, prices.Items, 1)
	assert.EqualValues(t, 1100, prices.Items[0].RenewPrice)
	assert.Equal(t, "USD", prices.Items[0].Currency)
}

func TestApplyRejectsInvalidEntries(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()

	t.Run("unknown currency", func(t *testing.T) {
		f := &File{Currencies: []Currency{{Code: "XYZ", Name: "Nothing", Rate: 1}}}
		_, err := Apply(ctx, svc, f)
		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrValidation))
		assert.Contains(t, err.Error(), "currencies")
	})

	t.Run("unknown panel", func(t *testing.T) {
		f := &File{Servers: []Server{{Name: "web09", Hostname: "web09.example.net", Panel: "plesk"}}}
		_, err := Apply(ctx, svc, f)
		require.Error(t, err)
		assert.True(t, errors.Is(err, service.ErrValidation))
	})

	t.Run("package on missing currency code", func(t *testing.T) {
		f := &File{Servers: []Server{{
			Name: "web10", Hostname: "web10.example.net", Panel: "mock",
			Packages: []Package{{Name: "Tiny", Plan: "tiny"}},
		}}}
		res, err := Apply(ctx, svc, f)
		require.Error(t, err)
		// 服务器已创建, 失败停在套餐
		assert.Equal(t, 1, res.Servers.Created)
		assert.Zero(t, res.Packages.Created)
	})
}
