package service

import (
	"testing"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/stretchr/testify/suite"
)

type CurrencySuite struct {
	suite.Suite
	f *fixture
}

func (s *CurrencySuite) SetupTest() {
	s.f = newFixture(s.T())
	s.f.seedCurrencies(s.T())
}

func (s *CurrencySuite) eur() *model.Currency {
	c, err := s.f.svc.Currencies.GetByCode(s.f.ctx(), "EUR")
	s.Require().NoError(err)
	return c
}

func (s *CurrencySuite) TestRateIsCachedUntilUpdate() {
	ctx := s.f.ctx()
	svc := s.f.svc.Currencies

	rate, err := svc.Rate(ctx, "eur")
	s.Require().NoError(err)
	s.Equal(int64(920_000), rate)

	cached, ok, err := svc.cache.GetRate(ctx, "EUR")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(920_000), cached)

	newRate := int64(950_000)
	_, err = svc.Update(ctx, s.eur().ID, dto.UpdateCurrencyRequest{ExchangeRate: &newRate})
	s.Require().NoError(err)

	_, ok, err = svc.cache.GetRate(ctx, "EUR")
	s.Require().NoError(err)
	s.False(ok, "update must drop the cached rate")

	rate, err = svc.Rate(ctx, "EUR")
	s.Require().NoError(err)
	s.Equal(newRate, rate)
}

func (s *CurrencySuite) TestBaseRateIsFixed() {
	usd, err := s.f.svc.Currencies.GetByCode(s.f.ctx(), "USD")
	s.Require().NoError(err)
	rate := int64(2)
	_, err = s.f.svc.Currencies.Update(s.f.ctx(), usd.ID, dto.UpdateCurrencyRequest{ExchangeRate: &rate})
	s.ErrorIs(err, ErrValidation)

	off := false
	_, err = s.f.svc.Currencies.Update(s.f.ctx(), usd.ID, dto.UpdateCurrencyRequest{IsBase: &off})
	s.ErrorIs(err, ErrInvalidState)
}

func (s *CurrencySuite) TestSwitchBaseRescalesOthers() {
	ctx := s.f.ctx()
	on := true
	eur, err := s.f.svc.Currencies.Update(ctx, s.eur().ID, dto.UpdateCurrencyRequest{IsBase: &on})
	s.Require().NoError(err)
	s.True(eur.IsBase)
	s.Equal(model.RateScale, eur.ExchangeRate)

	usd, err := s.f.svc.Currencies.GetByCode(ctx, "USD")
	s.Require().NoError(err)
	s.False(usd.IsBase)
	s.Equal(mulDiv(model.RateScale, model.RateScale, 920_000), usd.ExchangeRate)

	rate, err := s.f.svc.Currencies.Rate(ctx, "USD")
	s.Require().NoError(err)
	s.Equal(usd.ExchangeRate, rate)
}

func (s *CurrencySuite) TestDeleteInUse() {
	s.f.customer(s.T(), "euro@example.com", func(r *dto.CreateCustomerRequest) { r.Currency = "EUR" })
	s.ErrorIs(s.f.svc.Currencies.Delete(s.f.ctx(), s.eur().ID), ErrConflict)
}

func TestCurrencySuite(t *testing.T) {
	suite.Run(t, new(CurrencySuite))
}
