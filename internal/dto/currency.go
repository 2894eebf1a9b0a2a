package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type CreateCurrencyRequest struct {
	Code         string `json:"code" binding:"required,iso_currency"`
	Name         string `json:"name" binding:"required,max=100"`
	Symbol       string `json:"symbol" binding:"max=10"`
	ExchangeRate int64  `json:"exchangeRate" binding:"omitempty,gt=0"`
	IsBase       bool   `json:"isBase"`
	Active       *bool  `json:"active"`
}

type UpdateCurrencyRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=100"`
	Symbol       *string `json:"symbol" binding:"omitempty,max=10"`
	ExchangeRate *int64  `json:"exchangeRate" binding:"omitempty,gt=0"`
	IsBase       *bool   `json:"isBase"`
	Active       *bool   `json:"active"`
}

type CurrencyResponse struct {
	ID           uint      `json:"id"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	ExchangeRate int64     `json:"exchangeRate"`
	IsBase       bool      `json:"isBase"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func ToCurrencyResponse(c *model.Currency) CurrencyResponse {
	return CurrencyResponse{
		ID:           c.ID,
		Code:         c.Code,
		Name:         c.Name,
		Symbol:       c.Symbol,
		ExchangeRate: c.ExchangeRate,
		IsBase:       c.IsBase,
		Active:       c.Active,
		UpdatedAt:    c.UpdatedAt,
	}
}

type ConvertRequest struct {
	Amount int64  `form:"amount" binding:"required"`
	From   string `form:"from" binding:"required,iso_currency"`
	To     string `form:"to" binding:"required,iso_currency"`
}

type ConvertResponse struct {
	Amount    int64  `json:"amount"`
	From      string `json:"from"`
	To        string `json:"to"`
	Result    int64  `json:"result"`
	Formatted string `json:"formatted"`
}

type CreateTaxRuleRequest struct {
	Name          string `json:"name" binding:"required,max=100"`
	Country       string `json:"country" binding:"required,iso3166_1_alpha2"`
	State         string `json:"state" binding:"max=100"`
	Rate          int    `json:"rate" binding:"min=0,max=10000"`
	Priority      int    `json:"priority"`
	Compound      bool   `json:"compound"`
	ReverseCharge bool   `json:"reverseCharge"`
	Active        *bool  `json:"active"`
}

type UpdateTaxRuleRequest struct {
	Name          *string `json:"name" binding:"omitempty,max=100"`
	Country       *string `json:"country" binding:"omitempty,iso3166_1_alpha2"`
	State         *string `json:"state" binding:"omitempty,max=100"`
	Rate          *int    `json:"rate" binding:"omitempty,min=0,max=10000"`
	Priority      *int    `json:"priority"`
	Compound      *bool   `json:"compound"`
	ReverseCharge *bool   `json:"reverseCharge"`
	Active        *bool   `json:"active"`
}

type TaxRuleResponse struct {
	ID            uint   `json:"id"`
	Name          string `json:"name"`
	Country       string `json:"country"`
	State         string `json:"state"`
	Rate          int    `json:"rate"`
	Priority      int    `json:"priority"`
	Compound      bool   `json:"compound"`
	ReverseCharge bool   `json:"reverseCharge"`
	Active        bool   `json:"active"`
}

func ToTaxRuleResponse(r *model.TaxRule) TaxRuleResponse {
	return TaxRuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Country:       r.Country,
		State:         r.State,
		Rate:          r.Rate,
		Priority:      r.Priority,
		Compound:      r.Compound,
		ReverseCharge: r.ReverseCharge,
		Active:        r.Active,
	}
}

type CalculateTaxRequest struct {
	CustomerID uint  `json:"customerId" binding:"required"`
	Subtotal   int64 `json:"subtotal" binding:"min=0"`
}

type TaxLine struct {
	Name   string `json:"name"`
	Rate   int    `json:"rate"`
	Amount int64  `json:"amount"`
}

type TaxRuleFilter struct {
	PaginationRequest
	Country string `form:"country" binding:"omitempty,iso3166_1_alpha2"`
}
