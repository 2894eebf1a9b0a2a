package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type CustomerFilter struct {
	PaginationRequest
	Search string `form:"search"`
	Status string `form:"status" binding:"omitempty,oneof=active suspended closed"`
}

type CreateCustomerRequest struct {
	FirstName   string `json:"firstName" binding:"required_without=CompanyName,max=100"`
	LastName    string `json:"lastName" binding:"max=100"`
	CompanyName string `json:"companyName" binding:"max=255"`
	Email       string `json:"email" binding:"required,email"`
	Phone       string `json:"phone" binding:"max=50"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode" binding:"max=20"`
	Country     string `json:"country" binding:"required,iso3166_1_alpha2"`
	VATNumber   string `json:"vatNumber" binding:"max=64"`
	Currency    string `json:"currency" binding:"omitempty,iso_currency"`
	Notes       string `json:"notes"`
}

// UpdateCustomerRequest 指针字段为 nil 表示不修改
type UpdateCustomerRequest struct {
	FirstName   *string `json:"firstName" binding:"omitempty,max=100"`
	LastName    *string `json:"lastName" binding:"omitempty,max=100"`
	CompanyName *string `json:"companyName" binding:"omitempty,max=255"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone"`
	Address1    *string `json:"address1"`
	Address2    *string `json:"address2"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	PostalCode  *string `json:"postalCode"`
	Country     *string `json:"country" binding:"omitempty,iso3166_1_alpha2"`
	VATNumber   *string `json:"vatNumber"`
	Currency    *string `json:"currency" binding:"omitempty,iso_currency"`
	Status      *string `json:"status" binding:"omitempty,oneof=active suspended closed"`
	Notes       *string `json:"notes"`
}

type CustomerResponse struct {
	ID            uint      `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	CompanyName   string    `json:"companyName"`
	DisplayName   string    `json:"displayName"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address1      string    `json:"address1"`
	Address2      string    `json:"address2"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	PostalCode    string    `json:"postalCode"`
	Country       string    `json:"country"`
	VATNumber     string    `json:"vatNumber"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes"`
	CreditBalance int64     `json:"creditBalance"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func ToCustomerResponse(c *model.Customer) CustomerResponse {
	return CustomerResponse{
		ID:            c.ID,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		CompanyName:   c.CompanyName,
		DisplayName:   c.DisplayName(),
		Email:         c.Email,
		Phone:         c.Phone,
		Address1:      c.Address1,
		Address2:      c.Address2,
		City:          c.City,
		State:         c.State,
		PostalCode:    c.PostalCode,
		Country:       c.Country,
		VATNumber:     c.VATNumber,
		Currency:      c.Currency,
		Status:        c.Status,
		Notes:         c.Notes,
		CreditBalance: c.CreditBalance,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

type CreatePaymentMethodRequest struct {
	Type         string `json:"type" binding:"required,oneof=card bank_account paypal"`
	Label        string `json:"label" binding:"max=100"`
	Brand        string `json:"brand" binding:"max=50"`
	Last4        string `json:"last4" binding:"omitempty,len=4,numeric"`
	ExpMonth     int    `json:"expMonth" binding:"omitempty,min=1,max=12"`
	ExpYear      int    `json:"expYear" binding:"omitempty,min=2000,max=2100"`
	GatewayToken string `json:"gatewayToken" binding:"required"`
	IsDefault    bool   `json:"isDefault"`
}

type UpdatePaymentMethodRequest struct {
	Label    *string `json:"label" binding:"omitempty,max=100"`
	ExpMonth *int    `json:"expMonth" binding:"omitempty,min=1,max=12"`
	ExpYear  *int    `json:"expYear" binding:"omitempty,min=2000,max=2100"`
}

type PaymentMethodResponse struct {
	ID         uint      `json:"id"`
	CustomerID uint      `json:"customerId"`
	Type       string    `json:"type"`
	Label      string    `json:"label"`
	Brand      string    `json:"brand"`
	Last4      string    `json:"last4"`
	ExpMonth   int       `json:"expMonth"`
	ExpYear    int       `json:"expYear"`
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// 网关令牌不对外返回
func ToPaymentMethodResponse(m *model.CustomerPaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Type:       m.Type,
		Label:      m.Label,
		Brand:      m.Brand,
		Last4:      m.Last4,
		ExpMonth:   m.ExpMonth,
		ExpYear:    m.ExpYear,
		IsDefault:  m.IsDefault,
		CreatedAt:  m.CreatedAt,
	}
}
