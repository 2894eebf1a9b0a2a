package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type CreateRegistrarRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Kind        string `json:"kind" binding:"required,oneof=generic_http mock"`
	APIEndpoint string `json:"apiEndpoint" binding:"omitempty,url"`
	APIKey      string `json:"apiKey"`
	Active      *bool  `json:"active"`
}

type UpdateRegistrarRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Kind        *string `json:"kind" binding:"omitempty,oneof=generic_http mock"`
	APIEndpoint *string `json:"apiEndpoint" binding:"omitempty,url"`
	APIKey      *string `json:"apiKey"`
	Active      *bool   `json:"active"`
}

type RegistrarResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Kind        string     `json:"kind"`
	APIEndpoint string     `json:"apiEndpoint"`
	Active      bool       `json:"active"`
	LastSyncAt  *time.Time `json:"lastSyncAt"`
}

// API key 不回显
func ToRegistrarResponse(r *model.Registrar) RegistrarResponse {
	return RegistrarResponse{
		ID:          r.ID,
		Name:        r.Name,
		Kind:        r.Kind,
		APIEndpoint: r.APIEndpoint,
		Active:      r.Active,
		LastSyncAt:  r.LastSyncAt,
	}
}

type CreateTldRequest struct {
	Extension          string `json:"extension" binding:"required,tld_extension"`
	Active             *bool  `json:"active"`
	DefaultRegistrarID uint   `json:"defaultRegistrarId"`
}

type UpdateTldRequest struct {
	Active             *bool `json:"active"`
	DefaultRegistrarID *uint `json:"defaultRegistrarId"`
}

type TldResponse struct {
	ID                 uint   `json:"id"`
	Extension          string `json:"extension"`
	Active             bool   `json:"active"`
	DefaultRegistrarID uint   `json:"defaultRegistrarId"`
}

func ToTldResponse(t *model.Tld) TldResponse {
	return TldResponse{
		ID:                 t.ID,
		Extension:          t.Extension,
		Active:             t.Active,
		DefaultRegistrarID: t.DefaultRegistrarID,
	}
}

type TldPriceRequest struct {
	RegistrarID   uint   `json:"registrarId" binding:"required"`
	TldID         uint   `json:"tldId" binding:"required"`
	RegisterPrice int64  `json:"registerPrice" binding:"min=0"`
	RenewPrice    int64  `json:"renewPrice" binding:"min=0"`
	TransferPrice int64  `json:"transferPrice" binding:"min=0"`
	Currency      string `json:"currency" binding:"required,iso_currency"`
}

type TldPriceResponse struct {
	ID            uint       `json:"id"`
	RegistrarID   uint       `json:"registrarId"`
	TldID         uint       `json:"tldId"`
	RegisterPrice int64      `json:"registerPrice"`
	RenewPrice    int64      `json:"renewPrice"`
	TransferPrice int64      `json:"transferPrice"`
	Currency      string     `json:"currency"`
	SyncedAt      *time.Time `json:"syncedAt"`
}

func ToTldPriceResponse(p *model.RegistrarTldPrice) TldPriceResponse {
	return TldPriceResponse{
		ID:            p.ID,
		RegistrarID:   p.RegistrarID,
		TldID:         p.TldID,
		RegisterPrice: p.RegisterPrice,
		RenewPrice:    p.RenewPrice,
		TransferPrice: p.TransferPrice,
		Currency:      p.Currency,
		SyncedAt:      p.SyncedAt,
	}
}

type DomainFilter struct {
	PaginationRequest
	CustomerID uint   `form:"customerId"`
	Status     string `form:"status" binding:"omitempty,oneof=pending active expired transferred cancelled"`
	Search     string `form:"search"`
}

type CreateDomainRequest struct {
	CustomerID        uint     `json:"customerId" binding:"required"`
	Name              string   `json:"name" binding:"required,domain_name"`
	RegistrarID       uint     `json:"registrarId"`
	AutoRenew         bool     `json:"autoRenew"`
	PrivacyProtection bool     `json:"privacyProtection"`
	Nameservers       []string `json:"nameservers" binding:"omitempty,max=13,dive,fqdn"`
}

type UpdateDomainRequest struct {
	CustomerID        *uint   `json:"customerId"`
	RegistrarID       *uint   `json:"registrarId"`
	Status            *string `json:"status" binding:"omitempty,oneof=pending active expired transferred cancelled"`
	AutoRenew         *bool   `json:"autoRenew"`
	PrivacyProtection *bool   `json:"privacyProtection"`
}

type DomainYearsRequest struct {
	Years int `json:"years" binding:"required,min=1,max=10"`
}

type NameserversRequest struct {
	Nameservers []string `json:"nameservers" binding:"required,min=2,max=13,dive,fqdn"`
}

type DomainResponse struct {
	ID                uint       `json:"id"`
	CustomerID        uint       `json:"customerId"`
	Name              string     `json:"name"`
	TldID             uint       `json:"tldId"`
	RegistrarID       uint       `json:"registrarId"`
	Status            string     `json:"status"`
	RegisteredAt      *time.Time `json:"registeredAt"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	AutoRenew         bool       `json:"autoRenew"`
	PrivacyProtection bool       `json:"privacyProtection"`
	Nameservers       []string   `json:"nameservers"`
}

func ToDomainResponse(d *model.Domain) DomainResponse {
	ns := []string(d.Nameservers)
	if ns == nil {
		ns = []string{}
	}
	return DomainResponse{
		ID:                d.ID,
		CustomerID:        d.CustomerID,
		Name:              d.Name,
		TldID:             d.TldID,
		RegistrarID:       d.RegistrarID,
		Status:            d.Status,
		RegisteredAt:      d.RegisteredAt,
		ExpiresAt:         d.ExpiresAt,
		AutoRenew:         d.AutoRenew,
		PrivacyProtection: d.PrivacyProtection,
		Nameservers:       ns,
	}
}

type AvailabilityResponse struct {
	Domain    string `json:"domain"`
	Available bool   `json:"available"`
	Premium   bool   `json:"premium"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
}

type DomainRegistrationResponse struct {
	Domain  DomainResponse  `json:"domain"`
	Invoice InvoiceResponse `json:"invoice"`
}

type PriceSyncResponse struct {
	RegistrarID uint `json:"registrarId"`
	Updated     int  `json:"updated"`
	Created     int  `json:"created"`
	Skipped     int  `json:"skipped"`
}

type TldFilter struct {
	PaginationRequest
	ActiveOnly bool `form:"activeOnly"`
}

type TldPriceFilter struct {
	PaginationRequest
	RegistrarID uint `form:"registrarId"`
}

type AvailabilityRequest struct {
	Name string `form:"name" binding:"required,domain_name"`
}

type ExpiringRequest struct {
	Days int `form:"days,default=30" binding:"min=1,max=365"`
}

// SyncRequest wait=true 时同步执行并直接返回统计, 否则入队
type SyncRequest struct {
	Wait bool `form:"wait"`
}
