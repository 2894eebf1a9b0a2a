package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type DnsZoneFilter struct {
	PaginationRequest
	CustomerID uint   `form:"customerId"`
	Search     string `form:"search"`
}

type CreateDnsZoneRequest struct {
	Name       string `json:"name" binding:"required,domain_name"`
	CustomerID uint   `json:"customerId" binding:"required"`
	DomainID   uint   `json:"domainId"`
	PrimaryNS  string `json:"primaryNs" binding:"required,fqdn"`
	AdminEmail string `json:"adminEmail" binding:"required,email"`
	Refresh    int    `json:"refresh" binding:"omitempty,min=60"`
	Retry      int    `json:"retry" binding:"omitempty,min=60"`
	Expire     int    `json:"expire" binding:"omitempty,min=60"`
	MinimumTTL int    `json:"minimumTtl" binding:"omitempty,min=60"`
}

type UpdateDnsZoneRequest struct {
	PrimaryNS  *string `json:"primaryNs" binding:"omitempty,fqdn"`
	AdminEmail *string `json:"adminEmail" binding:"omitempty,email"`
	Refresh    *int    `json:"refresh" binding:"omitempty,min=60"`
	Retry      *int    `json:"retry" binding:"omitempty,min=60"`
	Expire     *int    `json:"expire" binding:"omitempty,min=60"`
	MinimumTTL *int    `json:"minimumTtl" binding:"omitempty,min=60"`
}

type DnsZoneResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	CustomerID  uint      `json:"customerId"`
	DomainID    uint      `json:"domainId"`
	PrimaryNS   string    `json:"primaryNs"`
	AdminEmail  string    `json:"adminEmail"`
	Serial      uint32    `json:"serial"`
	Refresh     int       `json:"refresh"`
	Retry       int       `json:"retry"`
	Expire      int       `json:"expire"`
	MinimumTTL  int       `json:"minimumTtl"`
	RecordCount int       `json:"recordCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func ToDnsZoneResponse(z *model.DnsZone) DnsZoneResponse {
	return DnsZoneResponse{
		ID:          z.ID,
		Name:        z.Name,
		CustomerID:  z.CustomerID,
		DomainID:    z.DomainID,
		PrimaryNS:   z.PrimaryNS,
		AdminEmail:  z.AdminEmail,
		Serial:      z.Serial,
		Refresh:     z.Refresh,
		Retry:       z.Retry,
		Expire:      z.Expire,
		MinimumTTL:  z.MinimumTTL,
		RecordCount: len(z.Records),
		UpdatedAt:   z.UpdatedAt,
	}
}

type DnsRecordRequest struct {
	Name    string `json:"name" binding:"required,max=253"`
	Type    string `json:"type" binding:"required,dns_type"`
	Content string `json:"content" binding:"required"`
	TTL     int    `json:"ttl" binding:"omitempty,min=60"`
	// MX 与 SRV 必填
	Priority *int `json:"priority" binding:"omitempty,min=0,max=65535"`
}

type DnsRecordResponse struct {
	ID       uint   `json:"id"`
	ZoneID   uint   `json:"zoneId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Content  string `json:"content"`
	TTL      int    `json:"ttl"`
	Priority int    `json:"priority"`
}

func ToDnsRecordResponse(r *model.DnsRecord) DnsRecordResponse {
	return DnsRecordResponse{
		ID:       r.ID,
		ZoneID:   r.ZoneID,
		Name:     r.Name,
		Type:     r.Type,
		Content:  r.Content,
		TTL:      r.TTL,
		Priority: r.Priority,
	}
}
