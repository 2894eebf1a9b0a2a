package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type CreateHostingServerRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Hostname    string `json:"hostname" binding:"required,max=253"`
	PanelType   string `json:"panelType" binding:"required,oneof=cpanel mock"`
	APIUser     string `json:"apiUser" binding:"max=100"`
	APIToken    string `json:"apiToken"`
	Port        int    `json:"port" binding:"omitempty,min=1,max=65535"`
	UseSSL      *bool  `json:"useSsl"`
	MaxAccounts int    `json:"maxAccounts" binding:"min=0"`
	Active      *bool  `json:"active"`
}

type UpdateHostingServerRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=100"`
	Hostname    *string `json:"hostname" binding:"omitempty,max=253"`
	PanelType   *string `json:"panelType" binding:"omitempty,oneof=cpanel mock"`
	APIUser     *string `json:"apiUser"`
	APIToken    *string `json:"apiToken"`
	Port        *int    `json:"port" binding:"omitempty,min=1,max=65535"`
	UseSSL      *bool   `json:"useSsl"`
	MaxAccounts *int    `json:"maxAccounts" binding:"omitempty,min=0"`
	Active      *bool   `json:"active"`
}

type HostingServerResponse struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Hostname    string     `json:"hostname"`
	PanelType   string     `json:"panelType"`
	APIUser     string     `json:"apiUser"`
	Port        int        `json:"port"`
	UseSSL      bool       `json:"useSsl"`
	MaxAccounts int        `json:"maxAccounts"`
	Active      bool       `json:"active"`
	LastSyncAt  *time.Time `json:"lastSyncAt"`
}

func ToHostingServerResponse(s *model.HostingServer) HostingServerResponse {
	return HostingServerResponse{
		ID:          s.ID,
		Name:        s.Name,
		Hostname:    s.Hostname,
		PanelType:   s.PanelType,
		APIUser:     s.APIUser,
		Port:        s.Port,
		UseSSL:      s.UseSSL,
		MaxAccounts: s.MaxAccounts,
		Active:      s.Active,
		LastSyncAt:  s.LastSyncAt,
	}
}

type CreateHostingPackageRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	ServerID     uint   `json:"serverId" binding:"required"`
	PanelPlan    string `json:"panelPlan" binding:"required,max=100"`
	DiskQuotaMB  int    `json:"diskQuotaMb" binding:"min=0"`
	BandwidthMB  int    `json:"bandwidthMb" binding:"min=0"`
	MonthlyPrice int64  `json:"monthlyPrice" binding:"min=0"`
	Currency     string `json:"currency" binding:"required,iso_currency"`
	Active       *bool  `json:"active"`
}

type UpdateHostingPackageRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=100"`
	PanelPlan    *string `json:"panelPlan" binding:"omitempty,max=100"`
	DiskQuotaMB  *int    `json:"diskQuotaMb" binding:"omitempty,min=0"`
	BandwidthMB  *int    `json:"bandwidthMb" binding:"omitempty,min=0"`
	MonthlyPrice *int64  `json:"monthlyPrice" binding:"omitempty,min=0"`
	Currency     *string `json:"currency" binding:"omitempty,iso_currency"`
	Active       *bool   `json:"active"`
}

type HostingPackageResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	ServerID     uint   `json:"serverId"`
	PanelPlan    string `json:"panelPlan"`
	DiskQuotaMB  int    `json:"diskQuotaMb"`
	BandwidthMB  int    `json:"bandwidthMb"`
	MonthlyPrice int64  `json:"monthlyPrice"`
	Currency     string `json:"currency"`
	Active       bool   `json:"active"`
}

func ToHostingPackageResponse(p *model.HostingPackage) HostingPackageResponse {
	return HostingPackageResponse{
		ID:           p.ID,
		Name:         p.Name,
		ServerID:     p.ServerID,
		PanelPlan:    p.PanelPlan,
		DiskQuotaMB:  p.DiskQuotaMB,
		BandwidthMB:  p.BandwidthMB,
		MonthlyPrice: p.MonthlyPrice,
		Currency:     p.Currency,
		Active:       p.Active,
	}
}

type HostingAccountFilter struct {
	PaginationRequest
	CustomerID uint   `form:"customerId"`
	ServerID   uint   `form:"serverId"`
	Status     string `form:"status" binding:"omitempty,oneof=pending active suspended terminated removed"`
	Search     string `form:"search"`
}

type CreateHostingAccountRequest struct {
	CustomerID    uint       `json:"customerId" binding:"required"`
	ServerID      uint       `json:"serverId" binding:"required"`
	PackageID     uint       `json:"packageId" binding:"required"`
	Username      string     `json:"username" binding:"required,alphanum,min=1,max=16"`
	PrimaryDomain string     `json:"primaryDomain" binding:"required,domain_name"`
	NextDueDate   *time.Time `json:"nextDueDate"`
}

type UpdateHostingAccountRequest struct {
	CustomerID    *uint      `json:"customerId"`
	PrimaryDomain *string    `json:"primaryDomain" binding:"omitempty,domain_name"`
	NextDueDate   *time.Time `json:"nextDueDate"`
}

type ProvisionAccountRequest struct {
	Password string `json:"password" binding:"required,min=8,max=64"`
}

type SuspendAccountRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

type ChangePackageRequest struct {
	PackageID uint `json:"packageId" binding:"required"`
}

type HostingEmailAccountResponse struct {
	Address string `json:"address"`
	QuotaMB int    `json:"quotaMb"`
	UsedMB  int    `json:"usedMb"`
}

type HostingAddonDomainResponse struct {
	Domain string `json:"domain"`
	Kind   string `json:"kind"`
}

type HostingAccountResponse struct {
	ID              uint                          `json:"id"`
	CustomerID      uint                          `json:"customerId"`
	ServerID        uint                          `json:"serverId"`
	PackageID       uint                          `json:"packageId"`
	Username        string                        `json:"username"`
	PrimaryDomain   string                        `json:"primaryDomain"`
	Status          string                        `json:"status"`
	DiskUsedMB      int                           `json:"diskUsedMb"`
	BandwidthUsedMB int                           `json:"bandwidthUsedMb"`
	SuspendReason   string                        `json:"suspendReason"`
	NextDueDate     *time.Time                    `json:"nextDueDate"`
	LastSyncedAt    *time.Time                    `json:"lastSyncedAt"`
	EmailAccounts   []HostingEmailAccountResponse `json:"emailAccounts,omitempty"`
	AddonDomains    []HostingAddonDomainResponse  `json:"addonDomains,omitempty"`
}

func ToHostingAccountResponse(a *model.HostingAccount) HostingAccountResponse {
	resp := HostingAccountResponse{
		ID:              a.ID,
		CustomerID:      a.CustomerID,
		ServerID:        a.ServerID,
		PackageID:       a.PackageID,
		Username:        a.Username,
		PrimaryDomain:   a.PrimaryDomain,
		Status:          a.Status,
		DiskUsedMB:      a.DiskUsedMB,
		BandwidthUsedMB: a.BandwidthUsedMB,
		SuspendReason:   a.SuspendReason,
		NextDueDate:     a.NextDueDate,
		LastSyncedAt:    a.LastSyncedAt,
	}
	for _, e := range a.EmailAccounts {
		resp.EmailAccounts = append(resp.EmailAccounts, HostingEmailAccountResponse{Address: e.Address, QuotaMB: e.QuotaMB, UsedMB: e.UsedMB})
	}
	for _, d := range a.AddonDomains {
		resp.AddonDomains = append(resp.AddonDomains, HostingAddonDomainResponse{Domain: d.Domain, Kind: d.Kind})
	}
	return resp
}

type SyncResultResponse struct {
	Servers int `json:"servers"`
	Failed  int `json:"failed"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Emails  int `json:"emails"`
	Domains int `json:"domains"`
}

// EnqueuedResponse 异步任务已入队
type EnqueuedResponse struct {
	TaskID string `json:"taskId"`
	Queue  string `json:"queue"`
}

type HostingPackageFilter struct {
	PaginationRequest
	ServerID uint `form:"serverId"`
}

type ProvisionResponse struct {
	Account HostingAccountResponse `json:"account"`
	Invoice InvoiceResponse        `json:"invoice"`
}
