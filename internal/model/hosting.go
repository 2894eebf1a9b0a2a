package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	PanelTypeCpanel = "cpanel"
	PanelTypeMock   = "mock"
)

type HostingServer struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:100;not null"`
	Hostname    string `gorm:"size:253;not null"`
	PanelType   string `gorm:"size:20;not null"`
	APIUser     string `gorm:"size:100"`
	APIToken    string `gorm:"size:255"`
	Port        int
	UseSSL      bool
	MaxAccounts int
	Active      bool
	LastSyncAt  *time.Time
}

type HostingPackage struct {
	gorm.Model
	Name         string `gorm:"size:100;not null"`
	ServerID     uint   `gorm:"index;not null"`
	PanelPlan    string `gorm:"size:100;not null;comment:面板侧套餐名"`
	DiskQuotaMB  int
	BandwidthMB  int
	MonthlyPrice int64  `gorm:"not null"`
	Currency     string `gorm:"size:3;not null"`
	Active       bool
}

const (
	AccountStatusPending    = "pending"
	AccountStatusActive     = "active"
	AccountStatusSuspended  = "suspended"
	AccountStatusTerminated = "terminated"
	AccountStatusRemoved    = "removed"
)

type HostingAccount struct {
	gorm.Model
	// 从面板导入但尚未关联客户的账号 CustomerID 为 0
	CustomerID      uint   `gorm:"index"`
	ServerID        uint   `gorm:"uniqueIndex:idx_server_username;not null"`
	PackageID       uint   `gorm:"index"`
	Username        string `gorm:"uniqueIndex:idx_server_username;size:64;not null"`
	PrimaryDomain   string `gorm:"size:253"`
	Status          string `gorm:"size:20;index;not null"`
	DiskUsedMB      int
	BandwidthUsedMB int
	SuspendReason   string     `gorm:"size:255"`
	NextDueDate     *time.Time `gorm:"index"`
	LastSyncedAt    *time.Time

	EmailAccounts []HostingEmailAccount `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	AddonDomains  []HostingAddonDomain  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
}

type HostingEmailAccount struct {
	ID        uint   `gorm:"primarykey"`
	AccountID uint   `gorm:"index;not null"`
	Address   string `gorm:"size:255;not null"`
	QuotaMB   int
	UsedMB    int
}

const (
	AddonKindAddon  = "addon"
	AddonKindParked = "parked"
	AddonKindSub    = "sub"
)

type HostingAddonDomain struct {
	ID        uint   `gorm:"primarykey"`
	AccountID uint   `gorm:"index;not null"`
	Domain    string `gorm:"size:253;not null"`
	Kind      string `gorm:"size:20;not null"`
}
