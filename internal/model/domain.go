package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RegistrarKindHTTP = "generic_http"
	RegistrarKindMock = "mock"
)

type Registrar struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;size:100;not null"`
	Kind        string `gorm:"size:30;not null;comment:客户端实现类型"`
	APIEndpoint string `gorm:"size:500"`
	APIKey      string `gorm:"size:255"`
	Active      bool
	LastSyncAt  *time.Time
}

// Tld 顶级域, Extension 形如 ".com"
type Tld struct {
	gorm.Model
	Extension          string `gorm:"uniqueIndex;size:63;not null"`
	Active             bool
	DefaultRegistrarID uint
}

type RegistrarTldPrice struct {
	gorm.Model
	RegistrarID   uint   `gorm:"uniqueIndex:idx_registrar_tld;not null"`
	TldID         uint   `gorm:"uniqueIndex:idx_registrar_tld;not null"`
	RegisterPrice int64  `gorm:"not null"`
	RenewPrice    int64  `gorm:"not null"`
	TransferPrice int64  `gorm:"not null"`
	Currency      string `gorm:"size:3;not null"`
	SyncedAt      *time.Time
}

const (
	DomainStatusPending     = "pending"
	DomainStatusActive      = "active"
	DomainStatusExpired     = "expired"
	DomainStatusTransferred = "transferred"
	DomainStatusCancelled   = "cancelled"
)

type Domain struct {
	gorm.Model
	CustomerID        uint   `gorm:"index;not null"`
	Name              string `gorm:"uniqueIndex;size:253;not null;comment:完整域名, 小写"`
	TldID             uint   `gorm:"index;not null"`
	RegistrarID       uint   `gorm:"index"`
	Status            string `gorm:"size:20;index;not null"`
	RegisteredAt      *time.Time
	ExpiresAt         *time.Time `gorm:"index"`
	AutoRenew         bool
	PrivacyProtection bool
	Nameservers       StringList `gorm:"type:jsonb"`
}

const (
	RecordTypeA     = "A"
	RecordTypeAAAA  = "AAAA"
	RecordTypeCNAME = "CNAME"
	RecordTypeMX    = "MX"
	RecordTypeTXT   = "TXT"
	RecordTypeNS    = "NS"
	RecordTypeSRV   = "SRV"
	RecordTypeCAA   = "CAA"
)

type DnsZone struct {
	gorm.Model
	Name       string `gorm:"uniqueIndex;size:253;not null"`
	CustomerID uint   `gorm:"index;not null"`
	DomainID   uint   `gorm:"index"`
	PrimaryNS  string `gorm:"size:253;not null"`
	AdminEmail string `gorm:"size:255;not null"`
	Serial     uint32 `gorm:"not null"`
	Refresh    int    `gorm:"not null"`
	Retry      int    `gorm:"not null"`
	Expire     int    `gorm:"not null"`
	MinimumTTL int    `gorm:"not null"`

	Records []DnsRecord `gorm:"foreignKey:ZoneID;constraint:OnDelete:CASCADE"`
}

type DnsRecord struct {
	gorm.Model
	ZoneID   uint   `gorm:"index;not null"`
	Name     string `gorm:"size:253;not null;comment:相对名, 根为 @"`
	Type     string `gorm:"size:10;not null"`
	Content  string `gorm:"type:text;not null"`
	TTL      int    `gorm:"not null"`
	Priority int
}
