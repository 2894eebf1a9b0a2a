package model

import (
	"strings"

	"gorm.io/gorm"
)

const (
	CustomerStatusActive    = "active"
	CustomerStatusSuspended = "suspended"
	CustomerStatusClosed    = "closed"
)

type Customer struct {
	gorm.Model
	FirstName   string `gorm:"size:100"`
	LastName    string `gorm:"size:100"`
	CompanyName string `gorm:"size:255"`
	Email       string `gorm:"uniqueIndex;size:255;not null;comment:联系邮箱, 小写存储"`
	Phone       string `gorm:"size:50"`
	Address1    string `gorm:"size:255"`
	Address2    string `gorm:"size:255"`
	City        string `gorm:"size:100"`
	State       string `gorm:"size:100"`
	PostalCode  string `gorm:"size:20"`
	Country     string `gorm:"size:2;index;comment:ISO 3166-1 alpha-2"`
	VATNumber   string `gorm:"size:64;comment:增值税号, 用于反向征税判断"`
	Currency    string `gorm:"size:3;not null"`
	Status      string `gorm:"size:20;index;not null"`
	Notes       string `gorm:"type:text"`
	// 账户余额 (最小货币单位), 由 credit_transactions 汇总得到, 不允许为负
	CreditBalance int64 `gorm:"not null;default:0"`
}

// DisplayName 优先使用公司名
func (c *Customer) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

const (
	PaymentMethodCard        = "card"
	PaymentMethodBankAccount = "bank_account"
	PaymentMethodPaypal      = "paypal"
)

// CustomerPaymentMethod 客户保存的支付方式, 真实卡号只保存在网关侧
type CustomerPaymentMethod struct {
	gorm.Model
	CustomerID   uint   `gorm:"index;not null"`
	Type         string `gorm:"size:20;not null"`
	Label        string `gorm:"size:100"`
	Brand        string `gorm:"size:50"`
	Last4        string `gorm:"size:4"`
	ExpMonth     int
	ExpYear      int
	GatewayToken string `gorm:"size:255;comment:网关侧的支付方式令牌"`
	IsDefault    bool   `gorm:"index"`
}
