package model

import "gorm.io/gorm"

// RateScale 汇率的定点精度, 1 个基准货币单位 = ExchangeRate/RateScale 个本币单位
const RateScale int64 = 1_000_000

type Currency struct {
	gorm.Model
	Code         string `gorm:"uniqueIndex;size:3;not null;comment:ISO 4217"`
	Name         string `gorm:"size:100"`
	Symbol       string `gorm:"size:10"`
	ExchangeRate int64  `gorm:"not null"`
	IsBase       bool
	Active       bool
}

// TaxRule 按国家/地区匹配的税率, Rate 单位为基点 (1bp = 0.01%)
type TaxRule struct {
	gorm.Model
	Name          string `gorm:"size:100;not null"`
	Country       string `gorm:"size:2;index;not null"`
	State         string `gorm:"size:100"`
	Rate          int    `gorm:"not null"`
	Priority      int    `gorm:"not null;default:0"`
	Compound      bool
	ReverseCharge bool `gorm:"comment:跨境 B2B 且客户有税号时免征"`
	Active        bool
}
