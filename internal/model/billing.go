package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	InvoiceStatusDraft     = "draft"
	InvoiceStatusIssued    = "issued"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusRefunded  = "refunded"
)

const (
	ItemTypeDomain  = "domain"
	ItemTypeHosting = "hosting"
	ItemTypeOther   = "other"
)

type Invoice struct {
	gorm.Model
	// 草稿阶段 Number 为空, 签发时分配; 唯一索引允许多个 NULL
	Number        *string `gorm:"uniqueIndex;size:50"`
	CustomerID    uint    `gorm:"index;not null"`
	Status        string  `gorm:"size:20;index;not null"`
	Currency      string  `gorm:"size:3;not null"`
	IssueDate     *time.Time
	DueDate       *time.Time `gorm:"index"`
	PaidAt        *time.Time
	Subtotal      int64  `gorm:"not null;default:0"`
	TaxTotal      int64  `gorm:"not null;default:0"`
	Total         int64  `gorm:"not null;default:0"`
	AmountPaid    int64  `gorm:"not null;default:0"`
	CreditApplied int64  `gorm:"not null;default:0"`
	Notes         string `gorm:"type:text"`

	Items []InvoiceItem `gorm:"constraint:OnDelete:CASCADE"`
	Taxes []InvoiceTax  `gorm:"constraint:OnDelete:CASCADE"`
}

// Balance 未结清金额
func (i *Invoice) Balance() int64 {
	return i.Total - i.AmountPaid - i.CreditApplied
}

// Payable 只有已签发或逾期的账单可以收款
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusIssued || i.Status == InvoiceStatusOverdue
}

type InvoiceItem struct {
	ID          uint   `gorm:"primarykey"`
	InvoiceID   uint   `gorm:"index;not null"`
	Description string `gorm:"size:500;not null"`
	Quantity    int    `gorm:"not null"`
	UnitPrice   int64  `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	ItemType    string `gorm:"size:20;not null"`
	RelatedID   uint   `gorm:"comment:关联的域名或主机账号ID"`
	Taxable     bool
}

type InvoiceTax struct {
	ID        uint   `gorm:"primarykey"`
	InvoiceID uint   `gorm:"index;not null"`
	Name      string `gorm:"size:100"`
	Rate      int
	Amount    int64
}

// NumberSequence 按名称和年份递增的编号序列 (账单号、报价单号)
type NumberSequence struct {
	Name string `gorm:"primaryKey;size:20"`
	Year int    `gorm:"primaryKey"`
	Last int    `gorm:"not null"`
}

const (
	PaymentStatusCompleted         = "completed"
	PaymentStatusFailed            = "failed"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

const (
	PayMethodManual       = "manual"
	PayMethodCard         = "card"
	PayMethodBankTransfer = "bank_transfer"
	PayMethodPaypal       = "paypal"
	PayMethodCredit       = "credit"
)

type Payment struct {
	gorm.Model
	InvoiceID       uint   `gorm:"index;not null"`
	CustomerID      uint   `gorm:"index;not null"`
	PaymentMethodID uint   `gorm:"comment:使用的已保存支付方式, 手工收款为0"`
	Amount          int64  `gorm:"not null"`
	Applied         int64  `gorm:"not null;default:0;comment:计入账单的金额, 超出部分转入客户余额"`
	Currency        string `gorm:"size:3;not null"`
	Method          string `gorm:"size:20;not null"`
	Gateway         string `gorm:"size:50"`
	TransactionRef  string `gorm:"size:255;index"`
	Status          string `gorm:"size:30;index;not null"`
	FailureReason   string `gorm:"type:text"`
	RefundedAmount  int64  `gorm:"not null;default:0"`
	PaidAt          time.Time
}

// Refundable 剩余可退金额
func (p *Payment) Refundable() int64 {
	if p.Status == PaymentStatusFailed {
		return 0
	}
	return p.Amount - p.RefundedAmount
}

// RefundSplit 退款先冲减计入账单的部分, 超出部分对应超额付款转入的余额
func (p *Payment) RefundSplit(amount int64) (fromInvoice, fromCredit int64) {
	remaining := p.Applied - min(p.RefundedAmount, p.Applied)
	fromInvoice = min(amount, remaining)
	return fromInvoice, amount - fromInvoice
}

// processing 只能取消, 不能再确认
const (
	IntentStatusRequiresPayment = "requires_payment"
	IntentStatusProcessing      = "processing"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusCanceled        = "canceled"
)

type PaymentIntent struct {
	gorm.Model
	InvoiceID    uint   `gorm:"index;not null"`
	CustomerID   uint   `gorm:"index;not null"`
	Amount       int64  `gorm:"not null"`
	Currency     string `gorm:"size:3;not null"`
	Status       string `gorm:"size:30;index;not null"`
	ClientSecret string `gorm:"uniqueIndex;size:64;not null"`
	GatewayRef   string `gorm:"size:255"`
	PaymentID    uint
	ExpiresAt    time.Time
}

const (
	RefundStatusCompleted = "completed"
	RefundStatusFailed    = "failed"
)

type Refund struct {
	gorm.Model
	PaymentID  uint   `gorm:"index;not null"`
	InvoiceID  uint   `gorm:"index;not null"`
	Amount     int64  `gorm:"not null"`
	Reason     string `gorm:"type:text"`
	ToCredit   bool
	Status     string `gorm:"size:20;not null"`
	GatewayRef string `gorm:"size:255"`
}

const (
	CreditTypeAdd         = "add"
	CreditTypeApply       = "apply"
	CreditTypeOverpayment = "overpayment"
	CreditTypeRefund      = "refund"
	CreditTypeAdjustment  = "adjustment"
)

// CreditTransaction 余额流水, Amount 为带符号金额
type CreditTransaction struct {
	gorm.Model
	CustomerID  uint   `gorm:"index;not null"`
	Amount      int64  `gorm:"not null"`
	Type        string `gorm:"size:20;not null"`
	InvoiceID   uint   `gorm:"index"`
	Description string `gorm:"size:500"`
}

const (
	QuoteStatusDraft    = "draft"
	QuoteStatusSent     = "sent"
	QuoteStatusAccepted = "accepted"
	QuoteStatusRejected = "rejected"
	QuoteStatusExpired  = "expired"
	QuoteStatusInvoiced = "invoiced"
)

type Quote struct {
	gorm.Model
	Number     string `gorm:"uniqueIndex;size:50;not null"`
	CustomerID uint   `gorm:"index;not null"`
	Subject    string `gorm:"size:255"`
	Status     string `gorm:"size:20;index;not null"`
	Currency   string `gorm:"size:3;not null"`
	ValidUntil time.Time
	Subtotal   int64
	TaxTotal   int64
	Total      int64
	Notes      string `gorm:"type:text"`
	InvoiceID  uint

	Items []QuoteItem `gorm:"constraint:OnDelete:CASCADE"`
}

type QuoteItem struct {
	ID          uint   `gorm:"primarykey"`
	QuoteID     uint   `gorm:"index;not null"`
	Description string `gorm:"size:500;not null"`
	Quantity    int    `gorm:"not null"`
	UnitPrice   int64  `gorm:"not null"`
	Amount      int64  `gorm:"not null"`
	ItemType    string `gorm:"size:20;not null"`
	Taxable     bool
}
