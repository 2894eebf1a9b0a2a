package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type PaymentFilter struct {
	PaginationRequest
	CustomerID uint `form:"customerId"`
	InvoiceID  uint `form:"invoiceId"`
}

type RecordPaymentRequest struct {
	InvoiceID      uint   `json:"invoiceId" binding:"required"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Method         string `json:"method" binding:"required,oneof=manual card bank_transfer paypal"`
	TransactionRef string `json:"transactionRef" binding:"max=255"`
}

type ChargeRequest struct {
	InvoiceID       uint `json:"invoiceId" binding:"required"`
	PaymentMethodID uint `json:"paymentMethodId" binding:"required"`
}

type PaymentResponse struct {
	ID              uint      `json:"id"`
	InvoiceID       uint      `json:"invoiceId"`
	CustomerID      uint      `json:"customerId"`
	PaymentMethodID uint      `json:"paymentMethodId"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Method          string    `json:"method"`
	Gateway         string    `json:"gateway"`
	TransactionRef  string    `json:"transactionRef"`
	Status          string    `json:"status"`
	FailureReason   string    `json:"failureReason,omitempty"`
	RefundedAmount  int64     `json:"refundedAmount"`
	PaidAt          time.Time `json:"paidAt"`
}

func ToPaymentResponse(p *model.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		CustomerID:      p.CustomerID,
		PaymentMethodID: p.PaymentMethodID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Method:          p.Method,
		Gateway:         p.Gateway,
		TransactionRef:  p.TransactionRef,
		Status:          p.Status,
		FailureReason:   p.FailureReason,
		RefundedAmount:  p.RefundedAmount,
		PaidAt:          p.PaidAt,
	}
}

type CreatePaymentIntentRequest struct {
	InvoiceID uint `json:"invoiceId" binding:"required"`
}

type ConfirmPaymentIntentRequest struct {
	GatewayRef string `json:"gatewayRef" binding:"required,max=255"`
}

type PaymentIntentResponse struct {
	ID           uint      `json:"id"`
	InvoiceID    uint      `json:"invoiceId"`
	CustomerID   uint      `json:"customerId"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	ClientSecret string    `json:"clientSecret"`
	GatewayRef   string    `json:"gatewayRef"`
	PaymentID    uint      `json:"paymentId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func ToPaymentIntentResponse(p *model.PaymentIntent) PaymentIntentResponse {
	return PaymentIntentResponse{
		ID:           p.ID,
		InvoiceID:    p.InvoiceID,
		CustomerID:   p.CustomerID,
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       p.Status,
		ClientSecret: p.ClientSecret,
		GatewayRef:   p.GatewayRef,
		PaymentID:    p.PaymentID,
		ExpiresAt:    p.ExpiresAt,
	}
}

type CreateRefundRequest struct {
	PaymentID uint   `json:"paymentId" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"max=1000"`
	ToCredit  bool   `json:"toCredit"`
}

type RefundResponse struct {
	ID         uint      `json:"id"`
	PaymentID  uint      `json:"paymentId"`
	InvoiceID  uint      `json:"invoiceId"`
	Amount     int64     `json:"amount"`
	Reason     string    `json:"reason"`
	ToCredit   bool      `json:"toCredit"`
	Status     string    `json:"status"`
	GatewayRef string    `json:"gatewayRef"`
	CreatedAt  time.Time `json:"createdAt"`
}

func ToRefundResponse(r *model.Refund) RefundResponse {
	return RefundResponse{
		ID:         r.ID,
		PaymentID:  r.PaymentID,
		InvoiceID:  r.InvoiceID,
		Amount:     r.Amount,
		Reason:     r.Reason,
		ToCredit:   r.ToCredit,
		Status:     r.Status,
		GatewayRef: r.GatewayRef,
		CreatedAt:  r.CreatedAt,
	}
}

type AddCreditRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"max=500"`
}

type ApplyCreditRequest struct {
	InvoiceID uint  `json:"invoiceId" binding:"required"`
	Amount    int64 `json:"amount" binding:"min=0"`
}

type CreditBalanceResponse struct {
	CustomerID uint   `json:"customerId"`
	Balance    int64  `json:"balance"`
	Currency   string `json:"currency"`
}

type CreditTransactionResponse struct {
	ID          uint      `json:"id"`
	CustomerID  uint      `json:"customerId"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	InvoiceID   uint      `json:"invoiceId"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToCreditTransactionResponse(t *model.CreditTransaction) CreditTransactionResponse {
	return CreditTransactionResponse{
		ID:          t.ID,
		CustomerID:  t.CustomerID,
		Amount:      t.Amount,
		Type:        t.Type,
		InvoiceID:   t.InvoiceID,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}
}

type PaymentIntentFilter struct {
	PaginationRequest
	InvoiceID uint `form:"invoiceId"`
}

type RefundFilter struct {
	PaginationRequest
	PaymentID uint `form:"paymentId"`
}
