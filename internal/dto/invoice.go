package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type InvoiceFilter struct {
	PaginationRequest
	CustomerID uint   `form:"customerId"`
	Status     string `form:"status" binding:"omitempty,oneof=draft issued paid overdue cancelled refunded"`
}

type LineItemRequest struct {
	Description string `json:"description" binding:"required,max=500"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unitPrice" binding:"min=0"`
	ItemType    string `json:"itemType" binding:"omitempty,oneof=domain hosting other"`
	RelatedID   uint   `json:"relatedId"`
	Taxable     *bool  `json:"taxable"`
}

type CreateInvoiceRequest struct {
	CustomerID uint              `json:"customerId" binding:"required"`
	Currency   string            `json:"currency" binding:"omitempty,iso_currency"`
	Notes      string            `json:"notes"`
	Items      []LineItemRequest `json:"items" binding:"dive"`
}

// UpdateInvoiceRequest Items 不为 nil 时整体替换明细
type UpdateInvoiceRequest struct {
	Currency *string           `json:"currency" binding:"omitempty,iso_currency"`
	Notes    *string           `json:"notes"`
	Items    []LineItemRequest `json:"items" binding:"omitempty,dive"`
}

type InvoiceItemResponse struct {
	ID          uint   `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Amount      int64  `json:"amount"`
	ItemType    string `json:"itemType"`
	RelatedID   uint   `json:"relatedId"`
	Taxable     bool   `json:"taxable"`
}

type InvoiceResponse struct {
	ID            uint                  `json:"id"`
	Number        string                `json:"number"`
	CustomerID    uint                  `json:"customerId"`
	Status        string                `json:"status"`
	Currency      string                `json:"currency"`
	IssueDate     *time.Time            `json:"issueDate"`
	DueDate       *time.Time            `json:"dueDate"`
	PaidAt        *time.Time            `json:"paidAt"`
	Subtotal      int64                 `json:"subtotal"`
	TaxTotal      int64                 `json:"taxTotal"`
	Total         int64                 `json:"total"`
	AmountPaid    int64                 `json:"amountPaid"`
	CreditApplied int64                 `json:"creditApplied"`
	Balance       int64                 `json:"balance"`
	Notes         string                `json:"notes"`
	Items         []InvoiceItemResponse `json:"items"`
	Taxes         []TaxLine             `json:"taxes"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func ToInvoiceResponse(inv *model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		CustomerID:    inv.CustomerID,
		Status:        inv.Status,
		Currency:      inv.Currency,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		Subtotal:      inv.Subtotal,
		TaxTotal:      inv.TaxTotal,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		CreditApplied: inv.CreditApplied,
		Balance:       inv.Balance(),
		Notes:         inv.Notes,
		Items:         make([]InvoiceItemResponse, 0, len(inv.Items)),
		Taxes:         make([]TaxLine, 0, len(inv.Taxes)),
		CreatedAt:     inv.CreatedAt,
	}
	if inv.Number != nil {
		resp.Number = *inv.Number
	}
	for _, it := range inv.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
			ItemType:    it.ItemType,
			RelatedID:   it.RelatedID,
			Taxable:     it.Taxable,
		})
	}
	for _, tx := range inv.Taxes {
		resp.Taxes = append(resp.Taxes, TaxLine{Name: tx.Name, Rate: tx.Rate, Amount: tx.Amount})
	}
	return resp
}

type QuoteFilter struct {
	PaginationRequest
	CustomerID uint   `form:"customerId"`
	Status     string `form:"status" binding:"omitempty,oneof=draft sent accepted rejected expired invoiced"`
}

type CreateQuoteRequest struct {
	CustomerID uint              `json:"customerId" binding:"required"`
	Subject    string            `json:"subject" binding:"max=255"`
	Currency   string            `json:"currency" binding:"omitempty,iso_currency"`
	ValidUntil *time.Time        `json:"validUntil"`
	Notes      string            `json:"notes"`
	Items      []LineItemRequest `json:"items" binding:"dive"`
}

type UpdateQuoteRequest struct {
	Subject    *string           `json:"subject" binding:"omitempty,max=255"`
	Currency   *string           `json:"currency" binding:"omitempty,iso_currency"`
	ValidUntil *time.Time        `json:"validUntil"`
	Notes      *string           `json:"notes"`
	Items      []LineItemRequest `json:"items" binding:"omitempty,dive"`
}

type QuoteItemResponse struct {
	ID          uint   `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
	Amount      int64  `json:"amount"`
	ItemType    string `json:"itemType"`
	Taxable     bool   `json:"taxable"`
}

type QuoteResponse struct {
	ID         uint                `json:"id"`
	Number     string              `json:"number"`
	CustomerID uint                `json:"customerId"`
	Subject    string              `json:"subject"`
	Status     string              `json:"status"`
	Currency   string              `json:"currency"`
	ValidUntil time.Time           `json:"validUntil"`
	Subtotal   int64               `json:"subtotal"`
	TaxTotal   int64               `json:"taxTotal"`
	Total      int64               `json:"total"`
	Notes      string              `json:"notes"`
	InvoiceID  uint                `json:"invoiceId"`
	Items      []QuoteItemResponse `json:"items"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func ToQuoteResponse(q *model.Quote) QuoteResponse {
	resp := QuoteResponse{
		ID:         q.ID,
		Number:     q.Number,
		CustomerID: q.CustomerID,
		Subject:    q.Subject,
		Status:     q.Status,
		Currency:   q.Currency,
		ValidUntil: q.ValidUntil,
		Subtotal:   q.Subtotal,
		TaxTotal:   q.TaxTotal,
		Total:      q.Total,
		Notes:      q.Notes,
		InvoiceID:  q.InvoiceID,
		Items:      make([]QuoteItemResponse, 0, len(q.Items)),
		CreatedAt:  q.CreatedAt,
	}
	for _, it := range q.Items {
		resp.Items = append(resp.Items, QuoteItemResponse{
			ID:          it.ID,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
			ItemType:    it.ItemType,
			Taxable:     it.Taxable,
		})
	}
	return resp
}
