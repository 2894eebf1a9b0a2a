package dto

import (
	"time"

	"github.com/isp-backoffice/internal/model"
)

type EmailFilter struct {
	PaginationRequest
	Status     string `form:"status" binding:"omitempty,oneof=queued sent failed"`
	CustomerID uint   `form:"customerId"`
}

type QueuedEmailResponse struct {
	ID         uint       `json:"id"`
	CustomerID uint       `json:"customerId"`
	To         string     `json:"to"`
	Subject    string     `json:"subject"`
	Body       string     `json:"body"`
	Template   string     `json:"template"`
	Status     string     `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"lastError"`
	SentAt     *time.Time `json:"sentAt"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func ToQueuedEmailResponse(e *model.QueuedEmail) QueuedEmailResponse {
	return QueuedEmailResponse{
		ID:         e.ID,
		CustomerID: e.CustomerID,
		To:         e.To,
		Subject:    e.Subject,
		Body:       e.Body,
		Template:   e.Template,
		Status:     e.Status,
		Attempts:   e.Attempts,
		LastError:  e.LastError,
		SentAt:     e.SentAt,
		CreatedAt:  e.CreatedAt,
	}
}

type DashboardResponse struct {
	CustomersByStatus     map[string]int64 `json:"customersByStatus"`
	UnpaidByCurrency      map[string]int64 `json:"unpaidByCurrency"`
	OverdueInvoices       int64            `json:"overdueInvoices"`
	DomainsExpiringSoon   int64            `json:"domainsExpiringSoon"`
	ActiveHostingAccounts int64            `json:"activeHostingAccounts"`
	QueuedEmails          int64            `json:"queuedEmails"`
}
