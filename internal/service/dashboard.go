package service

import (
	"context"
	"time"

	"github.com/isp-backoffice/internal/model"
	"gorm.io/gorm"
)

// 仪表盘统计的域名到期窗口
const expiringSoonDays = 30

// Summary 后台首页的汇总数据
type Summary struct {
	CustomersByStatus     map[string]int64
	UnpaidByCurrency      map[string]int64
	OverdueInvoices       int64
	DomainsExpiringSoon   int64
	ActiveHostingAccounts int64
	QueuedEmails          int64
}

type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *DashboardService) GetSummary(ctx context.Context) (*Summary, error) {
	db := s.db.WithContext(ctx)
	out := &Summary{
		CustomersByStatus: make(map[string]int64),
		UnpaidByCurrency:  make(map[string]int64),
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&model.Customer{}).Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		out.CustomersByStatus[row.Status] = row.Count
	}

	var unpaid []struct {
		Currency string
		Amount   int64
	}
	if err := db.Model(&model.Invoice{}).
		Select("currency, SUM(total - amount_paid - credit_applied) AS amount").
		Where("status IN ?", []string{model.InvoiceStatusIssued, model.InvoiceStatusOverdue}).
		Group("currency").
		Scan(&unpaid).Error; err != nil {
		return nil, err
	}
	for _, row := range unpaid {
		out.UnpaidByCurrency[row.Currency] = row.Amount
	}

	now := s.now()
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&out.OverdueInvoices, db.Model(&model.Invoice{}).Where("status = ?", model.InvoiceStatusOverdue)},
		{&out.DomainsExpiringSoon, db.Model(&model.Domain{}).
			Where("status = ? AND expires_at >= ? AND expires_at <= ?", model.DomainStatusActive, now, now.AddDate(0, 0, expiringSoonDays))},
		{&out.ActiveHostingAccounts, db.Model(&model.HostingAccount{}).Where("status = ?", model.AccountStatusActive)},
		{&out.QueuedEmails, db.Model(&model.QueuedEmail{}).Where("status = ?", model.EmailStatusQueued)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}
	return out, nil
}
