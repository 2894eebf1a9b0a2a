package service

import (
	"context"
	"fmt"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	jnow "github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuoteService struct {
	db       *gorm.DB
	billing  config.BillingConfig
	invoices *InvoiceService
	emails   *EmailService
	now      func() time.Time
}

func (s *QuoteService) GetAll(ctx context.Context, filter dto.QuoteFilter) (PageResult[model.Quote], error) {
	query := s.db.WithContext(ctx).Model(&model.Quote{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return paginate[model.Quote](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

func (s *QuoteService) GetByID(ctx context.Context, id uint) (*model.Quote, error) {
	return loadQuote(s.db.WithContext(ctx), id, false)
}

func loadQuote(db *gorm.DB, id uint, lock bool) (*model.Quote, error) {
	var q model.Quote
	query := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") })
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := findByID(query, &q, id, "quote"); err != nil {
		return nil, err
	}
	return &q, nil
}

func buildQuoteItems(reqs []dto.LineItemRequest) ([]model.QuoteItem, error) {
	invItems, err := buildInvoiceItems(reqs)
	if err != nil {
		return nil, err
	}
	items := make([]model.QuoteItem, 0, len(invItems))
	for _, it := range invItems {
		items = append(items, model.QuoteItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      int64(it.Quantity) * it.UnitPrice,
			ItemType:    it.ItemType,
			Taxable:     it.Taxable,
		})
	}
	return items, nil
}

func (s *QuoteService) Create(ctx context.Context, req dto.CreateQuoteRequest) (*model.Quote, error) {
	items, err := buildQuoteItems(req.Items)
	if err != nil {
		return nil, err
	}
	now := s.now()
	validUntil := jnow.With(now).EndOfDay().AddDate(0, 0, s.billing.QuoteValidDays)
	if req.ValidUntil != nil {
		if req.ValidUntil.Before(now) {
			return nil, validationf("有效期不能早于当前时间")
		}
		validUntil = *req.ValidUntil
	}

	var q *model.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := requireCustomer(tx, req.CustomerID)
		if err != nil {
			return err
		}
		code := req.Currency
		if code == "" {
			code = customer.Currency
		}
		if code, err = ValidateCode(code); err != nil {
			return err
		}
		number, err := nextNumber(tx, sequenceQuote, s.billing.QuotePrefix, now.Year())
		if err != nil {
			return err
		}
		q = &model.Quote{
			Number:     number,
			CustomerID: customer.ID,
			Subject:    req.Subject,
			Status:     model.QuoteStatusDraft,
			Currency:   code,
			ValidUntil: validUntil,
			Notes:      req.Notes,
			Items:      items,
		}
		if err := s.totals(tx, q, customer); err != nil {
			return err
		}
		return tx.Create(q).Error
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// totals 与账单相同的计税方式
func (s *QuoteService) totals(tx *gorm.DB, q *model.Quote, customer *model.Customer) error {
	var subtotal, taxable int64
	for i := range q.Items {
		it := &q.Items[i]
		it.Amount = int64(it.Quantity) * it.UnitPrice
		subtotal += it.Amount
		if it.Taxable {
			taxable += it.Amount
		}
	}
	lines, err := s.invoices.taxes.calculate(tx, customer, taxable)
	if err != nil {
		return err
	}
	q.Subtotal = subtotal
	q.TaxTotal = sumTax(lines)
	q.Total = q.Subtotal + q.TaxTotal
	return nil
}

// Update 草稿与已发送的报价可以修改
func (s *QuoteService) Update(ctx context.Context, id uint, req dto.UpdateQuoteRequest) (*model.Quote, error) {
	var q *model.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = loadQuote(tx, id, true); err != nil {
			return err
		}
		if q.Status != model.QuoteStatusDraft && q.Status != model.QuoteStatusSent {
			return invalidStatef("状态为 %s 的报价不能修改", q.Status)
		}
		setString(&q.Subject, req.Subject)
		if req.Notes != nil {
			q.Notes = *req.Notes
		}
		if req.ValidUntil != nil {
			q.ValidUntil = *req.ValidUntil
		}
		if req.Currency != nil {
			if q.Currency, err = ValidateCode(*req.Currency); err != nil {
				return err
			}
		}
		if req.Items != nil {
			items, err := buildQuoteItems(req.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("quote_id = ?", q.ID).Delete(&model.QuoteItem{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].QuoteID = q.ID
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return err
				}
			}
			q.Items = items
		}
		customer, err := requireCustomer(tx, q.CustomerID)
		if err != nil {
			return err
		}
		if err := s.totals(tx, q, customer); err != nil {
			return err
		}
		for i := range q.Items {
			if err := tx.Model(&q.Items[i]).Update("amount", q.Items[i].Amount).Error; err != nil {
				return err
			}
		}
		return tx.Model(q).Select("subject", "notes", "valid_until", "currency", "subtotal", "tax_total", "total").Updates(q).Error
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *QuoteService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadQuote(tx, id, true)
		if err != nil {
			return err
		}
		if q.Status == model.QuoteStatusAccepted || q.Status == model.QuoteStatusInvoiced {
			return invalidStatef("状态为 %s 的报价不能删除", q.Status)
		}
		if err := tx.Where("quote_id = ?", id).Delete(&model.QuoteItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(q).Error
	})
}

// transition 加锁校验当前状态后切换到 to
func (s *QuoteService) transition(ctx context.Context, id uint, from []string, to string) (*model.Quote, error) {
	var q *model.Quote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if q, err = loadQuote(tx, id, true); err != nil {
			return err
		}
		allowed := false
		for _, st := range from {
			allowed = allowed || q.Status == st
		}
		if !allowed {
			return invalidStatef("报价状态为 %s, 不能变更为 %s", q.Status, to)
		}
		q.Status = to
		return tx.Model(q).Update("status", to).Error
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Send 草稿 -> 已发送, 并通知客户
func (s *QuoteService) Send(ctx context.Context, id uint) (*model.Quote, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(q.Items) == 0 {
		return nil, validationf("空报价不能发送")
	}
	if q, err = s.transition(ctx, id, []string{model.QuoteStatusDraft}, model.QuoteStatusSent); err != nil {
		return nil, err
	}
	customer, err := requireCustomer(s.db.WithContext(ctx), q.CustomerID)
	if err != nil {
		return nil, err
	}
	s.emails.notify(ctx, customer, TemplateQuoteSent, map[string]interface{}{
		"Number":     q.Number,
		"Subject":    q.Subject,
		"Total":      Format(q.Total, q.Currency),
		"ValidUntil": q.ValidUntil.Format("2006-01-02"),
	})
	return q, nil
}

// Accept 过期的报价会被标记为 expired 并拒绝接受
func (s *QuoteService) Accept(ctx context.Context, id uint) (*model.Quote, error) {
	q, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.Status == model.QuoteStatusSent && s.now().After(q.ValidUntil) {
		if _, err := s.transition(ctx, id, []string{model.QuoteStatusSent}, model.QuoteStatusExpired); err != nil {
			return nil, err
		}
		return nil, invalidStatef("报价 %s 已于 %s 过期", q.Number, q.ValidUntil.Format("2006-01-02"))
	}
	if q.Status == model.QuoteStatusExpired {
		return nil, invalidStatef("报价 %s 已过期", q.Number)
	}
	return s.transition(ctx, id, []string{model.QuoteStatusSent}, model.QuoteStatusAccepted)
}

func (s *QuoteService) Reject(ctx context.Context, id uint) (*model.Quote, error) {
	return s.transition(ctx, id, []string{model.QuoteStatusSent}, model.QuoteStatusRejected)
}

// ConvertToInvoice 已接受的报价生成草稿账单
func (s *QuoteService) ConvertToInvoice(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q, err := loadQuote(tx, id, true)
		if err != nil {
			return err
		}
		if q.Status != model.QuoteStatusAccepted {
			return invalidStatef("只有已接受的报价可以转为账单, 当前状态 %s", q.Status)
		}
		customer, err := requireCustomer(tx, q.CustomerID)
		if err != nil {
			return err
		}
		items := make([]model.InvoiceItem, 0, len(q.Items))
		for _, it := range q.Items {
			items = append(items, model.InvoiceItem{
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				ItemType:    it.ItemType,
				Taxable:     it.Taxable,
			})
		}
		notes := fmt.Sprintf("Quote %s", q.Number)
		if inv, err = s.invoices.createDraft(tx, customer, q.Currency, notes, items); err != nil {
			return err
		}
		return tx.Model(q).Updates(map[string]interface{}{"status": model.QuoteStatusInvoiced, "invoice_id": inv.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("报价已转为账单", zap.Uint("quote_id", id), zap.Uint("invoice_id", inv.ID))
	return inv, nil
}

// ExpireStale 将超过有效期的已发送报价标记为过期
func (s *QuoteService) ExpireStale(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Quote{}).
		Where("status = ? AND valid_until < ?", model.QuoteStatusSent, s.now()).
		Update("status", model.QuoteStatusExpired)
	return res.RowsAffected, res.Error
}
