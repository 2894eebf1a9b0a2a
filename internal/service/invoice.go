package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	jnow "github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sequenceInvoice = "invoice"
	sequenceQuote   = "quote"
)

type InvoiceService struct {
	db      *gorm.DB
	billing config.BillingConfig
	taxes   *TaxService
	emails  *EmailService
	metrics *metrics.Metrics
	now     func() time.Time
}

func (s *InvoiceService) GetAll(ctx context.Context, filter dto.InvoiceFilter) (PageResult[model.Invoice], error) {
	query := s.db.WithContext(ctx).Model(&model.Invoice{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return paginate[model.Invoice](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

func (s *InvoiceService) GetByID(ctx context.Context, id uint) (*model.Invoice, error) {
	return loadInvoice(s.db.WithContext(ctx), id, false)
}

// loadInvoice 读取账单及明细, lock 为 true 时加行锁
func loadInvoice(db *gorm.DB, id uint, lock bool) (*model.Invoice, error) {
	var inv model.Invoice
	q := db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Taxes", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") })
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := findByID(q, &inv, id, "invoice"); err != nil {
		return nil, err
	}
	return &inv, nil
}

func buildInvoiceItems(reqs []dto.LineItemRequest) ([]model.InvoiceItem, error) {
	items := make([]model.InvoiceItem, 0, len(reqs))
	for i, r := range reqs {
		if strings.TrimSpace(r.Description) == "" {
			return nil, validationf("第 %d 项缺少描述", i+1)
		}
		if r.Quantity <= 0 || r.UnitPrice < 0 {
			return nil, validationf("第 %d 项数量或单价无效", i+1)
		}
		itemType := r.ItemType
		if itemType == "" {
			itemType = model.ItemTypeOther
		}
		items = append(items, model.InvoiceItem{
			Description: strings.TrimSpace(r.Description),
			Quantity:    r.Quantity,
			UnitPrice:   r.UnitPrice,
			ItemType:    itemType,
			RelatedID:   r.RelatedID,
			Taxable:     boolOr(r.Taxable, true),
		})
	}
	return items, nil
}

func (s *InvoiceService) Create(ctx context.Context, req dto.CreateInvoiceRequest) (*model.Invoice, error) {
	items, err := buildInvoiceItems(req.Items)
	if err != nil {
		return nil, err
	}
	var inv *model.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := requireCustomer(tx, req.CustomerID)
		if err != nil {
			return err
		}
		inv, err = s.createDraft(tx, customer, req.Currency, req.Notes, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// createDraft 在事务内创建草稿账单并计算金额, 其它服务 (域名、主机、报价) 复用
func (s *InvoiceService) createDraft(tx *gorm.DB, customer *model.Customer, currencyCode, notes string, items []model.InvoiceItem) (*model.Invoice, error) {
	code := currencyCode
	if code == "" {
		code = customer.Currency
	}
	code, err := ValidateCode(code)
	if err != nil {
		return nil, err
	}
	inv := &model.Invoice{
		CustomerID: customer.ID,
		Status:     model.InvoiceStatusDraft,
		Currency:   code,
		Notes:      notes,
		Items:      items,
	}
	if err := tx.Create(inv).Error; err != nil {
		return nil, err
	}
	if err := s.recalculate(tx, inv, customer); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Update(ctx context.Context, id uint, req dto.UpdateInvoiceRequest) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, id, true); err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusDraft {
			return invalidStatef("只有草稿账单可以修改, 当前状态 %s", inv.Status)
		}
		if req.Currency != nil {
			if inv.Currency, err = ValidateCode(*req.Currency); err != nil {
				return err
			}
		}
		if req.Notes != nil {
			inv.Notes = *req.Notes
		}
		if req.Items != nil {
			items, err := buildInvoiceItems(req.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("invoice_id = ?", inv.ID).Delete(&model.InvoiceItem{}).Error; err != nil {
				return err
			}
			for i := range items {
				items[i].InvoiceID = inv.ID
			}
			if len(items) > 0 {
				if err := tx.Create(&items).Error; err != nil {
					return err
				}
			}
			inv.Items = items
		}
		customer, err := requireCustomer(tx, inv.CustomerID)
		if err != nil {
			return err
		}
		return s.recalculate(tx, inv, customer)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Delete 只允许删除草稿, 其它状态需先作废
func (s *InvoiceService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := loadInvoice(tx, id, true)
		if err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusDraft {
			return invalidStatef("只有草稿账单可以删除, 请先作废")
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&model.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&model.InvoiceTax{}).Error; err != nil {
			return err
		}
		return tx.Delete(inv).Error
	})
}

// Recalculate 重新计算草稿账单的金额
func (s *InvoiceService) Recalculate(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, id, true); err != nil {
			return err
		}
		if inv.Status != model.InvoiceStatusDraft {
			return invalidStatef("已签发的账单金额不可重算")
		}
		customer, err := requireCustomer(tx, inv.CustomerID)
		if err != nil {
			return err
		}
		return s.recalculate(tx, inv, customer)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// recalculate 明细金额 = 数量 × 单价; 税额只基于应税明细
func (s *InvoiceService) recalculate(tx *gorm.DB, inv *model.Invoice, customer *model.Customer) error {
	var subtotal, taxable int64
	for i := range inv.Items {
		it := &inv.Items[i]
		it.Amount = int64(it.Quantity) * it.UnitPrice
		subtotal += it.Amount
		if it.Taxable {
			taxable += it.Amount
		}
		if err := tx.Model(it).Update("amount", it.Amount).Error; err != nil {
			return err
		}
	}
	lines, err := s.taxes.calculate(tx, customer, taxable)
	if err != nil {
		return err
	}
	if err := tx.Where("invoice_id = ?", inv.ID).Delete(&model.InvoiceTax{}).Error; err != nil {
		return err
	}
	inv.Taxes = make([]model.InvoiceTax, 0, len(lines))
	for _, l := range lines {
		inv.Taxes = append(inv.Taxes, model.InvoiceTax{InvoiceID: inv.ID, Name: l.Name, Rate: l.Rate, Amount: l.Amount})
	}
	if len(inv.Taxes) > 0 {
		if err := tx.Create(&inv.Taxes).Error; err != nil {
			return err
		}
	}
	inv.Subtotal = subtotal
	inv.TaxTotal = sumTax(lines)
	inv.Total = inv.Subtotal + inv.TaxTotal
	return tx.Model(inv).Select("currency", "notes", "subtotal", "tax_total", "total").Updates(inv).Error
}

// Issue 草稿 -> 已签发, 分配编号并设置到期日
func (s *InvoiceService) Issue(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv *model.Invoice
	var customer *model.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, customer, err = s.issue(tx, id); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.afterIssue(ctx, inv, customer)
	return inv, nil
}

func (s *InvoiceService) issue(tx *gorm.DB, id uint) (*model.Invoice, *model.Customer, error) {
	inv, err := loadInvoice(tx, id, true)
	if err != nil {
		return nil, nil, err
	}
	if inv.Status != model.InvoiceStatusDraft {
		return nil, nil, invalidStatef("账单 %d 当前状态为 %s, 不能签发", id, inv.Status)
	}
	if len(inv.Items) == 0 {
		return nil, nil, validationf("空账单不能签发")
	}
	customer, err := requireCustomer(tx, inv.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.recalculate(tx, inv, customer); err != nil {
		return nil, nil, err
	}

	issueDate := jnow.With(s.now()).BeginningOfDay()
	number, err := nextNumber(tx, sequenceInvoice, s.billing.InvoicePrefix, issueDate.Year())
	if err != nil {
		return nil, nil, err
	}
	dueDate := issueDate.AddDate(0, 0, s.billing.PaymentTermsDays)
	inv.Number = &number
	inv.IssueDate = &issueDate
	inv.DueDate = &dueDate
	inv.Status = model.InvoiceStatusIssued
	settleIfPaid(inv, s.now())
	if err := tx.Model(inv).Select("number", "issue_date", "due_date", "status", "paid_at").Updates(inv).Error; err != nil {
		return nil, nil, err
	}
	return inv, customer, nil
}

func (s *InvoiceService) afterIssue(ctx context.Context, inv *model.Invoice, customer *model.Customer) {
	s.metrics.IncrementInvoicesIssued()
	logger.Logger.Info("账单已签发",
		zap.Uint("invoice_id", inv.ID),
		zap.String("number", *inv.Number),
		zap.Int64("total", inv.Total),
		zap.String("currency", inv.Currency))
	s.emails.notify(ctx, customer, TemplateInvoiceIssued, map[string]interface{}{
		"Number":  *inv.Number,
		"Total":   Format(inv.Total, inv.Currency),
		"Balance": Format(inv.Balance(), inv.Currency),
		"DueDate": inv.DueDate.Format("2006-01-02"),
	})
}

// nextNumber 按 (名称, 年份) 锁定序列行并递增, 生成 <prefix>-<YYYY>-<5位序号>
func nextNumber(tx *gorm.DB, name, prefix string, year int) (string, error) {
	seed := model.NumberSequence{Name: name, Year: year}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return "", err
	}
	var seq model.NumberSequence
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ? AND year = ?", name, year).First(&seq).Error; err != nil {
		return "", err
	}
	seq.Last++
	if err := tx.Model(&model.NumberSequence{}).
		Where("name = ? AND year = ?", name, year).
		Update("last", seq.Last).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq.Last), nil
}

// settleIfPaid 余额为零时账单转为已支付
func settleIfPaid(inv *model.Invoice, at time.Time) {
	if inv.Payable() && inv.Balance() <= 0 {
		inv.Status = model.InvoiceStatusPaid
		inv.PaidAt = &at
	}
}

// Cancel 没有有效收款的账单才能作废, 已全额退款的支付不计; 已抵扣的余额退回客户
func (s *InvoiceService) Cancel(ctx context.Context, id uint) (*model.Invoice, error) {
	var inv *model.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, id, true); err != nil {
			return err
		}
		switch inv.Status {
		case model.InvoiceStatusDraft, model.InvoiceStatusIssued, model.InvoiceStatusOverdue:
		default:
			return invalidStatef("状态为 %s 的账单不能作废", inv.Status)
		}
		var payments int64
		if err := tx.Model(&model.Payment{}).
			Where("invoice_id = ? AND status NOT IN ?", id, []string{model.PaymentStatusFailed, model.PaymentStatusRefunded}).
			Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 || inv.AmountPaid > 0 {
			return invalidStatef("账单已有收款, 请走退款流程")
		}
		if inv.CreditApplied > 0 {
			desc := fmt.Sprintf("账单 %d 作废, 退回抵扣余额", inv.ID)
			if err := postCredit(tx, inv.CustomerID, inv.CreditApplied, model.CreditTypeRefund, inv.ID, desc); err != nil {
				return err
			}
			inv.CreditApplied = 0
		}
		inv.Status = model.InvoiceStatusCancelled
		return tx.Model(inv).Select("status", "credit_applied").Updates(inv).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("账单已作废", zap.Uint("invoice_id", inv.ID))
	return inv, nil
}

// MarkOverdue 将到期日早于今天的已签发账单标记为逾期, 返回更新数量
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int64, error) {
	today := jnow.With(s.now()).BeginningOfDay()
	res := s.db.WithContext(ctx).Model(&model.Invoice{}).
		Where("status = ? AND due_date < ?", model.InvoiceStatusIssued, today).
		Update("status", model.InvoiceStatusOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		logger.Logger.Info("逾期账单扫描完成", zap.Int64("marked", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
