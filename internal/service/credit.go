package service

import (
	"context"
	"fmt"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreditService 客户余额, 余额只能通过流水变更且不允许为负
type CreditService struct {
	db       *gorm.DB
	invoices *InvoiceService
}

// Balance 客户余额及其币种
type Balance struct {
	CustomerID uint
	Amount     int64
	Currency   string
}

func (s *CreditService) GetBalance(ctx context.Context, customerID uint) (*Balance, error) {
	c, err := requireCustomer(s.db.WithContext(ctx), customerID)
	if err != nil {
		return nil, err
	}
	return &Balance{CustomerID: c.ID, Amount: c.CreditBalance, Currency: c.Currency}, nil
}

func (s *CreditService) GetTransactions(ctx context.Context, customerID uint, page dto.PaginationRequest) (PageResult[model.CreditTransaction], error) {
	db := s.db.WithContext(ctx)
	if _, err := requireCustomer(db, customerID); err != nil {
		return PageResult[model.CreditTransaction]{}, err
	}
	query := db.Model(&model.CreditTransaction{}).Where("customer_id = ?", customerID)
	return paginate[model.CreditTransaction](query, Page{Page: page.Page, PageSize: page.PageSize}, "id desc")
}

func (s *CreditService) AddCredit(ctx context.Context, customerID uint, amount int64, description string) (*Balance, error) {
	if amount <= 0 {
		return nil, validationf("金额必须大于 0")
	}
	if description == "" {
		description = "手工充值"
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return postCredit(tx, customerID, amount, model.CreditTypeAdd, 0, description)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBalance(ctx, customerID)
}

// RemoveCredit 手工扣减, 不能扣成负数
func (s *CreditService) RemoveCredit(ctx context.Context, customerID uint, amount int64, description string) (*Balance, error) {
	if amount <= 0 {
		return nil, validationf("金额必须大于 0")
	}
	if description == "" {
		description = "手工扣减"
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return postCredit(tx, customerID, -amount, model.CreditTypeAdjustment, 0, description)
	})
	if err != nil {
		return nil, err
	}
	return s.GetBalance(ctx, customerID)
}

// ApplyCreditToInvoice 用余额抵扣账单, amount 为 0 表示尽可能多地抵扣
func (s *CreditService) ApplyCreditToInvoice(ctx context.Context, invoiceID uint, amount int64) (*model.Invoice, error) {
	if amount < 0 {
		return nil, validationf("金额不能为负")
	}
	var inv *model.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, invoiceID, true); err != nil {
			return err
		}
		if !inv.Payable() {
			return invalidStatef("账单状态为 %s, 不能抵扣", inv.Status)
		}
		customer, err := lockCustomer(tx, inv.CustomerID)
		if err != nil {
			return err
		}
		if customer.Currency != inv.Currency {
			return validationf("余额币种 %s 与账单币种 %s 不一致", customer.Currency, inv.Currency)
		}
		if amount == 0 {
			amount = min(customer.CreditBalance, inv.Balance())
			if amount <= 0 {
				return validationf("没有可抵扣的余额")
			}
		}
		if amount > customer.CreditBalance {
			return validationf("余额不足: 可用 %d, 需要 %d", customer.CreditBalance, amount)
		}
		if amount > inv.Balance() {
			return validationf("抵扣金额超过账单余额 %d", inv.Balance())
		}
		desc := fmt.Sprintf("抵扣账单 %d", inv.ID)
		if err := postCredit(tx, customer.ID, -amount, model.CreditTypeApply, inv.ID, desc); err != nil {
			return err
		}
		inv.CreditApplied += amount
		settleIfPaid(inv, s.invoices.now())
		return tx.Model(inv).Select("credit_applied", "status", "paid_at").Updates(inv).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("余额已抵扣账单", zap.Uint("invoice_id", inv.ID), zap.Int64("amount", amount))
	return inv, nil
}

func lockCustomer(tx *gorm.DB, id uint) (*model.Customer, error) {
	var c model.Customer
	if err := findByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &c, id, "customer"); err != nil {
		return nil, err
	}
	return &c, nil
}

// postCredit 在事务内锁定客户行, 写流水并更新余额; 余额不足时返回校验错误
func postCredit(tx *gorm.DB, customerID uint, amount int64, kind string, invoiceID uint, description string) error {
	c, err := lockCustomer(tx, customerID)
	if err != nil {
		return err
	}
	balance := c.CreditBalance + amount
	if balance < 0 {
		return validationf("余额不足: 当前 %d, 变动 %d", c.CreditBalance, amount)
	}
	if err := tx.Model(&model.Customer{}).Where("id = ?", customerID).Update("credit_balance", balance).Error; err != nil {
		return err
	}
	return tx.Create(&model.CreditTransaction{
		CustomerID:  customerID,
		Amount:      amount,
		Type:        kind,
		InvoiceID:   invoiceID,
		Description: description,
	}).Error
}
