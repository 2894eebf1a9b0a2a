package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentService struct {
	db       *gorm.DB
	gateway  payment.Gateway
	invoices *InvoiceService
	emails   *EmailService
	metrics  *metrics.Metrics
	now      func() time.Time
}

func (s *PaymentService) GetAll(ctx context.Context, filter dto.PaymentFilter) (PageResult[model.Payment], error) {
	query := s.db.WithContext(ctx).Model(&model.Payment{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	return paginate[model.Payment](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

func (s *PaymentService) GetByID(ctx context.Context, id uint) (*model.Payment, error) {
	var p model.Payment
	if err := findByID(s.db.WithContext(ctx), &p, id, "payment"); err != nil {
		return nil, err
	}
	return &p, nil
}

// paymentInput 一笔入账的来源信息
type paymentInput struct {
	Amount          int64
	Method          string
	Gateway         string
	TransactionRef  string
	PaymentMethodID uint
}

// RecordPayment 手工登记收款, 超出账单余额的部分转为客户余额
func (s *PaymentService) RecordPayment(ctx context.Context, req dto.RecordPaymentRequest) (*model.Payment, error) {
	if req.Method == model.PayMethodCredit {
		return nil, validationf("余额抵扣请使用 credits 接口")
	}
	var p *model.Payment
	var inv *model.Invoice
	var customer *model.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, req.InvoiceID, true); err != nil {
			return err
		}
		p, customer, err = s.record(tx, inv, paymentInput{
			Amount:         req.Amount,
			Method:         req.Method,
			Gateway:        "manual",
			TransactionRef: req.TransactionRef,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterRecord(ctx, p, inv, customer)
	return p, nil
}

// record 在事务内登记一笔成功收款, inv 必须已加锁
func (s *PaymentService) record(tx *gorm.DB, inv *model.Invoice, in paymentInput) (*model.Payment, *model.Customer, error) {
	if !inv.Payable() {
		return nil, nil, invalidStatef("账单状态为 %s, 不能收款", inv.Status)
	}
	if in.Amount <= 0 {
		return nil, nil, validationf("收款金额必须大于 0")
	}
	customer, err := requireCustomer(tx, inv.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	applied := min(in.Amount, inv.Balance())
	overpaid := in.Amount - applied
	if overpaid > 0 && customer.Currency != inv.Currency {
		return nil, nil, validationf("账单币种 %s 与客户余额币种 %s 不同, 不能超额收款", inv.Currency, customer.Currency)
	}

	now := s.now()
	p := &model.Payment{
		InvoiceID:       inv.ID,
		CustomerID:      inv.CustomerID,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          in.Amount,
		Applied:         applied,
		Currency:        inv.Currency,
		Method:          in.Method,
		Gateway:         in.Gateway,
		TransactionRef:  in.TransactionRef,
		Status:          model.PaymentStatusCompleted,
		PaidAt:          now,
	}
	if err := tx.Create(p).Error; err != nil {
		return nil, nil, err
	}
	if overpaid > 0 {
		desc := fmt.Sprintf("账单 %d 超额付款", inv.ID)
		if err := postCredit(tx, customer.ID, overpaid, model.CreditTypeOverpayment, inv.ID, desc); err != nil {
			return nil, nil, err
		}
	}
	inv.AmountPaid += applied
	settleIfPaid(inv, now)
	if err := tx.Model(inv).Select("amount_paid", "status", "paid_at").Updates(inv).Error; err != nil {
		return nil, nil, err
	}
	return p, customer, nil
}

func (s *PaymentService) afterRecord(ctx context.Context, p *model.Payment, inv *model.Invoice, customer *model.Customer) {
	s.metrics.IncrementPayments(p.Method, p.Status)
	logger.Logger.Info("收款已登记",
		zap.Uint("payment_id", p.ID),
		zap.Uint("invoice_id", inv.ID),
		zap.Int64("amount", p.Amount),
		zap.String("method", p.Method),
		zap.String("invoice_status", inv.Status))
	number := ""
	if inv.Number != nil {
		number = *inv.Number
	}
	s.emails.notify(ctx, customer, TemplatePaymentReceived, map[string]interface{}{
		"Number":  number,
		"Amount":  Format(p.Amount, p.Currency),
		"Balance": Format(max(inv.Balance(), 0), inv.Currency),
		"Paid":    inv.Status == model.InvoiceStatusPaid,
	})
}

// ChargePaymentMethod 通过网关对已保存的支付方式扣除账单余额
// 网关调用不在数据库事务内进行; 失败时记录一条 failed 支付
func (s *PaymentService) ChargePaymentMethod(ctx context.Context, invoiceID, paymentMethodID uint) (*model.Payment, error) {
	db := s.db.WithContext(ctx)
	inv, err := loadInvoice(db, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if !inv.Payable() {
		return nil, invalidStatef("账单状态为 %s, 不能扣款", inv.Status)
	}
	balance := inv.Balance()
	if balance <= 0 {
		return nil, invalidStatef("账单没有待付余额")
	}
	var pm model.CustomerPaymentMethod
	if err := findByID(db.Where("customer_id = ?", inv.CustomerID), &pm, paymentMethodID, "payment method"); err != nil {
		return nil, err
	}
	if pm.GatewayToken == "" {
		return nil, validationf("支付方式 %d 没有网关令牌", pm.ID)
	}

	number := fmt.Sprintf("%d", inv.ID)
	if inv.Number != nil {
		number = *inv.Number
	}
	result, chargeErr := s.gateway.Charge(ctx, payment.ChargeRequest{
		Token:          pm.GatewayToken,
		Amount:         balance,
		Currency:       inv.Currency,
		Description:    "Invoice " + number,
		IdempotencyKey: fmt.Sprintf("invoice-%d-pm-%d-%d", inv.ID, pm.ID, balance),
	})
	if chargeErr != nil {
		failed := &model.Payment{
			InvoiceID:       inv.ID,
			CustomerID:      inv.CustomerID,
			PaymentMethodID: pm.ID,
			Amount:          balance,
			Currency:        inv.Currency,
			Method:          methodForPaymentType(pm.Type),
			Gateway:         s.gateway.Name(),
			Status:          model.PaymentStatusFailed,
			FailureReason:   chargeErr.Error(),
			PaidAt:          s.now(),
		}
		if err := db.Create(failed).Error; err != nil {
			logger.Logger.Error("记录失败支付出错", zap.Uint("invoice_id", inv.ID), zap.Error(err))
		}
		s.metrics.IncrementPayments(failed.Method, failed.Status)
		logger.Logger.Warn("网关扣款失败", zap.Uint("invoice_id", inv.ID), zap.Error(chargeErr))
		if errors.Is(chargeErr, payment.ErrDeclined) {
			return failed, fmt.Errorf("%w: %v", ErrPaymentDeclined, chargeErr)
		}
		return failed, fmt.Errorf("%w: %v", ErrUpstream, chargeErr)
	}

	var p *model.Payment
	var customer *model.Customer
	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := loadInvoice(tx, invoiceID, true)
		if err != nil {
			return err
		}
		inv = locked
		p, customer, err = s.record(tx, inv, paymentInput{
			Amount:          balance,
			Method:          methodForPaymentType(pm.Type),
			Gateway:         s.gateway.Name(),
			TransactionRef:  result.TransactionRef,
			PaymentMethodID: pm.ID,
		})
		return err
	})
	if err != nil {
		// 网关已扣款但本地入账失败, 需要人工核对
		logger.Logger.Error("扣款成功但入账失败",
			zap.Uint("invoice_id", invoiceID),
			zap.String("transaction_ref", result.TransactionRef),
			zap.Error(err))
		return nil, err
	}
	s.afterRecord(ctx, p, inv, customer)
	return p, nil
}

func methodForPaymentType(t string) string {
	switch t {
	case model.PaymentMethodBankAccount:
		return model.PayMethodBankTransfer
	case model.PaymentMethodPaypal:
		return model.PayMethodPaypal
	default:
		return model.PayMethodCard
	}
}
