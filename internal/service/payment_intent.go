package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const intentTTL = 24 * time.Hour

// PaymentIntentService 客户端支付流程: 创建意图 -> 网关回调确认 -> 入账
type PaymentIntentService struct {
	db       *gorm.DB
	payments *PaymentService
	now      func() time.Time
}

func (s *PaymentIntentService) GetAll(ctx context.Context, invoiceID uint, page dto.PaginationRequest) (PageResult[model.PaymentIntent], error) {
	query := s.db.WithContext(ctx).Model(&model.PaymentIntent{})
	if invoiceID != 0 {
		query = query.Where("invoice_id = ?", invoiceID)
	}
	return paginate[model.PaymentIntent](query, Page{Page: page.Page, PageSize: page.PageSize}, "id desc")
}

func (s *PaymentIntentService) GetByID(ctx context.Context, id uint) (*model.PaymentIntent, error) {
	var pi model.PaymentIntent
	if err := findByID(s.db.WithContext(ctx), &pi, id, "payment intent"); err != nil {
		return nil, err
	}
	return &pi, nil
}

// Create 金额为账单当前余额, 24 小时内有效
func (s *PaymentIntentService) Create(ctx context.Context, invoiceID uint) (*model.PaymentIntent, error) {
	db := s.db.WithContext(ctx)
	inv, err := loadInvoice(db, invoiceID, false)
	if err != nil {
		return nil, err
	}
	if !inv.Payable() {
		return nil, invalidStatef("账单状态为 %s, 不能发起支付", inv.Status)
	}
	if inv.Balance() <= 0 {
		return nil, invalidStatef("账单没有待付余额")
	}
	pi := model.PaymentIntent{
		InvoiceID:    inv.ID,
		CustomerID:   inv.CustomerID,
		Amount:       inv.Balance(),
		Currency:     inv.Currency,
		Status:       model.IntentStatusRequiresPayment,
		ClientSecret: "pi_secret_" + uuid.NewString(),
		ExpiresAt:    s.now().Add(intentTTL),
	}
	if err := db.Create(&pi).Error; err != nil {
		return nil, err
	}
	return &pi, nil
}

// Confirm 标记成功并在同一事务内登记收款
func (s *PaymentIntentService) Confirm(ctx context.Context, id uint, gatewayRef string) (*model.PaymentIntent, error) {
	var pi model.PaymentIntent
	var p *model.Payment
	var inv *model.Invoice
	var customer *model.Customer
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &pi, id, "payment intent"); err != nil {
			return err
		}
		if pi.Status != model.IntentStatusRequiresPayment {
			return invalidStatef("支付意图状态为 %s, 不能确认", pi.Status)
		}
		if s.now().After(pi.ExpiresAt) {
			return invalidStatef("支付意图已于 %s 过期", pi.ExpiresAt.Format(time.RFC3339))
		}
		var err error
		if inv, err = loadInvoice(tx, pi.InvoiceID, true); err != nil {
			return err
		}
		p, customer, err = s.payments.record(tx, inv, paymentInput{
			Amount:         pi.Amount,
			Method:         model.PayMethodCard,
			Gateway:        s.payments.gateway.Name(),
			TransactionRef: gatewayRef,
		})
		if err != nil {
			return err
		}
		pi.Status = model.IntentStatusSucceeded
		pi.GatewayRef = gatewayRef
		pi.PaymentID = p.ID
		return tx.Model(&pi).Select("status", "gateway_ref", "payment_id").Updates(&pi).Error
	})
	if err != nil {
		return nil, err
	}
	s.payments.afterRecord(ctx, p, inv, customer)
	return &pi, nil
}

func (s *PaymentIntentService) Cancel(ctx context.Context, id uint) (*model.PaymentIntent, error) {
	var pi model.PaymentIntent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &pi, id, "payment intent"); err != nil {
			return err
		}
		if pi.Status != model.IntentStatusRequiresPayment && pi.Status != model.IntentStatusProcessing {
			return invalidStatef("支付意图状态为 %s, 不能取消", pi.Status)
		}
		pi.Status = model.IntentStatusCanceled
		return tx.Model(&pi).Update("status", pi.Status).Error
	})
	if err != nil {
		return nil, err
	}
	return &pi, nil
}
