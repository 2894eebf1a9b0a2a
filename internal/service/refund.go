package service

import (
	"context"
	"fmt"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/payment"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundService struct {
	db      *gorm.DB
	gateway payment.Gateway
}

func (s *RefundService) GetAll(ctx context.Context, paymentID uint, page dto.PaginationRequest) (PageResult[model.Refund], error) {
	query := s.db.WithContext(ctx).Model(&model.Refund{})
	if paymentID != 0 {
		query = query.Where("payment_id = ?", paymentID)
	}
	return paginate[model.Refund](query, Page{Page: page.Page, PageSize: page.PageSize}, "id desc")
}

func (s *RefundService) GetByID(ctx context.Context, id uint) (*model.Refund, error) {
	var r model.Refund
	if err := findByID(s.db.WithContext(ctx), &r, id, "refund"); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRefund 网关收款原路退回, 手工收款只做记录; toCredit 时退到客户余额
func (s *RefundService) CreateRefund(ctx context.Context, req dto.CreateRefundRequest) (*model.Refund, error) {
	if req.Amount <= 0 {
		return nil, validationf("退款金额必须大于 0")
	}
	db := s.db.WithContext(ctx)
	var p model.Payment
	if err := findByID(db, &p, req.PaymentID, "payment"); err != nil {
		return nil, err
	}
	if err := checkRefundable(&p, req.Amount); err != nil {
		return nil, err
	}
	// 超额付款已转入余额, 原路退回时须先从余额扣回
	if _, fromCredit := p.RefundSplit(req.Amount); fromCredit > 0 && !req.ToCredit {
		customer, err := requireCustomer(db, p.CustomerID)
		if err != nil {
			return nil, err
		}
		if customer.CreditBalance < fromCredit {
			return nil, validationf("超额付款转入的余额已使用, 可用 %d, 需扣回 %d", customer.CreditBalance, fromCredit)
		}
	}

	refund := &model.Refund{
		PaymentID: p.ID,
		InvoiceID: p.InvoiceID,
		Amount:    req.Amount,
		Reason:    req.Reason,
		ToCredit:  req.ToCredit,
		Status:    model.RefundStatusCompleted,
	}
	if !req.ToCredit && p.Gateway != "manual" && p.TransactionRef != "" {
		res, err := s.gateway.Refund(ctx, payment.RefundRequest{
			TransactionRef: p.TransactionRef,
			Amount:         req.Amount,
			Reason:         req.Reason,
		})
		if err != nil {
			refund.Status = model.RefundStatusFailed
			if cerr := db.Create(refund).Error; cerr != nil {
				logger.Logger.Error("记录失败退款出错", zap.Uint("payment_id", p.ID), zap.Error(cerr))
			}
			return refund, fmt.Errorf("%w: 网关退款失败: %v", ErrUpstream, err)
		}
		refund.GatewayRef = res.RefundRef
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		// 网关调用期间可能有并发退款, 加锁后重新校验
		if err := findByID(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &p, req.PaymentID, "payment"); err != nil {
			return err
		}
		if err := checkRefundable(&p, req.Amount); err != nil {
			return err
		}
		if err := tx.Create(refund).Error; err != nil {
			return err
		}
		fromInvoice, fromCredit := p.RefundSplit(req.Amount)
		p.RefundedAmount += req.Amount
		p.Status = model.PaymentStatusPartiallyRefunded
		if p.RefundedAmount >= p.Amount {
			p.Status = model.PaymentStatusRefunded
		}
		if err := tx.Model(&p).Select("refunded_amount", "status").Updates(&p).Error; err != nil {
			return err
		}

		if fromInvoice > 0 {
			inv, err := loadInvoice(tx, p.InvoiceID, true)
			if err != nil {
				return err
			}
			wasPaid := inv.Status == model.InvoiceStatusPaid
			inv.AmountPaid -= min(fromInvoice, inv.AmountPaid)
			// 只有已结清的账单会因退款改变状态, 未结清的账单恢复欠款后继续可收款
			if wasPaid {
				inv.PaidAt = nil
				inv.Status = model.InvoiceStatusIssued
				if inv.AmountPaid == 0 && inv.CreditApplied == 0 {
					inv.Status = model.InvoiceStatusRefunded
				}
			}
			if err := tx.Model(inv).Select("amount_paid", "status", "paid_at").Updates(inv).Error; err != nil {
				return err
			}
		}

		if req.ToCredit {
			// 超额部分本就在余额中, 只有冲减账单的部分需要入账
			if fromInvoice == 0 {
				return nil
			}
			desc := fmt.Sprintf("支付 %d 退款转余额", p.ID)
			return postCredit(tx, p.CustomerID, fromInvoice, model.CreditTypeRefund, p.InvoiceID, desc)
		}
		if fromCredit > 0 {
			desc := fmt.Sprintf("支付 %d 退款, 扣回超额付款余额", p.ID)
			return postCredit(tx, p.CustomerID, -fromCredit, model.CreditTypeRefund, p.InvoiceID, desc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("退款已完成",
		zap.Uint("refund_id", refund.ID),
		zap.Uint("payment_id", p.ID),
		zap.Int64("amount", refund.Amount),
		zap.Bool("to_credit", refund.ToCredit))
	return refund, nil
}

func checkRefundable(p *model.Payment, amount int64) error {
	if p.Status != model.PaymentStatusCompleted && p.Status != model.PaymentStatusPartiallyRefunded {
		return invalidStatef("支付状态为 %s, 不能退款", p.Status)
	}
	if amount > p.Refundable() {
		return validationf("退款金额 %d 超过可退金额 %d", amount, p.Refundable())
	}
	return nil
}
