package service

import (
	"context"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"gorm.io/gorm"
)

// CustomerPaymentMethodService 客户保存的支付方式
type CustomerPaymentMethodService struct {
	db  *gorm.DB
	now func() time.Time
}

func (s *CustomerPaymentMethodService) GetAll(ctx context.Context, customerID uint) ([]model.CustomerPaymentMethod, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireCustomer(db, customerID); err != nil {
		return nil, err
	}
	var methods []model.CustomerPaymentMethod
	err := db.Where("customer_id = ?", customerID).Order("is_default desc, id desc").Find(&methods).Error
	return methods, err
}

func (s *CustomerPaymentMethodService) GetByID(ctx context.Context, customerID, id uint) (*model.CustomerPaymentMethod, error) {
	return s.find(s.db.WithContext(ctx), customerID, id)
}

func (s *CustomerPaymentMethodService) find(db *gorm.DB, customerID, id uint) (*model.CustomerPaymentMethod, error) {
	var m model.CustomerPaymentMethod
	if err := findByID(db.Where("customer_id = ?", customerID), &m, id, "payment method"); err != nil {
		return nil, err
	}
	return &m, nil
}

// validateCard 卡片必须有 4 位尾号且未过期 (当月仍有效)
func (s *CustomerPaymentMethodService) validateCard(m *model.CustomerPaymentMethod) error {
	if m.Type != model.PaymentMethodCard {
		return nil
	}
	if len(m.Last4) != 4 {
		return validationf("卡片尾号必须为 4 位数字")
	}
	for _, r := range m.Last4 {
		if r < '0' || r > '9' {
			return validationf("卡片尾号必须为 4 位数字")
		}
	}
	if m.ExpMonth < 1 || m.ExpMonth > 12 || m.ExpYear == 0 {
		return validationf("卡片有效期无效")
	}
	now := s.now()
	if m.ExpYear < now.Year() || (m.ExpYear == now.Year() && m.ExpMonth < int(now.Month())) {
		return validationf("卡片已过期 (%02d/%d)", m.ExpMonth, m.ExpYear)
	}
	return nil
}

// Create 客户的第一个支付方式自动成为默认
func (s *CustomerPaymentMethodService) Create(ctx context.Context, customerID uint, req dto.CreatePaymentMethodRequest) (*model.CustomerPaymentMethod, error) {
	m := model.CustomerPaymentMethod{
		CustomerID:   customerID,
		Type:         req.Type,
		Label:        req.Label,
		Brand:        req.Brand,
		Last4:        req.Last4,
		ExpMonth:     req.ExpMonth,
		ExpYear:      req.ExpYear,
		GatewayToken: req.GatewayToken,
	}
	if err := s.validateCard(&m); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireCustomer(tx, customerID); err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&model.CustomerPaymentMethod{}).Where("customer_id = ?", customerID).Count(&existing).Error; err != nil {
			return err
		}
		m.IsDefault = req.IsDefault || existing == 0
		if m.IsDefault {
			if err := clearDefault(tx, customerID); err != nil {
				return err
			}
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *CustomerPaymentMethodService) Update(ctx context.Context, customerID, id uint, req dto.UpdatePaymentMethodRequest) (*model.CustomerPaymentMethod, error) {
	db := s.db.WithContext(ctx)
	m, err := s.find(db, customerID, id)
	if err != nil {
		return nil, err
	}
	setString(&m.Label, req.Label)
	setInt(&m.ExpMonth, req.ExpMonth)
	setInt(&m.ExpYear, req.ExpYear)
	if err := s.validateCard(m); err != nil {
		return nil, err
	}
	if err := db.Save(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Delete 删除默认支付方式时, 最新的剩余支付方式成为默认
func (s *CustomerPaymentMethodService) Delete(ctx context.Context, customerID, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := s.find(tx, customerID, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(m).Error; err != nil {
			return err
		}
		if !m.IsDefault {
			return nil
		}
		var next model.CustomerPaymentMethod
		err = tx.Where("customer_id = ?", customerID).Order("id desc").Limit(1).Find(&next).Error
		if err != nil || next.ID == 0 {
			return err
		}
		return tx.Model(&next).Update("is_default", true).Error
	})
}

func (s *CustomerPaymentMethodService) SetDefault(ctx context.Context, customerID, id uint) (*model.CustomerPaymentMethod, error) {
	var m *model.CustomerPaymentMethod
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if m, err = s.find(tx, customerID, id); err != nil {
			return err
		}
		if err := clearDefault(tx, customerID); err != nil {
			return err
		}
		m.IsDefault = true
		return tx.Model(m).Update("is_default", true).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func clearDefault(tx *gorm.DB, customerID uint) error {
	return tx.Model(&model.CustomerPaymentMethod{}).
		Where("customer_id = ? AND is_default = ?", customerID, true).
		Update("is_default", false).Error
}
