package service

import (
	"context"
	"strings"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/config"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CustomerService struct {
	db      *gorm.DB
	billing config.BillingConfig
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *CustomerService) GetAll(ctx context.Context, filter dto.CustomerFilter) (PageResult[model.Customer], error) {
	query := s.db.WithContext(ctx).Model(&model.Customer{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company_name) LIKE ? OR email LIKE ?",
			like, like, like, like)
	}
	return paginate[model.Customer](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

func (s *CustomerService) GetByID(ctx context.Context, id uint) (*model.Customer, error) {
	var c model.Customer
	if err := findByID(s.db.WithContext(ctx), &c, id, "customer"); err != nil {
		return nil, err
	}
	return &c, nil
}

// emailTaken 软删除的客户仍占用唯一索引, 因此使用 Unscoped 查询
func (s *CustomerService) emailTaken(db *gorm.DB, email string, excludeID uint) (bool, error) {
	var count int64
	query := db.Unscoped().Model(&model.Customer{}).Where("email = ?", email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *CustomerService) Create(ctx context.Context, req dto.CreateCustomerRequest) (*model.Customer, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, validationf("email 不能为空")
	}
	if strings.TrimSpace(req.FirstName) == "" && strings.TrimSpace(req.CompanyName) == "" {
		return nil, validationf("firstName 与 companyName 至少填写一个")
	}
	db := s.db.WithContext(ctx)
	taken, err := s.emailTaken(db, email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("邮箱 %s 已被使用", email)
	}

	currency := s.billing.BaseCurrency
	if strings.TrimSpace(req.Currency) != "" {
		if currency, err = ValidateCode(req.Currency); err != nil {
			return nil, err
		}
	}
	c := model.Customer{
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Email:       email,
		Phone:       req.Phone,
		Address1:    req.Address1,
		Address2:    req.Address2,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		Country:     strings.ToUpper(req.Country),
		VATNumber:   strings.TrimSpace(req.VATNumber),
		Currency:    currency,
		Status:      model.CustomerStatusActive,
		Notes:       req.Notes,
	}
	if err := db.Create(&c).Error; err != nil {
		return nil, err
	}
	logger.Logger.Info("客户已创建", zap.Uint("customer_id", c.ID), zap.String("email", c.Email))
	return &c, nil
}

func (s *CustomerService) Update(ctx context.Context, id uint, req dto.UpdateCustomerRequest) (*model.Customer, error) {
	db := s.db.WithContext(ctx)
	c, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return nil, validationf("email 不能为空")
		}
		if email != c.Email {
			taken, err := s.emailTaken(db, email, c.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, conflictf("邮箱 %s 已被使用", email)
			}
			c.Email = email
		}
	}
	setString(&c.FirstName, req.FirstName)
	setString(&c.LastName, req.LastName)
	setString(&c.CompanyName, req.CompanyName)
	setString(&c.Phone, req.Phone)
	setString(&c.Address1, req.Address1)
	setString(&c.Address2, req.Address2)
	setString(&c.City, req.City)
	setString(&c.State, req.State)
	setString(&c.PostalCode, req.PostalCode)
	setString(&c.VATNumber, req.VATNumber)
	setString(&c.Status, req.Status)
	setString(&c.Notes, req.Notes)
	if req.Country != nil {
		c.Country = strings.ToUpper(*req.Country)
	}
	if req.Currency != nil {
		code, err := ValidateCode(*req.Currency)
		if err != nil {
			return nil, err
		}
		if code != c.Currency {
			if err := s.checkCurrencyChange(db, c); err != nil {
				return nil, err
			}
			c.Currency = code
		}
	}
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.CompanyName) == "" {
		return nil, validationf("firstName 与 companyName 至少填写一个")
	}
	if err := db.Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// checkCurrencyChange 余额和未结账单按客户币种记账, 两者都清零后才能换币种
func (s *CustomerService) checkCurrencyChange(db *gorm.DB, c *model.Customer) error {
	if c.CreditBalance != 0 {
		return conflictf("客户余额 %d 未清零, 不能更换币种", c.CreditBalance)
	}
	var open int64
	if err := db.Model(&model.Invoice{}).
		Where("customer_id = ? AND status IN ?", c.ID, []string{model.InvoiceStatusIssued, model.InvoiceStatusOverdue}).
		Count(&open).Error; err != nil {
		return err
	}
	if open > 0 {
		return conflictf("客户仍有 %d 张未结账单, 不能更换币种", open)
	}
	return nil
}

// Delete 存在未结账单或在用服务时拒绝删除
func (s *CustomerService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Customer
		if err := findByID(tx, &c, id, "customer"); err != nil {
			return err
		}
		checks := []struct {
			model interface{}
			where string
			args  []interface{}
			what  string
		}{
			{&model.Invoice{}, "customer_id = ? AND status IN ?", []interface{}{id, []string{model.InvoiceStatusIssued, model.InvoiceStatusOverdue}}, "未结账单"},
			{&model.HostingAccount{}, "customer_id = ? AND status IN ?", []interface{}{id, []string{model.AccountStatusPending, model.AccountStatusActive, model.AccountStatusSuspended}}, "在用主机账号"},
			{&model.Domain{}, "customer_id = ? AND status IN ?", []interface{}{id, []string{model.DomainStatusPending, model.DomainStatusActive}}, "在用域名"},
		}
		for _, chk := range checks {
			var count int64
			if err := tx.Model(chk.model).Where(chk.where, chk.args...).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return conflictf("客户 %d 仍有 %d 个%s", id, count, chk.what)
			}
		}
		if err := tx.Where("customer_id = ?", id).Delete(&model.CustomerPaymentMethod{}).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
}

// requireCustomer 校验客户存在, 供其它服务在事务内调用
func requireCustomer(db *gorm.DB, id uint) (*model.Customer, error) {
	var c model.Customer
	if err := findByID(db, &c, id, "customer"); err != nil {
		return nil, err
	}
	return &c, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
