package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/integration/registrar"
	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/validator"
	"github.com/isp-backoffice/pkg/logger"
	jnow "github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 到期前这些天数发送提醒
var expiryReminderDays = []int{30, 14, 7, 3, 1}

// ExpiryResult 到期扫描的结果
type ExpiryResult struct {
	Expired  int64
	Reminded int
}

type DomainService struct {
	db         *gorm.DB
	clients    RegistrarClientFactory
	currencies *CurrencyService
	invoices   *InvoiceService
	emails     *EmailService
	metrics    *metrics.Metrics
	now        func() time.Time
}

func (s *DomainService) GetAll(ctx context.Context, filter dto.DomainFilter) (PageResult[model.Domain], error) {
	query := s.db.WithContext(ctx).Model(&model.Domain{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("name LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}
	return paginate[model.Domain](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "name asc")
}

func (s *DomainService) GetByID(ctx context.Context, id uint) (*model.Domain, error) {
	var d model.Domain
	if err := findByID(s.db.WithContext(ctx), &d, id, "domain"); err != nil {
		return nil, err
	}
	return &d, nil
}

// normalizeNameservers 小写、去重, 数量必须在 2-13 之间
func normalizeNameservers(list []string) (model.StringList, error) {
	seen := make(map[string]bool, len(list))
	out := make(model.StringList, 0, len(list))
	for _, ns := range list {
		ns = validator.NormalizeDomain(ns)
		if err := validator.ValidateHostname(ns); err != nil {
			return nil, validationf("NS %v", err)
		}
		if !seen[ns] {
			seen[ns] = true
			out = append(out, ns)
		}
	}
	if len(out) < 2 || len(out) > 13 {
		return nil, validationf("NS 数量必须在 2 到 13 之间, 实际 %d", len(out))
	}
	return out, nil
}

func (s *DomainService) Create(ctx context.Context, req dto.CreateDomainRequest) (*model.Domain, error) {
	name := validator.NormalizeDomain(req.Name)
	if err := validator.ValidateDomainName(name); err != nil {
		return nil, validationf("%v", err)
	}
	var nameservers model.StringList
	if len(req.Nameservers) > 0 {
		var err error
		if nameservers, err = normalizeNameservers(req.Nameservers); err != nil {
			return nil, err
		}
	}

	var d *model.Domain
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireCustomer(tx, req.CustomerID); err != nil {
			return err
		}
		tld, err := findTld(tx, name)
		if err != nil {
			return err
		}
		var count int64
		if err := tx.Unscoped().Model(&model.Domain{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("域名 %s 已存在", name)
		}
		registrarID := req.RegistrarID
		if registrarID == 0 {
			registrarID = tld.DefaultRegistrarID
		} else if err := findByID(tx, &model.Registrar{}, registrarID, "registrar"); err != nil {
			return err
		}
		d = &model.Domain{
			CustomerID:        req.CustomerID,
			Name:              name,
			TldID:             tld.ID,
			RegistrarID:       registrarID,
			Status:            model.DomainStatusPending,
			AutoRenew:         req.AutoRenew,
			PrivacyProtection: req.PrivacyProtection,
			Nameservers:       nameservers,
		}
		return tx.Create(d).Error
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DomainService) Update(ctx context.Context, id uint, req dto.UpdateDomainRequest) (*model.Domain, error) {
	var d model.Domain
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findByID(tx, &d, id, "domain"); err != nil {
			return err
		}
		if req.CustomerID != nil && *req.CustomerID != d.CustomerID {
			if _, err := requireCustomer(tx, *req.CustomerID); err != nil {
				return err
			}
			d.CustomerID = *req.CustomerID
		}
		if req.RegistrarID != nil && *req.RegistrarID != d.RegistrarID {
			if err := findByID(tx, &model.Registrar{}, *req.RegistrarID, "registrar"); err != nil {
				return err
			}
			d.RegistrarID = *req.RegistrarID
		}
		setString(&d.Status, req.Status)
		setBool(&d.AutoRenew, req.AutoRenew)
		setBool(&d.PrivacyProtection, req.PrivacyProtection)
		return tx.Save(&d).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete 活跃域名需先取消; 关联的 DNS 区域解除绑定
func (s *DomainService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d model.Domain
		if err := findByID(tx, &d, id, "domain"); err != nil {
			return err
		}
		if d.Status == model.DomainStatusActive {
			return invalidStatef("域名 %s 仍处于活跃状态", d.Name)
		}
		if err := tx.Model(&model.DnsZone{}).Where("domain_id = ?", id).Update("domain_id", 0).Error; err != nil {
			return err
		}
		return tx.Delete(&d).Error
	})
}

// resolveRegistrar 返回域名应使用的注册商及其客户端
func (s *DomainService) resolveRegistrar(db *gorm.DB, registrarID uint) (*model.Registrar, registrar.Client, error) {
	if registrarID == 0 {
		return nil, nil, validationf("未指定注册商且 TLD 没有默认注册商")
	}
	var r model.Registrar
	if err := findByID(db, &r, registrarID, "registrar"); err != nil {
		return nil, nil, err
	}
	if !r.Active {
		return nil, nil, invalidStatef("注册商 %s 已停用", r.Name)
	}
	client, err := s.clients(&r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &r, client, nil
}

func upstreamError(op, domain string, err error) error {
	if errors.Is(err, registrar.ErrUnavailable) {
		return conflictf("域名 %s 不可注册", domain)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUpstream, op, domain, err)
}

// CheckAvailability 通过 TLD 的默认注册商查询; 本地价格表有记录时以本地价格为准
func (s *DomainService) CheckAvailability(ctx context.Context, name string) (*registrar.Availability, error) {
	db := s.db.WithContext(ctx)
	name = validator.NormalizeDomain(name)
	if err := validator.ValidateDomainName(name); err != nil {
		return nil, validationf("%v", err)
	}
	tld, err := findTld(db, name)
	if err != nil {
		return nil, err
	}
	if !tld.Active {
		return nil, invalidStatef("TLD %s 未开放注册", tld.Extension)
	}
	_, client, err := s.resolveRegistrar(db, tld.DefaultRegistrarID)
	if err != nil {
		return nil, err
	}
	avail, err := client.CheckAvailability(ctx, name)
	if err != nil {
		return nil, upstreamError("查询", name, err)
	}
	if price, err := priceFor(db, tld.ID, tld.DefaultRegistrarID); err == nil && !avail.Premium {
		avail.Price = price.RegisterPrice
		avail.Currency = price.Currency
	}
	return avail, nil
}

// domainCharge 单年价格, 已换算为客户币种
type domainCharge struct {
	customer  *model.Customer
	tld       *model.Tld
	registrar *model.Registrar
	client    registrar.Client
	unitPrice int64
}

func (s *DomainService) prepareCharge(ctx context.Context, d *model.Domain, renew bool) (*domainCharge, error) {
	db := s.db.WithContext(ctx)
	customer, err := requireCustomer(db, d.CustomerID)
	if err != nil {
		return nil, err
	}
	var tld model.Tld
	if err := findByID(db, &tld, d.TldID, "tld"); err != nil {
		return nil, err
	}
	if !renew && !tld.Active {
		return nil, invalidStatef("TLD %s 未开放注册", tld.Extension)
	}
	registrarID := d.RegistrarID
	if registrarID == 0 {
		registrarID = tld.DefaultRegistrarID
	}
	r, client, err := s.resolveRegistrar(db, registrarID)
	if err != nil {
		return nil, err
	}
	price, err := priceFor(db, tld.ID, r.ID)
	if err != nil {
		return nil, err
	}
	amount := price.RegisterPrice
	if renew {
		amount = price.RenewPrice
	}
	converted, err := s.currencies.Convert(ctx, amount, price.Currency, customer.Currency)
	if err != nil {
		return nil, err
	}
	return &domainCharge{customer: customer, tld: &tld, registrar: r, client: client, unitPrice: converted}, nil
}

func contactFor(c *model.Customer) registrar.Contact {
	return registrar.Contact{
		Name:       strings.TrimSpace(c.FirstName + " " + c.LastName),
		Company:    c.CompanyName,
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    strings.TrimSpace(c.Address1 + " " + c.Address2),
		City:       c.City,
		State:      c.State,
		PostalCode: c.PostalCode,
		Country:    c.Country,
	}
}

// Register 在注册商处注册待注册域名, 成功后生成草稿账单
func (s *DomainService) Register(ctx context.Context, id uint, years int) (*model.Domain, *model.Invoice, error) {
	if years < 1 || years > 10 {
		return nil, nil, validationf("注册年限必须在 1 到 10 之间")
	}
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Status != model.DomainStatusPending {
		return nil, nil, invalidStatef("域名 %s 状态为 %s, 不能注册", d.Name, d.Status)
	}
	charge, err := s.prepareCharge(ctx, d, false)
	if err != nil {
		return nil, nil, err
	}

	// 1. 调用注册商, 不占用事务
	reg, err := charge.client.Register(ctx, registrar.RegisterRequest{
		Domain:      d.Name,
		Years:       years,
		Nameservers: d.Nameservers,
		Privacy:     d.PrivacyProtection,
		Contact:     contactFor(charge.customer),
	})
	if err != nil {
		return nil, nil, upstreamError("注册", d.Name, err)
	}

	// 2. 落库并生成账单
	now := s.now()
	var inv *model.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.Domain
		if err := findByID(tx, &locked, id, "domain"); err != nil {
			return err
		}
		expires := reg.ExpiresAt
		locked.Status = model.DomainStatusActive
		locked.RegisteredAt = &now
		locked.ExpiresAt = &expires
		locked.RegistrarID = charge.registrar.ID
		if err := tx.Save(&locked).Error; err != nil {
			return err
		}
		*d = locked
		inv, err = s.invoices.createDraft(tx, charge.customer, charge.customer.Currency, "", []model.InvoiceItem{{
			Description: fmt.Sprintf("域名注册 %s (%d 年)", d.Name, years),
			Quantity:    years,
			UnitPrice:   charge.unitPrice,
			ItemType:    model.ItemTypeDomain,
			RelatedID:   d.ID,
			Taxable:     true,
		}})
		return err
	})
	if err != nil {
		// 注册商已扣费但本地写入失败, 需要人工对账
		logger.Logger.Error("域名已在注册商处注册但本地保存失败",
			zap.String("domain", d.Name),
			zap.String("order", reg.OrderRef),
			zap.Error(err))
		return nil, nil, err
	}
	s.metrics.IncrementDomainsRegistered()
	logger.Logger.Info("域名注册成功",
		zap.String("domain", d.Name),
		zap.String("registrar", charge.registrar.Name),
		zap.Time("expires_at", reg.ExpiresAt))
	return d, inv, nil
}

// Renew 续费活跃或已过期的域名
func (s *DomainService) Renew(ctx context.Context, id uint, years int) (*model.Domain, *model.Invoice, error) {
	if years < 1 || years > 10 {
		return nil, nil, validationf("续费年限必须在 1 到 10 之间")
	}
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Status != model.DomainStatusActive && d.Status != model.DomainStatusExpired {
		return nil, nil, invalidStatef("域名 %s 状态为 %s, 不能续费", d.Name, d.Status)
	}
	charge, err := s.prepareCharge(ctx, d, true)
	if err != nil {
		return nil, nil, err
	}
	reg, err := charge.client.Renew(ctx, d.Name, years)
	if err != nil {
		return nil, nil, upstreamError("续费", d.Name, err)
	}

	var inv *model.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked model.Domain
		if err := findByID(tx, &locked, id, "domain"); err != nil {
			return err
		}
		expires := reg.ExpiresAt
		locked.Status = model.DomainStatusActive
		locked.ExpiresAt = &expires
		if err := tx.Save(&locked).Error; err != nil {
			return err
		}
		*d = locked
		inv, err = s.invoices.createDraft(tx, charge.customer, charge.customer.Currency, "", []model.InvoiceItem{{
			Description: fmt.Sprintf("域名续费 %s (%d 年)", d.Name, years),
			Quantity:    years,
			UnitPrice:   charge.unitPrice,
			ItemType:    model.ItemTypeDomain,
			RelatedID:   d.ID,
			Taxable:     true,
		}})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Logger.Info("域名续费成功", zap.String("domain", d.Name), zap.Time("expires_at", reg.ExpiresAt))
	return d, inv, nil
}

// UpdateNameservers 活跃域名先推送到注册商, 成功后再保存
func (s *DomainService) UpdateNameservers(ctx context.Context, id uint, nameservers []string) (*model.Domain, error) {
	list, err := normalizeNameservers(nameservers)
	if err != nil {
		return nil, err
	}
	d, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == model.DomainStatusActive {
		_, client, err := s.resolveRegistrar(s.db.WithContext(ctx), d.RegistrarID)
		if err != nil {
			return nil, err
		}
		if err := client.UpdateNameservers(ctx, d.Name, list); err != nil {
			return nil, upstreamError("修改 NS", d.Name, err)
		}
	}
	d.Nameservers = list
	if err := s.db.WithContext(ctx).Model(d).Select("nameservers", "updated_at").Updates(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetExpiring 未来 days 天内到期的活跃域名, 按到期时间排序
func (s *DomainService) GetExpiring(ctx context.Context, days int) ([]model.Domain, error) {
	if days <= 0 {
		return nil, validationf("days 必须为正数")
	}
	now := s.now()
	var domains []model.Domain
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?",
			model.DomainStatusActive, now, now.AddDate(0, 0, days)).
		Order("expires_at asc").
		Find(&domains).Error
	return domains, err
}

// ProcessExpirations 将已过期的活跃域名标记为 expired, 并对命中提醒天数的域名发送邮件
func (s *DomainService) ProcessExpirations(ctx context.Context) (*ExpiryResult, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	res := db.Model(&model.Domain{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", model.DomainStatusActive, now).
		Updates(map[string]interface{}{"status": model.DomainStatusExpired, "updated_at": now})
	if res.Error != nil {
		return nil, res.Error
	}
	result := &ExpiryResult{Expired: res.RowsAffected}

	maxDays := expiryReminderDays[0]
	domains, err := s.GetExpiring(ctx, maxDays)
	if err != nil {
		return nil, err
	}
	today := jnow.With(now).BeginningOfDay()
	customers := make(map[uint]*model.Customer)
	for i := range domains {
		d := &domains[i]
		days := int(jnow.With(*d.ExpiresAt).BeginningOfDay().Sub(today).Hours() / 24)
		if !shouldRemind(days) {
			continue
		}
		customer, ok := customers[d.CustomerID]
		if !ok {
			c, err := requireCustomer(db, d.CustomerID)
			if err != nil {
				logger.Logger.Warn("到期提醒找不到客户", zap.String("domain", d.Name), zap.Error(err))
				continue
			}
			customers[d.CustomerID], customer = c, c
		}
		s.emails.notify(ctx, customer, TemplateDomainExpiring, map[string]interface{}{
			"Domain":    d.Name,
			"ExpiresAt": d.ExpiresAt.Format("2006-01-02"),
			"Days":      days,
			"AutoRenew": d.AutoRenew,
		})
		result.Reminded++
	}
	if result.Expired > 0 || result.Reminded > 0 {
		logger.Logger.Info("域名到期扫描完成",
			zap.Int64("expired", result.Expired),
			zap.Int("reminded", result.Reminded))
	}
	return result, nil
}

func shouldRemind(days int) bool {
	for _, d := range expiryReminderDays {
		if d == days {
			return true
		}
	}
	return false
}
