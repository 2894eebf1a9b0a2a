package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isp-backoffice/internal/integration/panel"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	jnow "github.com/jinzhu/now"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 下次到期日落在该窗口内的账号生成续费账单
const recurringInvoiceWindow = 7 * 24 * time.Hour

// addMonth 加一个自然月, 月末日期截断到下个月的最后一天 (1月31日 -> 2月28/29日)
func addMonth(t time.Time) time.Time {
	next := jnow.With(t).BeginningOfMonth().AddDate(0, 1, 0)
	last := jnow.With(next).EndOfMonth().Day()
	day := t.Day()
	if day > last {
		day = last
	}
	return time.Date(next.Year(), next.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// HostingManagerService 通过面板客户端管理账号生命周期; 面板调用失败时本地状态保持不变
type HostingManagerService struct {
	db         *gorm.DB
	clients    PanelClientFactory
	currencies *CurrencyService
	invoices   *InvoiceService
	emails     *EmailService
	now        func() time.Time
}

// accountContext 一次面板操作需要的上下文
type accountContext struct {
	account *model.HostingAccount
	server  *model.HostingServer
	client  panel.Client
}

func (s *HostingManagerService) prepare(ctx context.Context, id uint, allowed ...string) (*accountContext, error) {
	db := s.db.WithContext(ctx)
	var a model.HostingAccount
	if err := findByID(db, &a, id, "hosting account"); err != nil {
		return nil, err
	}
	ok := false
	for _, st := range allowed {
		if a.Status == st {
			ok = true
			break
		}
	}
	if !ok {
		return nil, invalidStatef("账号 %s 当前状态为 %s", a.Username, a.Status)
	}
	var srv model.HostingServer
	if err := findByID(db, &srv, a.ServerID, "hosting server"); err != nil {
		return nil, err
	}
	if !srv.Active {
		return nil, invalidStatef("服务器 %s 已停用", srv.Name)
	}
	client, err := s.clients(&srv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return &accountContext{account: &a, server: &srv, client: client}, nil
}

func panelError(op string, a *model.HostingAccount, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrUpstream, op, a.Username, err)
}

// Provision 在面板上创建账号并激活, 同时生成首月的草稿账单
func (s *HostingManagerService) Provision(ctx context.Context, id uint, password string) (*model.HostingAccount, *model.Invoice, error) {
	ac, err := s.prepare(ctx, id, model.AccountStatusPending)
	if err != nil {
		return nil, nil, err
	}
	db := s.db.WithContext(ctx)
	var pkg model.HostingPackage
	if err := findByID(db, &pkg, ac.account.PackageID, "hosting package"); err != nil {
		return nil, nil, err
	}
	customer, err := requireCustomer(db, ac.account.CustomerID)
	if err != nil {
		return nil, nil, err
	}
	price, err := s.currencies.Convert(ctx, pkg.MonthlyPrice, pkg.Currency, customer.Currency)
	if err != nil {
		return nil, nil, err
	}

	err = ac.client.CreateAccount(ctx, panel.CreateAccountRequest{
		Username:     ac.account.Username,
		Domain:       ac.account.PrimaryDomain,
		Plan:         pkg.PanelPlan,
		ContactEmail: customer.Email,
		Password:     password,
	})
	if err != nil {
		return nil, nil, panelError("创建账号", ac.account, err)
	}

	now := s.now()
	a := ac.account
	var inv *model.Invoice
	err = db.Transaction(func(tx *gorm.DB) error {
		start := now
		if a.NextDueDate != nil && a.NextDueDate.After(now) {
			start = *a.NextDueDate
		}
		next := addMonth(start)
		a.Status = model.AccountStatusActive
		a.NextDueDate = &next
		if err := tx.Model(a).Select("status", "next_due_date", "updated_at").Updates(a).Error; err != nil {
			return err
		}
		inv, err = s.invoices.createDraft(tx, customer, customer.Currency, "", []model.InvoiceItem{{
			Description: fmt.Sprintf("主机 %s (%s) %s 至 %s", pkg.Name, a.PrimaryDomain,
				start.Format("2006-01-02"), next.Format("2006-01-02")),
			Quantity:  1,
			UnitPrice: price,
			ItemType:  model.ItemTypeHosting,
			RelatedID: a.ID,
			Taxable:   true,
		}})
		return err
	})
	if err != nil {
		logger.Logger.Error("面板账号已创建但本地保存失败", zap.String("username", a.Username), zap.Error(err))
		return nil, nil, err
	}
	logger.Logger.Info("主机账号已开通", zap.String("username", a.Username), zap.String("server", ac.server.Name))
	return a, inv, nil
}

func (s *HostingManagerService) Suspend(ctx context.Context, id uint, reason string) (*model.HostingAccount, error) {
	ac, err := s.prepare(ctx, id, model.AccountStatusActive)
	if err != nil {
		return nil, err
	}
	if err := ac.client.SuspendAccount(ctx, ac.account.Username, reason); err != nil {
		return nil, panelError("暂停账号", ac.account, err)
	}
	a := ac.account
	a.Status = model.AccountStatusSuspended
	a.SuspendReason = reason
	if err := s.db.WithContext(ctx).Model(a).Select("status", "suspend_reason", "updated_at").Updates(a).Error; err != nil {
		return nil, err
	}
	logger.Logger.Info("主机账号已暂停", zap.String("username", a.Username), zap.String("reason", reason))
	if a.CustomerID != 0 {
		if customer, err := requireCustomer(s.db.WithContext(ctx), a.CustomerID); err == nil {
			s.emails.notify(ctx, customer, TemplateHostingSuspended, map[string]interface{}{
				"Username": a.Username,
				"Domain":   a.PrimaryDomain,
				"Reason":   reason,
			})
		}
	}
	return a, nil
}

func (s *HostingManagerService) Unsuspend(ctx context.Context, id uint) (*model.HostingAccount, error) {
	ac, err := s.prepare(ctx, id, model.AccountStatusSuspended)
	if err != nil {
		return nil, err
	}
	if err := ac.client.UnsuspendAccount(ctx, ac.account.Username); err != nil {
		return nil, panelError("恢复账号", ac.account, err)
	}
	a := ac.account
	a.Status = model.AccountStatusActive
	a.SuspendReason = ""
	if err := s.db.WithContext(ctx).Model(a).Select("status", "suspend_reason", "updated_at").Updates(a).Error; err != nil {
		return nil, err
	}
	logger.Logger.Info("主机账号已恢复", zap.String("username", a.Username))
	return a, nil
}

// Terminate 删除面板账号, 本地保留记录但清空邮箱与附加域名
func (s *HostingManagerService) Terminate(ctx context.Context, id uint) (*model.HostingAccount, error) {
	ac, err := s.prepare(ctx, id, model.AccountStatusActive, model.AccountStatusSuspended)
	if err != nil {
		return nil, err
	}
	if err := ac.client.TerminateAccount(ctx, ac.account.Username); err != nil {
		return nil, panelError("终止账号", ac.account, err)
	}
	a := ac.account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a.Status = model.AccountStatusTerminated
		a.NextDueDate = nil
		if err := tx.Model(a).Select("status", "next_due_date", "updated_at").Updates(a).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", a.ID).Delete(&model.HostingEmailAccount{}).Error; err != nil {
			return err
		}
		return tx.Where("account_id = ?", a.ID).Delete(&model.HostingAddonDomain{}).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("主机账号已终止", zap.String("username", a.Username))
	return a, nil
}

// ChangePackage 只能切换到同一服务器上启用的套餐
func (s *HostingManagerService) ChangePackage(ctx context.Context, id, packageID uint) (*model.HostingAccount, error) {
	ac, err := s.prepare(ctx, id, model.AccountStatusActive, model.AccountStatusSuspended)
	if err != nil {
		return nil, err
	}
	var pkg model.HostingPackage
	if err := findByID(s.db.WithContext(ctx), &pkg, packageID, "hosting package"); err != nil {
		return nil, err
	}
	if pkg.ServerID != ac.server.ID {
		return nil, validationf("套餐 %s 不属于服务器 %s", pkg.Name, ac.server.Name)
	}
	if !pkg.Active {
		return nil, invalidStatef("套餐 %s 已停用", pkg.Name)
	}
	if pkg.ID == ac.account.PackageID {
		return ac.account, nil
	}
	if err := ac.client.ChangePackage(ctx, ac.account.Username, pkg.PanelPlan); err != nil {
		return nil, panelError("更换套餐", ac.account, err)
	}
	a := ac.account
	a.PackageID = pkg.ID
	if err := s.db.WithContext(ctx).Model(a).Select("package_id", "updated_at").Updates(a).Error; err != nil {
		return nil, err
	}
	logger.Logger.Info("主机账号已更换套餐", zap.String("username", a.Username), zap.String("package", pkg.Name))
	return a, nil
}

// GenerateRecurringInvoices 为即将到期的活跃账号签发续费账单, 并把到期日推后一个月
func (s *HostingManagerService) GenerateRecurringInvoices(ctx context.Context) (int, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	var accounts []model.HostingAccount
	if err := db.Where("status = ? AND customer_id <> 0 AND next_due_date IS NOT NULL AND next_due_date <= ?",
		model.AccountStatusActive, now.Add(recurringInvoiceWindow)).
		Order("next_due_date asc").
		Find(&accounts).Error; err != nil {
		return 0, err
	}

	var errs []error
	count := 0
	for i := range accounts {
		if err := s.invoiceAccount(ctx, &accounts[i]); err != nil {
			logger.Logger.Error("生成主机续费账单失败", zap.String("username", accounts[i].Username), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", accounts[i].Username, err))
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

func (s *HostingManagerService) invoiceAccount(ctx context.Context, a *model.HostingAccount) error {
	db := s.db.WithContext(ctx)
	var pkg model.HostingPackage
	if err := findByID(db, &pkg, a.PackageID, "hosting package"); err != nil {
		return err
	}
	customer, err := requireCustomer(db, a.CustomerID)
	if err != nil {
		return err
	}
	price, err := s.currencies.Convert(ctx, pkg.MonthlyPrice, pkg.Currency, customer.Currency)
	if err != nil {
		return err
	}
	period := *a.NextDueDate
	next := addMonth(period)

	var inv *model.Invoice
	err = db.Transaction(func(tx *gorm.DB) error {
		// 条件更新保证同一周期只开一次账单
		res := tx.Model(&model.HostingAccount{}).
			Where("id = ? AND next_due_date = ?", a.ID, period).
			Updates(map[string]interface{}{"next_due_date": next, "updated_at": s.now()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return conflictf("账号 %s 的到期日已被修改", a.Username)
		}
		draft, err := s.invoices.createDraft(tx, customer, customer.Currency, "", []model.InvoiceItem{{
			Description: fmt.Sprintf("主机 %s (%s) %s 至 %s", pkg.Name, a.PrimaryDomain,
				period.Format("2006-01-02"), next.Format("2006-01-02")),
			Quantity:  1,
			UnitPrice: price,
			ItemType:  model.ItemTypeHosting,
			RelatedID: a.ID,
			Taxable:   true,
		}})
		if err != nil {
			return err
		}
		inv, customer, err = s.invoices.issue(tx, draft.ID)
		return err
	})
	if err != nil {
		return err
	}
	a.NextDueDate = &next
	s.invoices.afterIssue(ctx, inv, customer)
	return nil
}
