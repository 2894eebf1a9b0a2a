package service

import (
	"context"
	"strings"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/internal/validator"
	"gorm.io/gorm"
)

// 仍占用面板资源的账号状态
var liveAccountStatuses = []string{model.AccountStatusPending, model.AccountStatusActive, model.AccountStatusSuspended}

// HostingService 主机服务器、套餐与账号的本地维护; 面板操作见 HostingManagerService
type HostingService struct {
	db *gorm.DB
}

func (s *HostingService) GetAllServers(ctx context.Context, page dto.PaginationRequest) (PageResult[model.HostingServer], error) {
	query := s.db.WithContext(ctx).Model(&model.HostingServer{})
	return paginate[model.HostingServer](query, Page{Page: page.Page, PageSize: page.PageSize}, "name asc")
}

func (s *HostingService) GetServer(ctx context.Context, id uint) (*model.HostingServer, error) {
	var srv model.HostingServer
	if err := findByID(s.db.WithContext(ctx), &srv, id, "hosting server"); err != nil {
		return nil, err
	}
	return &srv, nil
}

func serverNameTaken(db *gorm.DB, name string, excludeID uint) error {
	var count int64
	q := db.Unscoped().Model(&model.HostingServer{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflictf("服务器 %s 已存在", name)
	}
	return nil
}

func (s *HostingService) CreateServer(ctx context.Context, req dto.CreateHostingServerRequest) (*model.HostingServer, error) {
	db := s.db.WithContext(ctx)
	name := strings.TrimSpace(req.Name)
	host := validator.NormalizeDomain(req.Hostname)
	if err := validator.ValidateHostname(host); err != nil {
		return nil, validationf("hostname %v", err)
	}
	if err := serverNameTaken(db, name, 0); err != nil {
		return nil, err
	}
	srv := model.HostingServer{
		Name:        name,
		Hostname:    host,
		PanelType:   req.PanelType,
		APIUser:     req.APIUser,
		APIToken:    req.APIToken,
		Port:        positiveOr(req.Port, 2087),
		UseSSL:      boolOr(req.UseSSL, true),
		MaxAccounts: req.MaxAccounts,
		Active:      boolOr(req.Active, true),
	}
	if err := db.Create(&srv).Error; err != nil {
		return nil, err
	}
	return &srv, nil
}

func (s *HostingService) UpdateServer(ctx context.Context, id uint, req dto.UpdateHostingServerRequest) (*model.HostingServer, error) {
	db := s.db.WithContext(ctx)
	srv, err := s.GetServer(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != srv.Name {
		if err := serverNameTaken(db, strings.TrimSpace(*req.Name), srv.ID); err != nil {
			return nil, err
		}
		srv.Name = strings.TrimSpace(*req.Name)
	}
	if req.Hostname != nil {
		host := validator.NormalizeDomain(*req.Hostname)
		if err := validator.ValidateHostname(host); err != nil {
			return nil, validationf("hostname %v", err)
		}
		srv.Hostname = host
	}
	setString(&srv.PanelType, req.PanelType)
	setString(&srv.APIUser, req.APIUser)
	setString(&srv.APIToken, req.APIToken)
	setInt(&srv.Port, req.Port)
	setBool(&srv.UseSSL, req.UseSSL)
	setInt(&srv.MaxAccounts, req.MaxAccounts)
	setBool(&srv.Active, req.Active)
	if err := db.Save(srv).Error; err != nil {
		return nil, err
	}
	return srv, nil
}

// DeleteServer 服务器上还有套餐或在用账号时不能删除
func (s *HostingService) DeleteServer(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var srv model.HostingServer
		if err := findByID(tx, &srv, id, "hosting server"); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.HostingAccount{}).
			Where("server_id = ? AND status IN ?", id, liveAccountStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("服务器 %s 上仍有 %d 个账号", srv.Name, count)
		}
		if err := tx.Model(&model.HostingPackage{}).Where("server_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("服务器 %s 上仍有 %d 个套餐", srv.Name, count)
		}
		return tx.Delete(&srv).Error
	})
}

func (s *HostingService) GetAllPackages(ctx context.Context, page dto.PaginationRequest, serverID uint) (PageResult[model.HostingPackage], error) {
	query := s.db.WithContext(ctx).Model(&model.HostingPackage{})
	if serverID != 0 {
		query = query.Where("server_id = ?", serverID)
	}
	return paginate[model.HostingPackage](query, Page{Page: page.Page, PageSize: page.PageSize}, "server_id asc, monthly_price asc")
}

func (s *HostingService) GetPackage(ctx context.Context, id uint) (*model.HostingPackage, error) {
	var p model.HostingPackage
	if err := findByID(s.db.WithContext(ctx), &p, id, "hosting package"); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HostingService) CreatePackage(ctx context.Context, req dto.CreateHostingPackageRequest) (*model.HostingPackage, error) {
	code, err := ValidateCode(req.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetServer(ctx, req.ServerID); err != nil {
		return nil, err
	}
	p := model.HostingPackage{
		Name:         strings.TrimSpace(req.Name),
		ServerID:     req.ServerID,
		PanelPlan:    strings.TrimSpace(req.PanelPlan),
		DiskQuotaMB:  req.DiskQuotaMB,
		BandwidthMB:  req.BandwidthMB,
		MonthlyPrice: req.MonthlyPrice,
		Currency:     code,
		Active:       boolOr(req.Active, true),
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HostingService) UpdatePackage(ctx context.Context, id uint, req dto.UpdateHostingPackageRequest) (*model.HostingPackage, error) {
	p, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Currency != nil {
		code, err := ValidateCode(*req.Currency)
		if err != nil {
			return nil, err
		}
		p.Currency = code
	}
	setString(&p.Name, req.Name)
	setString(&p.PanelPlan, req.PanelPlan)
	setInt(&p.DiskQuotaMB, req.DiskQuotaMB)
	setInt(&p.BandwidthMB, req.BandwidthMB)
	if req.MonthlyPrice != nil {
		p.MonthlyPrice = *req.MonthlyPrice
	}
	setBool(&p.Active, req.Active)
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (s *HostingService) DeletePackage(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.HostingPackage
		if err := findByID(tx, &p, id, "hosting package"); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.HostingAccount{}).
			Where("package_id = ? AND status IN ?", id, liveAccountStatuses).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("套餐 %s 仍被 %d 个账号使用", p.Name, count)
		}
		return tx.Delete(&p).Error
	})
}

func (s *HostingService) GetAllAccounts(ctx context.Context, filter dto.HostingAccountFilter) (PageResult[model.HostingAccount], error) {
	query := s.db.WithContext(ctx).Model(&model.HostingAccount{})
	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.ServerID != 0 {
		query = query.Where("server_id = ?", filter.ServerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("username LIKE ? OR primary_domain LIKE ?", like, like)
	}
	return paginate[model.HostingAccount](query, Page{Page: filter.Page, PageSize: filter.PageSize}, "id desc")
}

// GetAccount 包含同步得到的邮箱与附加域名
func (s *HostingService) GetAccount(ctx context.Context, id uint) (*model.HostingAccount, error) {
	return loadAccount(s.db.WithContext(ctx), id)
}

func loadAccount(db *gorm.DB, id uint) (*model.HostingAccount, error) {
	var a model.HostingAccount
	q := db.Preload("EmailAccounts", func(db *gorm.DB) *gorm.DB { return db.Order("address asc") }).
		Preload("AddonDomains", func(db *gorm.DB) *gorm.DB { return db.Order("domain asc") })
	if err := findByID(q, &a, id, "hosting account"); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *HostingService) CreateAccount(ctx context.Context, req dto.CreateHostingAccountRequest) (*model.HostingAccount, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	domain := validator.NormalizeDomain(req.PrimaryDomain)
	if err := validator.ValidateDomainName(domain); err != nil {
		return nil, validationf("%v", err)
	}
	var a *model.HostingAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireCustomer(tx, req.CustomerID); err != nil {
			return err
		}
		var srv model.HostingServer
		if err := findByID(tx, &srv, req.ServerID, "hosting server"); err != nil {
			return err
		}
		if !srv.Active {
			return invalidStatef("服务器 %s 已停用", srv.Name)
		}
		var pkg model.HostingPackage
		if err := findByID(tx, &pkg, req.PackageID, "hosting package"); err != nil {
			return err
		}
		if pkg.ServerID != srv.ID {
			return validationf("套餐 %s 不属于服务器 %s", pkg.Name, srv.Name)
		}
		if !pkg.Active {
			return invalidStatef("套餐 %s 已停用", pkg.Name)
		}
		var count int64
		if err := tx.Unscoped().Model(&model.HostingAccount{}).
			Where("server_id = ? AND username = ?", srv.ID, username).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("服务器 %s 上已有账号 %s", srv.Name, username)
		}
		if srv.MaxAccounts > 0 {
			if err := tx.Model(&model.HostingAccount{}).
				Where("server_id = ? AND status IN ?", srv.ID, liveAccountStatuses).
				Count(&count).Error; err != nil {
				return err
			}
			if int(count) >= srv.MaxAccounts {
				return conflictf("服务器 %s 已达到账号上限 %d", srv.Name, srv.MaxAccounts)
			}
		}
		a = &model.HostingAccount{
			CustomerID:    req.CustomerID,
			ServerID:      srv.ID,
			PackageID:     pkg.ID,
			Username:      username,
			PrimaryDomain: domain,
			Status:        model.AccountStatusPending,
			NextDueDate:   req.NextDueDate,
		}
		return tx.Create(a).Error
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *HostingService) UpdateAccount(ctx context.Context, id uint, req dto.UpdateHostingAccountRequest) (*model.HostingAccount, error) {
	var a *model.HostingAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if a, err = loadAccount(tx, id); err != nil {
			return err
		}
		if req.CustomerID != nil && *req.CustomerID != a.CustomerID {
			if _, err := requireCustomer(tx, *req.CustomerID); err != nil {
				return err
			}
			a.CustomerID = *req.CustomerID
		}
		if req.PrimaryDomain != nil {
			domain := validator.NormalizeDomain(*req.PrimaryDomain)
			if err := validator.ValidateDomainName(domain); err != nil {
				return validationf("%v", err)
			}
			a.PrimaryDomain = domain
		}
		if req.NextDueDate != nil {
			a.NextDueDate = req.NextDueDate
		}
		return tx.Model(a).Select("customer_id", "primary_domain", "next_due_date", "updated_at").Updates(a).Error
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccount 只删除本地记录; 仍在面板上运行的账号需先终止
func (s *HostingService) DeleteAccount(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a model.HostingAccount
		if err := findByID(tx, &a, id, "hosting account"); err != nil {
			return err
		}
		if a.Status == model.AccountStatusActive || a.Status == model.AccountStatusSuspended {
			return invalidStatef("账号 %s 仍在面板上运行, 请先终止", a.Username)
		}
		if err := tx.Where("account_id = ?", id).Delete(&model.HostingEmailAccount{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&model.HostingAddonDomain{}).Error; err != nil {
			return err
		}
		return tx.Delete(&a).Error
	})
}

func (s *HostingService) GetEmailAccounts(ctx context.Context, accountID uint) ([]model.HostingEmailAccount, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.EmailAccounts, nil
}

func (s *HostingService) GetAddonDomains(ctx context.Context, accountID uint) ([]model.HostingAddonDomain, error) {
	a, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return a.AddonDomains, nil
}
