package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/isp-backoffice/internal/dto"
	"github.com/isp-backoffice/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrarService 注册商、TLD 与价格表的维护
type RegistrarService struct {
	db *gorm.DB
}

func (s *RegistrarService) GetAll(ctx context.Context, page dto.PaginationRequest) (PageResult[model.Registrar], error) {
	query := s.db.WithContext(ctx).Model(&model.Registrar{})
	return paginate[model.Registrar](query, Page{Page: page.Page, PageSize: page.PageSize}, "name asc")
}

func (s *RegistrarService) GetByID(ctx context.Context, id uint) (*model.Registrar, error) {
	var r model.Registrar
	if err := findByID(s.db.WithContext(ctx), &r, id, "registrar"); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RegistrarService) nameTaken(db *gorm.DB, name string, excludeID uint) error {
	var count int64
	q := db.Unscoped().Model(&model.Registrar{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflictf("注册商 %s 已存在", name)
	}
	return nil
}

func (s *RegistrarService) Create(ctx context.Context, req dto.CreateRegistrarRequest) (*model.Registrar, error) {
	db := s.db.WithContext(ctx)
	name := strings.TrimSpace(req.Name)
	if err := s.nameTaken(db, name, 0); err != nil {
		return nil, err
	}
	r := model.Registrar{
		Name:        name,
		Kind:        req.Kind,
		APIEndpoint: req.APIEndpoint,
		APIKey:      req.APIKey,
		Active:      boolOr(req.Active, true),
	}
	if r.Kind == model.RegistrarKindHTTP && r.APIEndpoint == "" {
		return nil, validationf("generic_http 注册商必须配置 apiEndpoint")
	}
	if err := db.Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RegistrarService) Update(ctx context.Context, id uint, req dto.UpdateRegistrarRequest) (*model.Registrar, error) {
	db := s.db.WithContext(ctx)
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) != r.Name {
		if err := s.nameTaken(db, strings.TrimSpace(*req.Name), r.ID); err != nil {
			return nil, err
		}
	}
	setString(&r.Name, req.Name)
	setString(&r.Kind, req.Kind)
	setString(&r.APIEndpoint, req.APIEndpoint)
	setString(&r.APIKey, req.APIKey)
	setBool(&r.Active, req.Active)
	if r.Kind == model.RegistrarKindHTTP && r.APIEndpoint == "" {
		return nil, validationf("generic_http 注册商必须配置 apiEndpoint")
	}
	if err := db.Save(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// Delete 仍管理着域名的注册商不能删除
func (s *RegistrarService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r model.Registrar
		if err := findByID(tx, &r, id, "registrar"); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.Domain{}).Where("registrar_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("注册商 %s 仍管理 %d 个域名", r.Name, count)
		}
		if err := tx.Model(&model.Tld{}).Where("default_registrar_id = ?", id).Update("default_registrar_id", 0).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("registrar_id = ?", id).Delete(&model.RegistrarTldPrice{}).Error; err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
}

// NormalizeExtension 统一为小写并带前导点, 例如 "COM" -> ".com"
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func (s *RegistrarService) GetAllTlds(ctx context.Context, page dto.PaginationRequest, activeOnly bool) (PageResult[model.Tld], error) {
	query := s.db.WithContext(ctx).Model(&model.Tld{})
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	return paginate[model.Tld](query, Page{Page: page.Page, PageSize: page.PageSize}, "extension asc")
}

func (s *RegistrarService) GetTld(ctx context.Context, id uint) (*model.Tld, error) {
	var t model.Tld
	if err := findByID(s.db.WithContext(ctx), &t, id, "tld"); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *RegistrarService) CreateTld(ctx context.Context, req dto.CreateTldRequest) (*model.Tld, error) {
	db := s.db.WithContext(ctx)
	ext := NormalizeExtension(req.Extension)
	if len(ext) < 2 {
		return nil, validationf("无效的 TLD %q", req.Extension)
	}
	var count int64
	if err := db.Unscoped().Model(&model.Tld{}).Where("extension = ?", ext).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, conflictf("TLD %s 已存在", ext)
	}
	if req.DefaultRegistrarID != 0 {
		if _, err := s.GetByID(ctx, req.DefaultRegistrarID); err != nil {
			return nil, err
		}
	}
	t := model.Tld{Extension: ext, Active: boolOr(req.Active, true), DefaultRegistrarID: req.DefaultRegistrarID}
	if err := db.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *RegistrarService) UpdateTld(ctx context.Context, id uint, req dto.UpdateTldRequest) (*model.Tld, error) {
	t, err := s.GetTld(ctx, id)
	if err != nil {
		return nil, err
	}
	setBool(&t.Active, req.Active)
	if req.DefaultRegistrarID != nil {
		if *req.DefaultRegistrarID != 0 {
			if _, err := s.GetByID(ctx, *req.DefaultRegistrarID); err != nil {
				return nil, err
			}
		}
		t.DefaultRegistrarID = *req.DefaultRegistrarID
	}
	if err := s.db.WithContext(ctx).Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *RegistrarService) DeleteTld(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Tld
		if err := findByID(tx, &t, id, "tld"); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.Domain{}).Where("tld_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return conflictf("TLD %s 仍有 %d 个域名", t.Extension, count)
		}
		if err := tx.Unscoped().Where("tld_id = ?", id).Delete(&model.RegistrarTldPrice{}).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
}

// findTld 按最长后缀匹配域名所属 TLD, 支持 ".co.uk" 这类多级后缀
func findTld(db *gorm.DB, domain string) (*model.Tld, error) {
	labels := strings.Split(domain, ".")
	candidates := make([]string, 0, len(labels)-1)
	for i := 1; i < len(labels); i++ {
		candidates = append(candidates, "."+strings.Join(labels[i:], "."))
	}
	if len(candidates) == 0 {
		return nil, validationf("域名 %q 缺少 TLD", domain)
	}
	var tlds []model.Tld
	if err := db.Where("extension IN ?", candidates).Find(&tlds).Error; err != nil {
		return nil, err
	}
	if len(tlds) == 0 {
		return nil, validationf("不支持的 TLD: %s", candidates[len(candidates)-1])
	}
	sort.Slice(tlds, func(i, j int) bool { return len(tlds[i].Extension) > len(tlds[j].Extension) })
	return &tlds[0], nil
}

func (s *RegistrarService) GetAllPrices(ctx context.Context, page dto.PaginationRequest, registrarID uint) (PageResult[model.RegistrarTldPrice], error) {
	query := s.db.WithContext(ctx).Model(&model.RegistrarTldPrice{})
	if registrarID != 0 {
		query = query.Where("registrar_id = ?", registrarID)
	}
	return paginate[model.RegistrarTldPrice](query, Page{Page: page.Page, PageSize: page.PageSize}, "registrar_id asc, tld_id asc")
}

func (s *RegistrarService) GetPrice(ctx context.Context, id uint) (*model.RegistrarTldPrice, error) {
	var p model.RegistrarTldPrice
	if err := findByID(s.db.WithContext(ctx), &p, id, "tld price"); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPricesForTld 按注册价从低到高
func (s *RegistrarService) GetPricesForTld(ctx context.Context, tldID uint) ([]model.RegistrarTldPrice, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.GetTld(ctx, tldID); err != nil {
		return nil, err
	}
	var prices []model.RegistrarTldPrice
	err := db.Where("tld_id = ?", tldID).Order("register_price asc").Find(&prices).Error
	return prices, err
}

// UpsertPrice 同一 (注册商, TLD) 只保留一条价格
func (s *RegistrarService) UpsertPrice(ctx context.Context, req dto.TldPriceRequest) (*model.RegistrarTldPrice, error) {
	code, err := ValidateCode(req.Currency)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, req.RegistrarID); err != nil {
		return nil, err
	}
	if _, err := s.GetTld(ctx, req.TldID); err != nil {
		return nil, err
	}
	p := model.RegistrarTldPrice{
		RegistrarID:   req.RegistrarID,
		TldID:         req.TldID,
		RegisterPrice: req.RegisterPrice,
		RenewPrice:    req.RenewPrice,
		TransferPrice: req.TransferPrice,
		Currency:      code,
	}
	db := s.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "registrar_id"}, {Name: "tld_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"register_price", "renew_price", "transfer_price", "currency", "updated_at"}),
	}).Create(&p).Error
	if err != nil {
		return nil, err
	}
	var saved model.RegistrarTldPrice
	if err := db.Where("registrar_id = ? AND tld_id = ?", req.RegistrarID, req.TldID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *RegistrarService) DeletePrice(ctx context.Context, id uint) error {
	p, err := s.GetPrice(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Unscoped().Delete(p).Error
}

// priceFor 读取域名注册价; 优先使用指定注册商, 否则取最便宜的
func priceFor(db *gorm.DB, tldID, registrarID uint) (*model.RegistrarTldPrice, error) {
	var p model.RegistrarTldPrice
	q := db.Where("tld_id = ?", tldID)
	if registrarID != 0 {
		q = q.Where("registrar_id = ?", registrarID)
	}
	err := q.Order("register_price asc").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, validationf("TLD %d 没有可用价格", tldID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
