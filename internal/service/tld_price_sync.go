package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isp-backoffice/internal/metrics"
	"github.com/isp-backoffice/internal/model"
	"github.com/isp-backoffice/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PriceSyncResult 一次价格同步的统计
type PriceSyncResult struct {
	RegistrarID uint
	Updated     int
	Created     int
	Skipped     int
}

// RegistrarTldPriceSyncService 从注册商拉取价格表并写入 registrar_tld_prices
type RegistrarTldPriceSyncService struct {
	db      *gorm.DB
	clients RegistrarClientFactory
	metrics *metrics.Metrics
	now     func() time.Time
}

// SyncRegistrar 未知 TLD 以停用状态创建, 无效条目计入 Skipped
func (s *RegistrarTldPriceSyncService) SyncRegistrar(ctx context.Context, registrarID uint) (*PriceSyncResult, error) {
	result, err := s.syncRegistrar(ctx, registrarID)
	s.metrics.IncrementSyncRuns("tld_price", err)
	return result, err
}

func (s *RegistrarTldPriceSyncService) syncRegistrar(ctx context.Context, registrarID uint) (*PriceSyncResult, error) {
	db := s.db.WithContext(ctx)
	var r model.Registrar
	if err := findByID(db, &r, registrarID, "registrar"); err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, invalidStatef("注册商 %s 已停用", r.Name)
	}
	client, err := s.clients(&r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	prices, err := client.GetPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 拉取 %s 价格失败: %v", ErrUpstream, r.Name, err)
	}

	result := &PriceSyncResult{RegistrarID: r.ID}
	now := s.now()
	err = db.Transaction(func(tx *gorm.DB) error {
		var tlds []model.Tld
		if err := tx.Unscoped().Find(&tlds).Error; err != nil {
			return err
		}
		byExt := make(map[string]*model.Tld, len(tlds))
		for i := range tlds {
			byExt[tlds[i].Extension] = &tlds[i]
		}
		var existing []model.RegistrarTldPrice
		if err := tx.Where("registrar_id = ?", r.ID).Find(&existing).Error; err != nil {
			return err
		}
		known := make(map[uint]bool, len(existing))
		for _, p := range existing {
			known[p.TldID] = true
		}

		for _, p := range prices {
			ext := NormalizeExtension(p.Tld)
			code, err := ValidateCode(p.Currency)
			if len(ext) < 2 || err != nil || p.Register < 0 || p.Renew < 0 || p.Transfer < 0 {
				result.Skipped++
				continue
			}
			tld, ok := byExt[ext]
			if !ok {
				tld = &model.Tld{Extension: ext, Active: false, DefaultRegistrarID: r.ID}
				if err := tx.Create(tld).Error; err != nil {
					return err
				}
				byExt[ext] = tld
			}
			if tld.DeletedAt.Valid {
				result.Skipped++
				continue
			}
			row := model.RegistrarTldPrice{
				RegistrarID:   r.ID,
				TldID:         tld.ID,
				RegisterPrice: p.Register,
				RenewPrice:    p.Renew,
				TransferPrice: p.Transfer,
				Currency:      code,
				SyncedAt:      &now,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "registrar_id"}, {Name: "tld_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"register_price", "renew_price", "transfer_price", "currency", "synced_at", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
			if known[tld.ID] {
				result.Updated++
			} else {
				result.Created++
				known[tld.ID] = true
			}
		}
		return tx.Model(&r).Update("last_sync_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Logger.Info("TLD 价格同步完成",
		zap.String("registrar", r.Name),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// SyncAll 依次同步所有启用的注册商, 单个失败不影响其它
func (s *RegistrarTldPriceSyncService) SyncAll(ctx context.Context) ([]PriceSyncResult, error) {
	var registrars []model.Registrar
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("id asc").Find(&registrars).Error; err != nil {
		return nil, err
	}
	var results []PriceSyncResult
	var errs []error
	for _, r := range registrars {
		res, err := s.SyncRegistrar(ctx, r.ID)
		if err != nil {
			logger.Logger.Warn("注册商价格同步失败", zap.String("registrar", r.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, err))
			continue
		}
		results = append(results, *res)
	}
	return results, errors.Join(errs...)
}

// ActiveRegistrarIDs 供 worker 按注册商拆分任务
func (s *RegistrarTldPriceSyncService) ActiveRegistrarIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&model.Registrar{}).Where("active = ?", true).Order("id asc").Pluck("id", &ids).Error
	return ids, err
}
